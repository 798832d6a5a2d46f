// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type sized int

func (s sized) Len() int { return int(s) }

func TestReady_NoCheckers(t *testing.T) {
	m := NewManager("v1", time.Second)
	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestReady_Aggregation(t *testing.T) {
	tests := []struct {
		name      string
		pingErr   error
		pool      int
		wantReady bool
		want      Status
	}{
		{"all healthy", nil, 3, true, StatusHealthy},
		{"single relay", nil, 1, true, StatusDegraded},
		{"resolver down", errors.New("connection refused"), 3, false, StatusUnhealthy},
		{"no relays", nil, 0, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1", time.Second)
			m.RegisterChecker(NewPingChecker("resolver", pingFunc(func(context.Context) error { return tt.pingErr })))
			m.RegisterChecker(NewRelayPoolChecker(sized(tt.pool)))

			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, 2)
		})
	}
}

func TestReady_CheckTimeout(t *testing.T) {
	m := NewManager("v1", 20*time.Millisecond)
	m.RegisterChecker(NewPingChecker("resolver", pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))
	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks["resolver"].Error, "deadline")
}

func TestServeHealth_AlwaysOK(t *testing.T) {
	m := NewManager("v1", time.Second)
	m.RegisterChecker(NewFuncChecker("broken", func(context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy}
	}))

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestServeReady_Unavailable(t *testing.T) {
	m := NewManager("v1", time.Second)
	m.RegisterChecker(NewRelayPoolChecker(nil))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
