// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/relayplay/internal/engine"
	"github.com/ManuGH/relayplay/internal/hls"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/proxy"
	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/relay"
	"github.com/ManuGH/relayplay/internal/resolver"
	"github.com/ManuGH/relayplay/internal/session"
)

type stubResolver struct {
	mu       sync.Mutex
	shareErr error
	calls    []string
}

func (r *stubResolver) ResolveByShare(_ context.Context, shareURL string, q quality.Tier) (manifest.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "share:"+shareURL+":"+q.String())
	if r.shareErr != nil {
		return manifest.Source{}, r.shareErr
	}
	return manifest.FromURL("https://cdn.example/" + q.Label() + ".m3u8"), nil
}

func (r *stubResolver) ResolveByStart(_ context.Context, token string) (manifest.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "start:"+token)
	return manifest.FromURL("https://cdn.example/start.m3u8"), nil
}

func (r *stubResolver) failShare(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shareErr = err
}

func (r *stubResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// readyEngine reports a parsed manifest as soon as it is loaded.
type readyEngine struct {
	h engine.Handler
}

func (e *readyEngine) Load(manifest.Source, engine.RewriteFunc) error {
	e.h(engine.Event{Kind: engine.EventManifestParsed, Info: &hls.Info{}})
	return nil
}

func (e *readyEngine) Dispose() {}

type harness struct {
	srv      *Server
	http     *httptest.Server
	resolver *stubResolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	res := &stubResolver{}
	pool, err := relay.NewPool([]string{"https://p1.example", "https://p2.example"})
	require.NoError(t, err)
	router, err := proxy.NewRouter(proxy.Config{
		Primary:        "https://primary.example",
		StorageDomains: []string{"1024tera.com"},
		ResolverHost:   "api.example",
	}, pool)
	require.NoError(t, err)

	srv, err := New(Config{
		Version: "test",
		Sessions: func() (*session.Controller, error) {
			return session.New(session.Config{
				Resolver:           res,
				Engines:            func(h engine.Handler) engine.Engine { return &readyEngine{h: h} },
				Player:             engine.NewVirtualPlayer(),
				CanonicalShareBase: "https://www.terabox.com/s/",
				DefaultQuality:     quality.Auto360,
				Autoplay:           true,
			})
		},
		Router:    router,
		KeepAlive: time.Hour,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &harness{srv: srv, http: ts, resolver: res}
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, h.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&buf)
	require.NoError(t, err)
	return resp, []byte(buf.String())
}

func TestStartSession_ShareReady(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/v1/session?wait=5s", `{"share":"abc123","quality":"720"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, session.StateReady, snap.State)
	assert.Equal(t, quality.Auto720, snap.Quality)
	assert.Equal(t, "share", snap.Reference)
	assert.True(t, snap.Playing)
	assert.Equal(t, []string{"share:abc123:M3U8_AUTO_720"}, h.resolver.Calls())
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestStartSession_StartTokenClamped(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/v1/session?wait=5s", `{"start":"xyz","quality":"1080p"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, quality.Auto360, snap.Quality)
	assert.Equal(t, []quality.Tier{quality.Auto360}, snap.Selectable)
	assert.Equal(t, []string{"start:xyz"}, h.resolver.Calls())
}

func TestStartSession_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		want string
	}{
		{"no reference", `{}`, http.StatusBadRequest, CodeNoReference},
		{"bad quality", `{"share":"abc","quality":"4k"}`, http.StatusBadRequest, CodeInvalidQuality},
		{"bad json", `{"share":`, http.StatusBadRequest, CodeBadRequest},
		{"unknown field", `{"shareUrl":"abc"}`, http.StatusBadRequest, CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			resp, body := h.do(t, http.MethodPost, "/api/v1/session", tt.body)
			assert.Equal(t, tt.code, resp.StatusCode)
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, tt.want, er.Error)
		})
	}
}

func TestStartSession_UpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.resolver.failShare(&resolver.ResolutionError{
		Kind:    resolver.KindUpstream,
		Path:    "share",
		Status:  http.StatusServiceUnavailable,
		Message: "upstream is unreachable",
	})

	resp, body := h.do(t, http.MethodPost, "/api/v1/session", `{"share":"abc"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, CodeUpstream, er.Error)
	assert.Equal(t, "upstream is unreachable", er.Detail)
	require.NotNil(t, er.Session)
	assert.Equal(t, session.StateFailed, er.Session.State)
	assert.Equal(t, "error:upstream is unreachable", er.Session.Status.Text())
}

func TestSelectQuality(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodPut, "/api/v1/session/quality", `{"quality":"480"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no session started yet")

	resp, _ = h.do(t, http.MethodPost, "/api/v1/session?wait=5s", `{"share":"abc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := h.do(t, http.MethodPut, "/api/v1/session/quality?wait=5s", `{"quality":"M3U8_AUTO_480"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, quality.Auto480, snap.Quality)
	assert.Equal(t, session.StateReady, snap.State)

	resp, body = h.do(t, http.MethodGet, "/api/v1/session/qualities", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var opts []QualityOption
	require.NoError(t, json.Unmarshal(body, &opts))
	require.Len(t, opts, 4)
	assert.True(t, opts[1].Selected)
	assert.Equal(t, "480p", opts[1].Label)
}

func TestDeleteSession_ReplacesController(t *testing.T) {
	h := newHarness(t)
	before := h.srv.Session().ID()

	resp, _ := h.do(t, http.MethodPost, "/api/v1/session?wait=5s", `{"share":"abc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/session", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEqual(t, before, h.srv.Session().ID())

	resp, body := h.do(t, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, session.StateIdle, snap.State)
}

func TestPlayPause(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/v1/session/play", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, CodeNotReady, er.Error)

	resp, _ = h.do(t, http.MethodPost, "/api/v1/session?wait=5s", `{"share":"abc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/api/v1/session/pause", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.False(t, snap.Playing)
}

func TestRoute(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/api/v1/route?url="+"https%3A%2F%2Fd.1024tera.com%2Fseg.ts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rr RouteResponse
	require.NoError(t, json.Unmarshal(body, &rr))
	assert.Equal(t, string(proxy.ClassDedicatedRelay), rr.Class)
	assert.Equal(t, "https://primary.example", rr.Relay)
	assert.Equal(t, "https://primary.example/?url=https%3A%2F%2Fd.1024tera.com%2Fseg.ts", rr.Rewritten)

	resp, _ = h.do(t, http.MethodGet, "/api/v1/route", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProbesAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, _ = h.do(t, http.MethodGet, "/api/v1/session", "")
	resp, body := h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "relayplay_http_request_duration_seconds")
}

func TestEvents_StreamUntilReset(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.http.URL+"/api/v1/session/events", nil)
	require.NoError(t, err)
	resp, err := h.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	kinds := make(chan string, 32)
	go func() {
		defer close(kinds)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			line := sc.Text()
			if line == "event: closed" {
				kinds <- "closed"
				return
			}
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var st session.Status
				if json.Unmarshal([]byte(data), &st) == nil && st.Kind != "" {
					kinds <- string(st.Kind)
				}
			}
		}
	}()

	require.Equal(t, string(session.StatusInitializing), <-kinds)

	r, _ := h.do(t, http.MethodPost, "/api/v1/session?wait=5s", `{"share":"abc"}`)
	require.Equal(t, http.StatusOK, r.StatusCode)
	r, _ = h.do(t, http.MethodDelete, "/api/v1/session", "")
	require.Equal(t, http.StatusNoContent, r.StatusCode)

	var got []string
	for k := range kinds {
		got = append(got, k)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, "closed", got[len(got)-1])
	assert.Contains(t, got, string(session.StatusReady))
}
