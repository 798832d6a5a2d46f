// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/relayplay/internal/relay"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	pool, err := relay.NewPool([]string{"https://p1.example", "https://p2.example", "https://p3.example"})
	require.NoError(t, err)
	r, err := NewRouter(Config{
		Primary:        "https://primary.example/",
		StorageDomains: []string{"1024tera.com", ".terabox.com", "BÜCHER.example"},
		ResolverHost:   "api.example:8000",
	}, pool)
	require.NoError(t, err)
	return r
}

func TestNewRouter_RequiresPrimary(t *testing.T) {
	pool, err := relay.NewPool([]string{"https://p1.example"})
	require.NoError(t, err)
	_, err = NewRouter(Config{}, pool)
	require.Error(t, err)

	_, err = NewRouter(Config{Primary: "https://primary.example"}, nil)
	require.ErrorIs(t, err, relay.ErrEmptyPool)
}

func TestClassify(t *testing.T) {
	r := newTestRouter(t)
	tests := []struct {
		url  string
		want Class
	}{
		{"https://d.1024tera.com/file/seg1.ts?sign=abc", ClassDedicatedRelay},
		{"https://1024tera.com/x", ClassDedicatedRelay},
		{"https://WWW.TeraBox.com/s/1abc", ClassDedicatedRelay},
		{"https://cdn.xn--bcher-kva.example/seg.ts", ClassDedicatedRelay},
		{"https://evil1024tera.com/x", ClassPooledRelay},
		{"blob:relayplay/1234", ClassPassThrough},
		{"http://api.example:8000/get_m3u8?url=x", ClassPassThrough},
		{"http://API.example/health", ClassPassThrough},
		{"https://cdn.example/video.m3u8", ClassPooledRelay},
		{"seg1.ts", ClassPooledRelay},
		{"http://[::1", ClassPooledRelay},
		{"", ClassPooledRelay},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Classify(tt.url))
			// Deterministic.
			assert.Equal(t, r.Classify(tt.url), r.Classify(tt.url))
		})
	}
}

func TestRoute_Rewrites(t *testing.T) {
	r := newTestRouter(t)

	d := r.Route("https://d.1024tera.com/seg.ts?a=1&b=2")
	assert.Equal(t, ClassDedicatedRelay, d.Class)
	assert.Equal(t, "https://primary.example/?url=https%3A%2F%2Fd.1024tera.com%2Fseg.ts%3Fa%3D1%26b%3D2", d.URL)

	d = r.Route("blob:relayplay/1234")
	assert.Equal(t, ClassPassThrough, d.Class)
	assert.Equal(t, "blob:relayplay/1234", d.URL)
	assert.Empty(t, d.Relay)
}

func TestRoute_PooledFormsContiguousCycle(t *testing.T) {
	r := newTestRouter(t)

	var got []relay.Endpoint
	for i := 0; i < 6; i++ {
		// Dedicated and pass-through requests in between must not advance the pool.
		r.Route("https://d.1024tera.com/seg.ts")
		r.Route("blob:relayplay/x")
		got = append(got, r.Route("https://cdn.example/seg.ts").Relay)
	}
	assert.Equal(t, []relay.Endpoint{
		"https://p1.example", "https://p2.example", "https://p3.example",
		"https://p1.example", "https://p2.example", "https://p3.example",
	}, got)
}

func TestPreview_DoesNotConsumeRotation(t *testing.T) {
	r := newTestRouter(t)

	d := r.Preview("https://cdn.example/a.ts")
	assert.Equal(t, ClassPooledRelay, d.Class)
	assert.Equal(t, relay.Endpoint("https://p1.example"), d.Relay)

	assert.Equal(t, relay.Endpoint("https://p1.example"), r.Route("https://cdn.example/a.ts").Relay)
	assert.Equal(t, relay.Endpoint("https://p2.example"), r.Preview("https://cdn.example/b.ts").Relay)

	assert.Equal(t, ClassPassThrough, r.Preview("blob:relayplay/1").Class)
	assert.Equal(t, relay.Endpoint("https://primary.example"), r.Preview("https://d.1024tera.com/x").Relay)
}

func TestTransport_StripsCredentials(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got = req.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Cookie", "ndus=secret")
	req.Header.Set("Authorization", "Bearer x")
	req.Header.Set("Proxy-Authorization", "Basic y")
	req.Header.Set("Range", "bytes=0-")

	res, err := NewClient(nil).Do(req)
	require.NoError(t, err)
	_ = res.Body.Close()

	assert.Empty(t, got.Get("Cookie"))
	assert.Empty(t, got.Get("Authorization"))
	assert.Empty(t, got.Get("Proxy-Authorization"))
	assert.Equal(t, "bytes=0-", got.Get("Range"))
	assert.Equal(t, "ndus=secret", req.Header.Get("Cookie"), "caller request must not be mutated")
}
