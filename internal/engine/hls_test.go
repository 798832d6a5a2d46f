// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/relayplay/internal/manifest"
)

type eventSink struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newEventSink() *eventSink {
	return &eventSink{ch: make(chan Event, 16)}
}

func (s *eventSink) handle(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.ch <- ev
}

func (s *eventSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-s.ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no engine event")
		return Event{}
	}
}

func testOptions(srv *httptest.Server, reg *manifest.Registry) Options {
	return Options{
		Client:           srv.Client(),
		Registry:         reg,
		MaxRetries:       2,
		RetryDelay:       5 * time.Millisecond,
		RequestTimeout:   time.Second,
		Concurrency:      2,
		PrefetchSegments: 2,
	}
}

func identity(u string) string { return u }

func TestHLSEngine_MediaPlaylistFromURL(t *testing.T) {
	var segHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/video.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\nseg0.ts\n#EXTINF:10,\nseg1.ts\n#EXTINF:10,\nseg2.ts\n#EXT-X-ENDLIST\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".ts") {
			segHits.Add(1)
		}
		_, _ = w.Write([]byte("data"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := newEventSink()
	e := NewHLSEngine(testOptions(srv, nil), sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/video.m3u8"), identity))

	ev := sink.next(t)
	require.Equal(t, EventManifestParsed, ev.Kind)
	require.NotNil(t, ev.Info)
	assert.Len(t, ev.Info.Segments, 3)
	assert.Equal(t, 30*time.Second, ev.Info.TotalDuration)

	require.Eventually(t, func() bool { return segHits.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	e.Dispose()
	e.Dispose()
}

func TestHLSEngine_BlobSourceAndRewriteHook(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Query().Get("url"))
		mu.Unlock()
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	reg := manifest.NewRegistry()
	blob := reg.Create([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4,\nhttps://cdn.example/a.ts\n#EXT-X-ENDLIST\n"))
	defer blob.Release()

	var rewritten []string
	var rmu sync.Mutex
	rewrite := func(u string) string {
		rmu.Lock()
		rewritten = append(rewritten, u)
		rmu.Unlock()
		if manifest.IsBlobURL(u) {
			return u
		}
		return srv.URL + "/?url=" + u
	}

	sink := newEventSink()
	e := NewHLSEngine(testOptions(srv, reg), sink.handle)
	require.NoError(t, e.Load(manifest.FromBlob(blob), rewrite))
	require.Equal(t, EventManifestParsed, sink.next(t).Kind)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 2*time.Second, 10*time.Millisecond)
	e.Dispose()

	rmu.Lock()
	defer rmu.Unlock()
	assert.Equal(t, []string{blob.URL(), "https://cdn.example/a.ts"}, rewritten)
	assert.Equal(t, []string{"https://cdn.example/a.ts"}, seen)
}

func TestHLSEngine_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4,\nseg.ts\n#EXT-X-ENDLIST\n"))
	}))
	defer srv.Close()

	opts := testOptions(srv, nil)
	opts.PrefetchSegments = 0
	sink := newEventSink()
	e := NewHLSEngine(opts, sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/v.m3u8"), identity))

	assert.Equal(t, EventManifestParsed, sink.next(t).Kind)
	assert.Equal(t, int32(3), hits.Load())
	e.Dispose()
}

func TestHLSEngine_FatalAfterRetryBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sink := newEventSink()
	e := NewHLSEngine(testOptions(srv, nil), sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/v.m3u8"), identity))

	ev := sink.next(t)
	require.Equal(t, EventFatal, ev.Kind)
	require.NotNil(t, ev.Err)
	assert.True(t, ev.Err.Fatal)
	assert.Equal(t, "manifest", ev.Err.Op)
	assert.Equal(t, int32(3), hits.Load(), "one attempt plus two retries")
	e.Dispose()
}

func TestHLSEngine_ZeroRetriesDisablesRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	opts := testOptions(srv, nil)
	opts.MaxRetries = 0
	sink := newEventSink()
	e := NewHLSEngine(opts, sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/v.m3u8"), identity))

	require.Equal(t, EventFatal, sink.next(t).Kind)
	assert.Equal(t, int32(1), hits.Load())
	e.Dispose()
}

func TestNormalizeOptions_NegativeRetriesUseDefault(t *testing.T) {
	assert.Equal(t, defaultMaxRetries, normalizeOptions(Options{MaxRetries: -1}).MaxRetries)
	assert.Zero(t, normalizeOptions(Options{}).MaxRetries)
}

func TestHLSEngine_InvalidPlaylistIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not a playlist</html>"))
	}))
	defer srv.Close()

	sink := newEventSink()
	e := NewHLSEngine(testOptions(srv, nil), sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/v.m3u8"), identity))
	assert.Equal(t, EventFatal, sink.next(t).Kind)
	e.Dispose()
}

func TestHLSEngine_FollowsMasterToBestVariant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=500000\nlow.m3u8\n#EXT-X-STREAM-INF:BANDWIDTH=2500000\nhigh.m3u8\n"))
	})
	mux.HandleFunc("/high.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6,\nh0.ts\n#EXT-X-ENDLIST\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opts := testOptions(srv, nil)
	opts.PrefetchSegments = 0
	sink := newEventSink()
	e := NewHLSEngine(opts, sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/master.m3u8"), identity))

	ev := sink.next(t)
	require.Equal(t, EventManifestParsed, ev.Kind)
	require.Len(t, ev.Info.Segments, 1)
	assert.Equal(t, "h0.ts", ev.Info.Segments[0].URI)
	assert.Len(t, ev.Info.Variants, 2)
	e.Dispose()
}

func TestHLSEngine_NoEventsAfterDispose(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:4,\nseg.ts\n#EXT-X-ENDLIST\n"))
	}))
	defer srv.Close()
	defer close(release)

	sink := newEventSink()
	e := NewHLSEngine(testOptions(srv, nil), sink.handle)
	require.NoError(t, e.Load(manifest.FromURL(srv.URL+"/v.m3u8"), identity))
	e.Dispose()

	select {
	case ev := <-sink.ch:
		t.Fatalf("unexpected event after dispose: %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
	assert.ErrorIs(t, e.Load(manifest.FromURL(srv.URL), identity), ErrDisposed)
}

func TestHLSEngine_LoadTwice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U\n#EXTINF:4,\nseg.ts\n#EXT-X-ENDLIST\n"))
	}))
	defer srv.Close()

	sink := newEventSink()
	e := NewHLSEngine(testOptions(srv, nil), sink.handle)
	defer e.Dispose()
	require.NoError(t, e.Load(manifest.FromURL(srv.URL), identity))
	assert.ErrorIs(t, e.Load(manifest.FromURL(srv.URL), identity), ErrAlreadyLoaded)
	assert.Error(t, NewHLSEngine(testOptions(srv, nil), nil).Load(manifest.Source{}, identity))
}
