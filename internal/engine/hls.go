// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/relayplay/internal/hls"
	xglog "github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/metrics"
	"github.com/ManuGH/relayplay/internal/telemetry"
)

const (
	defaultMaxRetries     = 3
	defaultRetryDelay     = time.Second
	defaultRequestTimeout = 20 * time.Second
	defaultConcurrency    = 4
	defaultPrefetch       = 3

	maxPlaylistBytes = 8 << 20
	maxSegmentBytes  = 64 << 20
)

// Options configures HLSEngine instances.
type Options struct {
	Client   *http.Client
	Registry *manifest.Registry
	// MaxRetries is the retry budget per fetch; 0 disables retries and a
	// negative value selects the default.
	MaxRetries       int
	RetryDelay       time.Duration
	RequestTimeout   time.Duration
	Concurrency      int
	FetchRate        float64 // requests per second, 0 = unlimited
	PrefetchSegments int
	Logger           *zerolog.Logger
}

func normalizeOptions(opts Options) Options {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PrefetchSegments < 0 {
		opts.PrefetchSegments = 0
	}
	return opts
}

// NewFactory returns a Factory that builds HLSEngines sharing opts.
func NewFactory(opts Options) Factory {
	opts = normalizeOptions(opts)
	return func(h Handler) Engine {
		return NewHLSEngine(opts, h)
	}
}

// HLSEngine fetches a playlist (following a master to its best variant),
// reports it parsed, then prefetches the first segments and keys.
type HLSEngine struct {
	opts    Options
	handler Handler
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu       sync.Mutex
	loaded   bool
	disposed bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewHLSEngine builds an engine bound to h.
func NewHLSEngine(opts Options, h Handler) *HLSEngine {
	opts = normalizeOptions(opts)
	limit := rate.Inf
	if opts.FetchRate > 0 {
		limit = rate.Limit(opts.FetchRate)
	}
	logger := xglog.WithComponent("engine")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &HLSEngine{
		opts:    opts,
		handler: h,
		limiter: rate.NewLimiter(limit, opts.Concurrency),
		logger:  logger,
	}
}

// Load starts loading src in the background. Every fetched URL passes through rewrite.
func (e *HLSEngine) Load(src manifest.Source, rewrite RewriteFunc) error {
	if rewrite == nil {
		rewrite = func(u string) string { return u }
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return ErrDisposed
	}
	if e.loaded {
		return ErrAlreadyLoaded
	}
	if src.IsZero() {
		return fmt.Errorf("load: empty manifest source")
	}
	e.loaded = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, src, rewrite)
	}()
	return nil
}

// Dispose stops all fetches and waits for them to exit. It is idempotent and
// must not be called from inside the engine's Handler.
func (e *HLSEngine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

func (e *HLSEngine) emit(ev Event) {
	e.mu.Lock()
	disposed := e.disposed
	e.mu.Unlock()
	if disposed || e.handler == nil {
		return
	}
	e.handler(ev)
}

func (e *HLSEngine) fatal(op, u string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	e.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "engine.fatal").
		Str("op", op).
		Str(xglog.FieldURL, xglog.MaskURL(u)).
		Msg("engine failed")
	e.emit(Event{Kind: EventFatal, Err: &Error{Fatal: true, Op: op, URL: u, Err: err}})
}

func (e *HLSEngine) run(ctx context.Context, src manifest.Source, rewrite RewriteFunc) {
	ctx, span := telemetry.Tracer("relayplay/engine").Start(ctx, "engine.load")
	defer span.End()
	span.SetAttributes(telemetry.SourceAttributes(string(src.Kind))...)

	base := src.URL
	text, err := e.fetch(ctx, "manifest", src.URL, rewrite, maxPlaylistBytes)
	if err != nil {
		span.SetStatus(codes.Error, "manifest")
		e.fatal("manifest", src.URL, err)
		return
	}
	info, err := hls.Inspect(string(text))
	if err != nil {
		span.SetStatus(codes.Error, "parse")
		e.fatal("manifest", src.URL, err)
		return
	}

	if info.Master {
		variant, _ := info.Best()
		base = hls.ResolveURI(src.URL, variant.URI)
		text, err = e.fetch(ctx, "playlist", base, rewrite, maxPlaylistBytes)
		if err != nil {
			span.SetStatus(codes.Error, "playlist")
			e.fatal("playlist", base, err)
			return
		}
		media, err := hls.Inspect(string(text))
		if err != nil {
			span.SetStatus(codes.Error, "parse")
			e.fatal("playlist", base, err)
			return
		}
		if media.Master {
			e.fatal("playlist", base, errors.New("variant is itself a master playlist"))
			return
		}
		media.Variants = info.Variants
		info = media
	}

	e.logger.Debug().
		Str(xglog.FieldEvent, "engine.manifest_parsed").
		Int("segments", len(info.Segments)).
		Dur("duration", info.TotalDuration).
		Msg("manifest parsed")
	e.emit(Event{Kind: EventManifestParsed, Info: info})

	if err := e.prefetch(ctx, base, info, rewrite); err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			e.fatal(ee.Op, ee.URL, ee.Err)
		}
	}
}

// prefetch loads keys and the first segments with bounded concurrency.
func (e *HLSEngine) prefetch(ctx context.Context, base string, info *hls.Info, rewrite RewriteFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for _, k := range info.KeyURIs {
		u := hls.ResolveURI(base, k)
		g.Go(func() error {
			if _, err := e.fetch(ctx, "key", u, rewrite, maxPlaylistBytes); err != nil {
				return &Error{Fatal: true, Op: "key", URL: u, Err: err}
			}
			return nil
		})
	}
	n := min(e.opts.PrefetchSegments, len(info.Segments))
	for _, s := range info.Segments[:n] {
		u := hls.ResolveURI(base, s.URI)
		g.Go(func() error {
			if _, err := e.fetch(ctx, "segment", u, rewrite, maxSegmentBytes); err != nil {
				return &Error{Fatal: true, Op: "segment", URL: u, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// fetch retries up to MaxRetries times with a fixed delay. Failures within the
// budget are logged and absorbed.
func (e *HLSEngine) fetch(ctx context.Context, kind, target string, rewrite RewriteFunc, limit int64) ([]byte, error) {
	routed := rewrite(target)
	if manifest.IsBlobURL(routed) {
		return e.openBlob(routed)
	}

	maxAttempts := e.opts.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		start := time.Now()
		body, err := e.get(ctx, routed, limit)
		metrics.ObserveEngineFetchDuration(kind, time.Since(start))
		if err == nil {
			metrics.RecordEngineFetch(kind, "ok")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		metrics.RecordEngineFetch(kind, "retry")
		e.logger.Warn().
			Err(&Error{Op: kind, URL: target, Err: err}).
			Str(xglog.FieldEvent, "engine.fetch_retry").
			Int("attempt", attempt).
			Str(xglog.FieldURL, xglog.MaskURL(target)).
			Msg("fetch failed, retrying")

		t := time.NewTimer(e.opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	metrics.RecordEngineFetch(kind, "failed")
	return nil, fmt.Errorf("%s after %d attempts: %w", kind, maxAttempts, lastErr)
}

func (e *HLSEngine) get(ctx context.Context, u string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	res, err := e.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, limit))
}

func (e *HLSEngine) openBlob(u string) ([]byte, error) {
	if e.opts.Registry == nil {
		return nil, fmt.Errorf("no registry for %s", u)
	}
	content, ok := e.opts.Registry.Open(u)
	if !ok {
		return nil, fmt.Errorf("blob %s was released", u)
	}
	return content, nil
}
