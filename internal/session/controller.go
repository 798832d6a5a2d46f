// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session owns the single live playback session: it drives the
// capability gate, the resolver and a fresh engine per quality switch, and
// restores position and play intent once the new engine is ready.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/ManuGH/relayplay/internal/capability"
	"github.com/ManuGH/relayplay/internal/engine"
	xglog "github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/metrics"
	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/reference"
	"github.com/ManuGH/relayplay/internal/resolver"
	"github.com/ManuGH/relayplay/internal/telemetry"
)

// Resolver is the part of the reference resolver the controller uses.
type Resolver interface {
	ResolveByShare(ctx context.Context, shareURL string, q quality.Tier) (manifest.Source, error)
	ResolveByStart(ctx context.Context, token string) (manifest.Source, error)
}

// Config wires a Controller.
type Config struct {
	Resolver           Resolver
	Engines            engine.Factory
	Player             engine.Player
	Rewrite            engine.RewriteFunc
	CanonicalShareBase string
	DefaultQuality     quality.Tier
	Autoplay           bool
	Now                func() time.Time
}

type resumePoint struct {
	offset  time.Duration
	playing bool
}

// Controller manages at most one playback session. All state is guarded by mu;
// resolution and engine disposal run outside it.
type Controller struct {
	cfg    Config
	id     string
	now    func() time.Time
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	ref       reference.Reference
	quality   quality.Tier
	source    manifest.Source
	transient []manifest.Releaser
	engine    engine.Engine
	resume    resumePoint
	attached  bool // the player reflects an engine that reached Ready
	tornDown  bool
	requested time.Time

	status  Status
	subs    map[int]chan Status
	nextSub int
}

// New builds an idle Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("session: resolver is required")
	}
	if cfg.Engines == nil {
		return nil, errors.New("session: engine factory is required")
	}
	if cfg.Player == nil {
		cfg.Player = engine.NewVirtualPlayer()
	}
	if !cfg.DefaultQuality.Valid() {
		cfg.DefaultQuality = quality.Lowest()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	id := uuid.NewString()
	c := &Controller{
		cfg: cfg,
		id:  id,
		now: now,
		logger: xglog.Derive(func(lc *zerolog.Context) {
			*lc = lc.Str(xglog.FieldComponent, "session").Str(xglog.FieldSessionID, id)
		}),
		state: StateIdle,
		subs:  make(map[int]chan Status),
	}
	c.mu.Lock()
	c.publishLocked(Status{Kind: StatusInitializing})
	c.mu.Unlock()
	metrics.SetSessionState(string(StateIdle))
	return c, nil
}

// ID identifies the controller in logs and API responses.
func (c *Controller) ID() string {
	return c.id
}

// Start selects a reference from src and begins playback at the requested
// tier (the default tier when empty). It returns once the new engine is
// loading; readiness is reported on the status stream.
func (c *Controller) Start(ctx context.Context, src reference.Sources, requested quality.Tier) error {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	ref, err := reference.Select(src, c.cfg.CanonicalShareBase)
	if err != nil {
		// The previous session cannot be retried without a reference.
		c.gen++
		c.transitionLocked(evNoReference)
		c.ref = nil
		c.attached = false
		c.source = manifest.Source{}
		transient := c.transient
		c.transient = nil
		eng := c.engine
		c.engine = nil
		c.publishLocked(Status{Kind: StatusError, Message: "No video reference provided"})
		c.mu.Unlock()

		releaseAll(transient)
		if eng != nil {
			eng.Dispose()
		}
		return err
	}
	if requested == "" {
		requested = c.cfg.DefaultQuality
	}
	c.ref = ref
	c.attached = false
	c.resume = resumePoint{playing: c.cfg.Autoplay}
	ev := c.logger.Info().
		Str(xglog.FieldEvent, "session.start").
		Str(xglog.FieldReference, string(ref.Kind())).
		Str(xglog.FieldQuality, requested.String())
	if code, ok := reference.ExtractShareCode(ref.Value()); ok {
		ev = ev.Str(xglog.FieldShareCode, code)
	}
	ev.Msg("session start requested")
	return c.requestLocked(ctx, requested)
}

// SelectQuality switches the active session to q. Selecting the current tier
// again issues a fresh resolution; it is also how a failed session is retried.
func (c *Controller) SelectQuality(ctx context.Context, q quality.Tier) error {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return ErrTornDown
	}
	if c.ref == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	// Capture before anything is released. While a switch is still in flight
	// the player has not been restored yet, so the earlier capture stands.
	if c.attached && (c.state == StateReady || c.state == StateFailed) {
		c.resume = resumePoint{
			offset:  c.cfg.Player.CurrentTime(),
			playing: !c.cfg.Player.Paused(),
		}
	}
	c.logger.Info().
		Str(xglog.FieldEvent, "session.select_quality").
		Str(xglog.FieldQuality, q.String()).
		Dur(xglog.FieldOffset, c.resume.offset).
		Bool("playing", c.resume.playing).
		Msg("quality change requested")
	return c.requestLocked(ctx, q)
}

// requestLocked runs one resolve-and-attach cycle. It is called with mu held
// and returns with mu released.
func (c *Controller) requestLocked(ctx context.Context, requested quality.Tier) error {
	ref := c.ref
	decision := capability.ClampOrReject(ref, requested)
	warning := ""
	if decision.Clamped() {
		warning = decision.Warning.Error()
		metrics.RecordQualityClamp()
		c.logger.Warn().
			Str(xglog.FieldEvent, "session.quality_clamped").
			Str("requested", requested.String()).
			Str(xglog.FieldQuality, decision.Quality.String()).
			Msg(warning)
	}

	c.gen++
	gen := c.gen
	c.transitionLocked(evRequested)
	c.requested = c.now()
	c.publishLocked(Status{
		Kind:    StatusResolving,
		Message: fmt.Sprintf("Resolving %s stream", decision.Quality.Label()),
		Warning: warning,
		Quality: decision.Quality,
	})
	c.mu.Unlock()

	ctx, span := telemetry.Tracer("relayplay/session").Start(ctx, "session.request")
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(c.id, gen, string(ref.Kind()), decision.Quality.String())...)
	ctx = xglog.ContextWithSessionID(ctx, c.id)

	src, err := c.resolve(ctx, ref, decision.Quality)

	c.mu.Lock()
	if c.tornDown || gen != c.gen {
		tornDown := c.tornDown
		c.mu.Unlock()
		if t := src.Transient(); t != nil {
			t.Release()
		}
		if tornDown {
			return ErrTornDown
		}
		c.logger.Debug().
			Str(xglog.FieldEvent, "session.superseded").
			Uint64(xglog.FieldGeneration, gen).
			Msg("request superseded")
		return ErrSuperseded
	}

	// Best-effort forward: the previous session's transient resources are
	// discarded whether or not the new resolution succeeded.
	previous := c.transient
	c.transient = nil
	c.source = manifest.Source{}
	released := releaseAll(previous)
	if released > 0 {
		c.logger.Debug().
			Str(xglog.FieldEvent, "session.released").
			Int("count", released).
			Msg("previous transient resources released")
	}

	if err != nil {
		c.transitionLocked(evResolveFailed)
		msg := resolver.UserMessage(err)
		c.publishLocked(Status{Kind: StatusError, Message: msg, Warning: warning, Quality: decision.Quality})
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve")
		return err
	}

	c.transitionLocked(evResolved)
	old := c.engine
	c.source = src
	if t := src.Transient(); t != nil {
		c.transient = append(c.transient, t)
	}
	c.quality = decision.Quality
	eng := c.cfg.Engines(c.handlerFor(gen))
	c.engine = eng
	if old != nil {
		// Paused for the switch; the captured resume point stays authoritative
		// until an engine reaches Ready again.
		c.cfg.Player.Pause()
		c.attached = false
	}
	c.publishLocked(Status{Kind: StatusLoading, Message: "Loading stream", Warning: warning})
	c.mu.Unlock()

	if old != nil {
		old.Dispose()
	}

	if err := eng.Load(src, c.cfg.Rewrite); err != nil {
		c.mu.Lock()
		if gen == c.gen && !c.tornDown {
			c.transitionLocked(evEngineFatal)
			c.publishLocked(Status{Kind: StatusError, Message: fatalMessage(decision.Quality)})
		}
		c.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "load")
		return fmt.Errorf("load engine: %w", err)
	}
	return nil
}

func (c *Controller) resolve(ctx context.Context, ref reference.Reference, q quality.Tier) (manifest.Source, error) {
	switch r := ref.(type) {
	case reference.Share:
		return c.cfg.Resolver.ResolveByShare(ctx, r.URL, q)
	case reference.Start:
		return c.cfg.Resolver.ResolveByStart(ctx, r.Token)
	default:
		return manifest.Source{}, reference.ErrNoReference
	}
}

// handlerFor binds engine events to the generation that created the engine.
// Events from older generations are dropped.
func (c *Controller) handlerFor(gen uint64) engine.Handler {
	return func(ev engine.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.tornDown || gen != c.gen {
			c.logger.Debug().
				Str(xglog.FieldEvent, "session.stale_event").
				Str("kind", string(ev.Kind)).
				Uint64(xglog.FieldGeneration, gen).
				Msg("dropping event from a replaced engine")
			return
		}
		switch ev.Kind {
		case engine.EventManifestParsed:
			c.onManifestParsedLocked()
		case engine.EventFatal:
			if _, ok := transitionFor(c.state, evEngineFatal); !ok {
				return
			}
			c.transitionLocked(evEngineFatal)
			c.logger.Error().
				Err(ev.Err).
				Str(xglog.FieldEvent, "session.engine_fatal").
				Msg("engine reported a fatal error")
			c.publishLocked(Status{Kind: StatusError, Message: fatalMessage(c.quality)})
		}
	}
}

func (c *Controller) onManifestParsedLocked() {
	if _, ok := transitionFor(c.state, evManifestParsed); !ok {
		return
	}
	c.transitionLocked(evManifestParsed)
	c.attached = true
	metrics.ObserveSessionStartupLatency(c.now().Sub(c.requested))

	p := c.cfg.Player
	if err := p.Seek(c.resume.offset); err != nil {
		c.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.seek_failed").Msg("could not restore position")
	}
	if !c.resume.playing {
		p.Pause()
		c.publishLocked(Status{Kind: StatusReady, Message: "Ready"})
		return
	}
	if err := p.Play(false); err != nil {
		c.logger.Info().Err(err).Str(xglog.FieldEvent, "session.autoplay_blocked").Msg("resume needs a user gesture")
		c.publishLocked(Status{Kind: StatusClickToPlay, Message: "Ready, press play"})
		return
	}
	c.publishLocked(Status{Kind: StatusReady, Message: "Playing"})
}

// Play resumes playback on a user gesture, e.g. after click-to-play.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return ErrTornDown
	}
	if c.state != StateReady {
		return ErrNotReady
	}
	if err := c.cfg.Player.Play(true); err != nil {
		return err
	}
	if c.status.Kind == StatusClickToPlay {
		c.publishLocked(Status{Kind: StatusReady, Message: "Playing"})
	}
	return nil
}

// Pause pauses the player.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		return ErrTornDown
	}
	c.cfg.Player.Pause()
	return nil
}

// Teardown releases transient resources and disposes the engine. It is
// terminal and idempotent.
func (c *Controller) Teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		return
	}
	c.tornDown = true
	c.gen++
	transient := c.transient
	c.transient = nil
	eng := c.engine
	c.engine = nil
	c.source = manifest.Source{}
	c.publishLocked(Status{Kind: c.status.Kind, Message: "Session closed"})
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	released := releaseAll(transient)
	if eng != nil {
		eng.Dispose()
	}
	c.logger.Info().
		Str(xglog.FieldEvent, "session.teardown").
		Int("released", released).
		Msg("session torn down")
}

func (c *Controller) transitionLocked(ev eventKind) {
	tr, ok := transitionFor(c.state, ev)
	if !ok {
		c.logger.Error().
			Str(xglog.FieldEvent, "session.invalid_transition").
			Str(xglog.FieldOldState, string(c.state)).
			Str("trigger", string(ev)).
			Msg("transition not allowed")
		return
	}
	c.logger.Debug().
		Str(xglog.FieldEvent, "session.transition").
		Str(xglog.FieldOldState, string(tr.From)).
		Str(xglog.FieldNewState, string(tr.To)).
		Uint64(xglog.FieldGeneration, c.gen).
		Msg("state transition")
	metrics.RecordSessionTransition(string(tr.From), string(tr.To))
	c.state = tr.To
}

func releaseAll(rs []manifest.Releaser) int {
	n := 0
	for _, r := range rs {
		if r.Release() {
			n++
		}
	}
	return n
}

func fatalMessage(q quality.Tier) string {
	return fmt.Sprintf("Playback failed at %s; try another quality", q.Label())
}
