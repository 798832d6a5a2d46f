// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the control API the host page drives playback through.
package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/relayplay/internal/api/middleware"
	"github.com/ManuGH/relayplay/internal/health"
	"github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/proxy"
	"github.com/ManuGH/relayplay/internal/session"
)

const (
	defaultMaxWait   = 60 * time.Second
	defaultKeepAlive = 15 * time.Second
)

// SessionFactory builds a fresh idle controller.
type SessionFactory func() (*session.Controller, error)

// Config wires a Server.
type Config struct {
	Version            string
	Sessions           SessionFactory
	Router             *proxy.Router
	Health             *health.Manager
	RateLimitPerMinute int
	AllowedOrigins     []string
	TracingService     string
	// MaxWait caps the wait query parameter of session requests.
	MaxWait time.Duration
	// KeepAlive is the comment interval on the event stream.
	KeepAlive time.Duration
}

// Server owns the single live session and exposes it over HTTP.
type Server struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	current *session.Controller
	closed  bool
}

// New creates the server and its initial idle session.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("api: session factory is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("api: router is required")
	}
	if cfg.Health == nil {
		cfg.Health = health.NewManager(cfg.Version, 0)
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	ctrl, err := cfg.Sessions()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     cfg,
		logger:  log.WithComponent("api"),
		current: ctrl,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.cfg.Health.ServeHealth)
	r.Get("/readyz", s.cfg.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		middleware.ApplyStack(r, middleware.StackConfig{
			AllowedOrigins:     s.cfg.AllowedOrigins,
			EnableMetrics:      true,
			TracingService:     s.cfg.TracingService,
			EnableLogging:      true,
			RateLimitPerMinute: s.cfg.RateLimitPerMinute,
		})
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/session", s.handleGetSession)
			r.Post("/session", s.handleStartSession)
			r.Delete("/session", s.handleDeleteSession)
			r.Put("/session/quality", s.handleSelectQuality)
			r.Get("/session/qualities", s.handleQualities)
			r.Get("/session/events", s.handleEvents)
			r.Post("/session/play", s.handlePlay)
			r.Post("/session/pause", s.handlePause)
			r.Get("/route", s.handleRoute)
		})
	})
	return r
}

// Session returns the live controller.
func (s *Server) Session() *session.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Reset tears the live session down and replaces it with a fresh idle one.
func (s *Server) Reset() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return session.ErrTornDown
	}
	old := s.current
	next, err := s.cfg.Sessions()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	s.mu.Unlock()

	old.Teardown()
	s.logger.Info().
		Str(log.FieldEvent, "api.session_reset").
		Str("previous", old.ID()).
		Str(log.FieldSessionID, next.ID()).
		Msg("session replaced")
	return nil
}

// Close tears down the live session for good. Later calls return ErrTornDown.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ctrl := s.current
	s.mu.Unlock()
	ctrl.Teardown()
}
