// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/relayplay/internal/api"
	"github.com/ManuGH/relayplay/internal/config"
	"github.com/ManuGH/relayplay/internal/engine"
	"github.com/ManuGH/relayplay/internal/health"
	"github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/proxy"
	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/relay"
	"github.com/ManuGH/relayplay/internal/resolver"
	"github.com/ManuGH/relayplay/internal/session"
	"github.com/ManuGH/relayplay/internal/telemetry"
)

// Runtime is the wired object graph behind serve.
type Runtime struct {
	Config    config.AppConfig
	Registry  *manifest.Registry
	Resolver  *resolver.Resolver
	Pool      *relay.Pool
	Router    *proxy.Router
	Health    *health.Manager
	API       *api.Server
	Telemetry *telemetry.Provider
}

// Build wires every component from cfg. The shared relay pool and the blob
// registry live as long as the runtime; sessions come and go.
func Build(ctx context.Context, cfg config.AppConfig) (*Runtime, error) {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "relayplay",
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	rt := &Runtime{Config: cfg, Registry: manifest.NewRegistry(), Telemetry: tp}

	rt.Resolver, err = resolver.New(resolver.Config{
		BaseURL:            cfg.Resolver.BaseURL,
		CanonicalShareBase: cfg.Resolver.CanonicalShareBase,
		Timeout:            cfg.Resolver.Timeout,
	}, rt.Registry)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	rt.Pool, err = relay.NewPool(cfg.Relays.Pool)
	if err != nil {
		return nil, fmt.Errorf("relay pool: %w", err)
	}
	rt.Router, err = proxy.NewRouter(proxy.Config{
		Primary:        cfg.Relays.Primary,
		StorageDomains: cfg.Relays.StorageDomains,
		ResolverHost:   rt.Resolver.Host(),
	}, rt.Pool)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	engines := engine.NewFactory(engine.Options{
		Client:           proxy.NewClient(otelhttp.NewTransport(http.DefaultTransport)),
		Registry:         rt.Registry,
		MaxRetries:       cfg.Engine.MaxRetries,
		RetryDelay:       cfg.Engine.RetryDelay,
		RequestTimeout:   cfg.Engine.RequestTimeout,
		Concurrency:      cfg.Engine.Concurrency,
		FetchRate:        cfg.Engine.FetchRate,
		PrefetchSegments: cfg.Engine.PrefetchSegments,
	})
	defaultQuality, err := quality.Parse(cfg.Playback.DefaultQuality)
	if err != nil {
		return nil, err
	}
	sessions := func() (*session.Controller, error) {
		return session.New(session.Config{
			Resolver:           rt.Resolver,
			Engines:            engines,
			Player:             engine.NewVirtualPlayer(),
			Rewrite:            rt.Router.Rewrite,
			CanonicalShareBase: cfg.Resolver.CanonicalShareBase,
			DefaultQuality:     defaultQuality,
			Autoplay:           cfg.Playback.Autoplay,
		})
	}

	rt.Health = health.NewManager(cfg.Version, 0)
	rt.Health.RegisterChecker(health.NewPingChecker("resolver", rt.Resolver))
	rt.Health.RegisterChecker(health.NewRelayPoolChecker(rt.Pool))

	rt.API, err = api.New(api.Config{
		Version:            cfg.Version,
		Sessions:           sessions,
		Router:             rt.Router,
		Health:             rt.Health,
		RateLimitPerMinute: cfg.API.RateLimitPerMinute,
		AllowedOrigins:     cfg.API.AllowedOrigins,
		TracingService:     tracingService(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("api: %w", err)
	}
	rt.Health.RegisterChecker(health.NewFuncChecker("session", rt.checkSession))
	return rt, nil
}

// checkSession reports a failed playback session as degraded; the service can
// still accept a new start or a retry.
func (rt *Runtime) checkSession(context.Context) health.CheckResult {
	snap := rt.API.Session().Snapshot()
	if snap.State == session.StateFailed {
		return health.CheckResult{Status: health.StatusDegraded, Message: snap.Status.Text()}
	}
	return health.CheckResult{Status: health.StatusHealthy, Message: string(snap.State)}
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return "relayplay-api"
}

// NewManager builds the server manager for rt. Hooks run in reverse order:
// the session is torn down first, then spans are flushed.
func (rt *Runtime) NewManager(cfg ServerConfig) (*Manager, error) {
	m, err := NewManager(cfg, rt.API.Handler(), log.WithComponent("daemon"))
	if err != nil {
		return nil, err
	}
	m.RegisterShutdownHook("telemetry", rt.Telemetry.Shutdown)
	m.RegisterShutdownHook("session", func(context.Context) error {
		rt.API.Close()
		return nil
	})
	return m, nil
}
