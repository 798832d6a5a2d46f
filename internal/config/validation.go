// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/relayplay/internal/quality"
)

// Validate checks a resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := &ValidationError{}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		v.add("listenAddr is required")
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			v.add("logLevel %q is not a valid level", cfg.LogLevel)
		}
	}

	checkAbsURL(v, "resolver.baseURL", cfg.Resolver.BaseURL)
	checkAbsURL(v, "resolver.canonicalShareBase", cfg.Resolver.CanonicalShareBase)
	if cfg.Resolver.Timeout <= 0 {
		v.add("resolver.timeout must be positive")
	}

	if strings.TrimSpace(cfg.Relays.Primary) == "" {
		v.add("relays.primary is required")
	} else {
		checkAbsURL(v, "relays.primary", cfg.Relays.Primary)
	}
	if len(cfg.Relays.Pool) == 0 {
		v.add("relays.pool must list at least one relay")
	}
	for i, r := range cfg.Relays.Pool {
		checkAbsURL(v, fmt.Sprintf("relays.pool[%d]", i), r)
	}

	if _, err := quality.Parse(cfg.Playback.DefaultQuality); err != nil {
		v.add("playback.defaultQuality: %v", err)
	}

	if cfg.Engine.MaxRetries < 0 {
		v.add("engine.maxRetries must not be negative")
	}
	if cfg.Engine.RetryDelay < 0 {
		v.add("engine.retryDelay must not be negative")
	}
	if cfg.Engine.RequestTimeout <= 0 {
		v.add("engine.requestTimeout must be positive")
	}
	if cfg.Engine.Concurrency < 1 {
		v.add("engine.concurrency must be at least 1")
	}
	if cfg.Engine.FetchRate < 0 {
		v.add("engine.fetchRate must not be negative")
	}
	if cfg.Engine.PrefetchSegments < 0 {
		v.add("engine.prefetchSegments must not be negative")
	}

	if cfg.API.RateLimitPerMinute < 0 {
		v.add("api.rateLimitPerMinute must not be negative")
	}

	switch cfg.Telemetry.Exporter {
	case "grpc", "http":
	default:
		v.add("telemetry.exporter must be grpc or http, got %q", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		v.add("telemetry.samplingRate must be within [0, 1]")
	}
	if cfg.Telemetry.Enabled && strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		v.add("telemetry.endpoint is required when telemetry is enabled")
	}

	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func checkAbsURL(v *ValidationError, field, raw string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.add("%s must be an absolute http(s) URL, got %q", field, raw)
	}
}
