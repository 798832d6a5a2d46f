// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// ErrConfigExists is returned by WriteDefault when path exists and force is false.
var ErrConfigExists = errors.New("config file already exists")

const starterHeader = `# relayplay configuration
# Environment variables (RELAYPLAY_*) override every value below.
`

// StarterFile returns the file written by WriteDefault: the built-in
// defaults plus example relay URLs that must be replaced.
func StarterFile() FileConfig {
	d := Defaults()
	autoplay := d.Playback.Autoplay
	retries := d.Engine.MaxRetries
	concurrency := d.Engine.Concurrency
	fetchRate := d.Engine.FetchRate
	prefetch := d.Engine.PrefetchSegments
	rateLimit := d.API.RateLimitPerMinute
	enabled := d.Telemetry.Enabled
	sampling := d.Telemetry.SamplingRate

	return FileConfig{
		ListenAddr: d.ListenAddr,
		LogLevel:   d.LogLevel,
		Resolver: &ResolverFileConfig{
			BaseURL:            d.Resolver.BaseURL,
			CanonicalShareBase: d.Resolver.CanonicalShareBase,
			Timeout:            d.Resolver.Timeout.String(),
		},
		Relays: &RelaysFileConfig{
			Primary:        "https://relay.example.com",
			Pool:           []string{"https://relay1.example.com", "https://relay2.example.com"},
			StorageDomains: d.Relays.StorageDomains,
		},
		Playback: &PlaybackFileConfig{
			DefaultQuality: d.Playback.DefaultQuality,
			Autoplay:       &autoplay,
		},
		Engine: &EngineFileConfig{
			MaxRetries:       &retries,
			RetryDelay:       d.Engine.RetryDelay.String(),
			RequestTimeout:   d.Engine.RequestTimeout.String(),
			Concurrency:      &concurrency,
			FetchRate:        &fetchRate,
			PrefetchSegments: &prefetch,
		},
		API: &APIFileConfig{
			RateLimitPerMinute: &rateLimit,
			AllowedOrigins:     d.API.AllowedOrigins,
		},
		Telemetry: &TelemetryFileConfig{
			Enabled:      &enabled,
			Exporter:     d.Telemetry.Exporter,
			Endpoint:     d.Telemetry.Endpoint,
			SamplingRate: &sampling,
		},
	}
}

// WriteDefault writes the starter file to path atomically.
func WriteDefault(path string, force bool) error {
	path = filepath.Clean(path)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	body, err := yaml.Marshal(StarterFile())
	if err != nil {
		return fmt.Errorf("marshal starter config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(append([]byte(starterHeader), body...)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit config: %w", err)
	}
	return nil
}
