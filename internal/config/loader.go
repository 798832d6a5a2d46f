// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment keys.
const (
	EnvListenAddr       = "RELAYPLAY_LISTEN_ADDR"
	EnvLogLevel         = "RELAYPLAY_LOG_LEVEL"
	EnvResolverURL      = "RELAYPLAY_RESOLVER_URL"
	EnvCanonicalBase    = "RELAYPLAY_CANONICAL_SHARE_BASE"
	EnvResolverTimeout  = "RELAYPLAY_RESOLVER_TIMEOUT"
	EnvRelayPrimary     = "RELAYPLAY_RELAY_PRIMARY"
	EnvRelayPool        = "RELAYPLAY_RELAY_POOL"
	EnvStorageDomains   = "RELAYPLAY_STORAGE_DOMAINS"
	EnvDefaultQuality   = "RELAYPLAY_DEFAULT_QUALITY"
	EnvAutoplay         = "RELAYPLAY_AUTOPLAY"
	EnvEngineRetries    = "RELAYPLAY_ENGINE_MAX_RETRIES"
	EnvEngineRetryDelay = "RELAYPLAY_ENGINE_RETRY_DELAY"
	EnvEngineTimeout    = "RELAYPLAY_ENGINE_REQUEST_TIMEOUT"
	EnvEngineConcurrent = "RELAYPLAY_ENGINE_CONCURRENCY"
	EnvEngineFetchRate  = "RELAYPLAY_ENGINE_FETCH_RATE"
	EnvEnginePrefetch   = "RELAYPLAY_ENGINE_PREFETCH_SEGMENTS"
	EnvRateLimit        = "RELAYPLAY_API_RATE_LIMIT"
	EnvAllowedOrigins   = "RELAYPLAY_API_ALLOWED_ORIGINS"
	EnvTelemetryEnabled = "RELAYPLAY_TELEMETRY_ENABLED"
	EnvTelemetryExport  = "RELAYPLAY_TELEMETRY_EXPORTER"
	EnvTelemetryURL     = "RELAYPLAY_TELEMETRY_ENDPOINT"
	EnvTelemetrySampler = "RELAYPLAY_TELEMETRY_SAMPLING_RATE"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key consulted, for diagnostics
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg, err := l.LoadUnvalidated()
	if err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadUnvalidated merges file and environment over the defaults without
// running Validate. Subcommands that need only one section use it.
func (l *Loader) LoadUnvalidated() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	if f.ListenAddr != "" {
		cfg.ListenAddr = f.ListenAddr
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if r := f.Resolver; r != nil {
		if r.BaseURL != "" {
			cfg.Resolver.BaseURL = r.BaseURL
		}
		if r.CanonicalShareBase != "" {
			cfg.Resolver.CanonicalShareBase = r.CanonicalShareBase
		}
		if err := mergeDuration(&cfg.Resolver.Timeout, "resolver.timeout", r.Timeout); err != nil {
			return err
		}
	}
	if r := f.Relays; r != nil {
		if r.Primary != "" {
			cfg.Relays.Primary = r.Primary
		}
		if len(r.Pool) > 0 {
			cfg.Relays.Pool = r.Pool
		}
		if len(r.StorageDomains) > 0 {
			cfg.Relays.StorageDomains = r.StorageDomains
		}
	}
	if p := f.Playback; p != nil {
		if p.DefaultQuality != "" {
			cfg.Playback.DefaultQuality = p.DefaultQuality
		}
		if p.Autoplay != nil {
			cfg.Playback.Autoplay = *p.Autoplay
		}
	}
	if e := f.Engine; e != nil {
		if e.MaxRetries != nil {
			cfg.Engine.MaxRetries = *e.MaxRetries
		}
		if err := mergeDuration(&cfg.Engine.RetryDelay, "engine.retryDelay", e.RetryDelay); err != nil {
			return err
		}
		if err := mergeDuration(&cfg.Engine.RequestTimeout, "engine.requestTimeout", e.RequestTimeout); err != nil {
			return err
		}
		if e.Concurrency != nil {
			cfg.Engine.Concurrency = *e.Concurrency
		}
		if e.FetchRate != nil {
			cfg.Engine.FetchRate = *e.FetchRate
		}
		if e.PrefetchSegments != nil {
			cfg.Engine.PrefetchSegments = *e.PrefetchSegments
		}
	}
	if a := f.API; a != nil {
		if a.RateLimitPerMinute != nil {
			cfg.API.RateLimitPerMinute = *a.RateLimitPerMinute
		}
		if len(a.AllowedOrigins) > 0 {
			cfg.API.AllowedOrigins = a.AllowedOrigins
		}
	}
	if t := f.Telemetry; t != nil {
		if t.Enabled != nil {
			cfg.Telemetry.Enabled = *t.Enabled
		}
		if t.Exporter != "" {
			cfg.Telemetry.Exporter = t.Exporter
		}
		if t.Endpoint != "" {
			cfg.Telemetry.Endpoint = t.Endpoint
		}
		if t.SamplingRate != nil {
			cfg.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
	return nil
}

func mergeDuration(dst *time.Duration, field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.ListenAddr = l.envString(EnvListenAddr, cfg.ListenAddr)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)

	cfg.Resolver.BaseURL = l.envString(EnvResolverURL, cfg.Resolver.BaseURL)
	cfg.Resolver.CanonicalShareBase = l.envString(EnvCanonicalBase, cfg.Resolver.CanonicalShareBase)
	cfg.Resolver.Timeout = l.envDuration(EnvResolverTimeout, cfg.Resolver.Timeout)

	cfg.Relays.Primary = l.envString(EnvRelayPrimary, cfg.Relays.Primary)
	cfg.Relays.Pool = l.envList(EnvRelayPool, cfg.Relays.Pool)
	cfg.Relays.StorageDomains = l.envList(EnvStorageDomains, cfg.Relays.StorageDomains)

	cfg.Playback.DefaultQuality = l.envString(EnvDefaultQuality, cfg.Playback.DefaultQuality)
	cfg.Playback.Autoplay = l.envBool(EnvAutoplay, cfg.Playback.Autoplay)

	cfg.Engine.MaxRetries = l.envInt(EnvEngineRetries, cfg.Engine.MaxRetries)
	cfg.Engine.RetryDelay = l.envDuration(EnvEngineRetryDelay, cfg.Engine.RetryDelay)
	cfg.Engine.RequestTimeout = l.envDuration(EnvEngineTimeout, cfg.Engine.RequestTimeout)
	cfg.Engine.Concurrency = l.envInt(EnvEngineConcurrent, cfg.Engine.Concurrency)
	cfg.Engine.FetchRate = l.envFloat(EnvEngineFetchRate, cfg.Engine.FetchRate)
	cfg.Engine.PrefetchSegments = l.envInt(EnvEnginePrefetch, cfg.Engine.PrefetchSegments)

	cfg.API.RateLimitPerMinute = l.envInt(EnvRateLimit, cfg.API.RateLimitPerMinute)
	cfg.API.AllowedOrigins = l.envList(EnvAllowedOrigins, cfg.API.AllowedOrigins)

	cfg.Telemetry.Enabled = l.envBool(EnvTelemetryEnabled, cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvTelemetryExport, cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvTelemetryURL, cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvTelemetrySampler, cfg.Telemetry.SamplingRate)
}
