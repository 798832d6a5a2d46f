// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	ListenAddr string
	LogLevel   string
	Resolver   ResolverConfig
	Relays     RelaysConfig
	Playback   PlaybackConfig
	Engine     EngineConfig
	API        APIConfig
	Telemetry  TelemetryConfig
}

// ResolverConfig points at the upstream resolution API.
type ResolverConfig struct {
	BaseURL            string
	CanonicalShareBase string
	Timeout            time.Duration
}

// RelaysConfig lists the CORS relays.
type RelaysConfig struct {
	Primary        string
	Pool           []string
	StorageDomains []string
}

// PlaybackConfig holds session defaults.
type PlaybackConfig struct {
	DefaultQuality string
	Autoplay       bool
}

// EngineConfig tunes the HLS engine.
type EngineConfig struct {
	MaxRetries       int
	RetryDelay       time.Duration
	RequestTimeout   time.Duration
	Concurrency      int
	FetchRate        float64
	PrefetchSegments int
}

// APIConfig tunes the control API.
type APIConfig struct {
	RateLimitPerMinute int
	AllowedOrigins     []string
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string // "grpc" or "http"
	Endpoint     string
	SamplingRate float64
}

// FileConfig is the YAML shape. Pointers distinguish "unset" from zero values.
type FileConfig struct {
	ListenAddr string               `yaml:"listenAddr,omitempty"`
	LogLevel   string               `yaml:"logLevel,omitempty"`
	Resolver   *ResolverFileConfig  `yaml:"resolver,omitempty"`
	Relays     *RelaysFileConfig    `yaml:"relays,omitempty"`
	Playback   *PlaybackFileConfig  `yaml:"playback,omitempty"`
	Engine     *EngineFileConfig    `yaml:"engine,omitempty"`
	API        *APIFileConfig       `yaml:"api,omitempty"`
	Telemetry  *TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type ResolverFileConfig struct {
	BaseURL            string `yaml:"baseURL,omitempty"`
	CanonicalShareBase string `yaml:"canonicalShareBase,omitempty"`
	Timeout            string `yaml:"timeout,omitempty"`
}

type RelaysFileConfig struct {
	Primary        string   `yaml:"primary,omitempty"`
	Pool           []string `yaml:"pool,omitempty"`
	StorageDomains []string `yaml:"storageDomains,omitempty"`
}

type PlaybackFileConfig struct {
	DefaultQuality string `yaml:"defaultQuality,omitempty"`
	Autoplay       *bool  `yaml:"autoplay,omitempty"`
}

type EngineFileConfig struct {
	MaxRetries       *int     `yaml:"maxRetries,omitempty"`
	RetryDelay       string   `yaml:"retryDelay,omitempty"`
	RequestTimeout   string   `yaml:"requestTimeout,omitempty"`
	Concurrency      *int     `yaml:"concurrency,omitempty"`
	FetchRate        *float64 `yaml:"fetchRate,omitempty"`
	PrefetchSegments *int     `yaml:"prefetchSegments,omitempty"`
}

type APIFileConfig struct {
	RateLimitPerMinute *int     `yaml:"rateLimitPerMinute,omitempty"`
	AllowedOrigins     []string `yaml:"allowedOrigins,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
