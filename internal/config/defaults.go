// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// DefaultStorageDomains are the hosts whose media must go through the primary relay.
var DefaultStorageDomains = []string{
	"1024tera.com",
	"terabox.com",
	"teraboxcdn.com",
	"freeterabox.com",
	"4funbox.com",
	"1024terabox.com",
}

// Defaults returns the built-in configuration. Relay URLs are left empty:
// they are deployment specific and Validate requires them.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr: ":8088",
		LogLevel:   "info",
		Resolver: ResolverConfig{
			BaseURL:            "http://127.0.0.1:8000",
			CanonicalShareBase: "https://www.terabox.com/s/",
			Timeout:            30 * time.Second,
		},
		Relays: RelaysConfig{
			StorageDomains: append([]string(nil), DefaultStorageDomains...),
		},
		Playback: PlaybackConfig{
			DefaultQuality: "M3U8_AUTO_360",
			Autoplay:       true,
		},
		Engine: EngineConfig{
			MaxRetries:       3,
			RetryDelay:       time.Second,
			RequestTimeout:   20 * time.Second,
			Concurrency:      4,
			FetchRate:        10,
			PrefetchSegments: 3,
		},
		API: APIConfig{
			RateLimitPerMinute: 120,
			AllowedOrigins:     []string{"*"},
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
