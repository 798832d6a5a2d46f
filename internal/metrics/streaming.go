// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngineFetchTotal counts engine fetches by resource kind and outcome.
	EngineFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayplay_engine_fetch_total",
		Help: "Total engine fetches by kind (manifest, segment) and result (ok, retry, failed)",
	}, []string{"kind", "result"})

	// EngineFetchDuration tracks how long a single routed fetch took, retries excluded.
	EngineFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relayplay_engine_fetch_duration_seconds",
		Help:    "Duration of one routed engine fetch attempt",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"kind"})

	// SessionStartupLatency tracks the time from a start/switch request until the engine is ready.
	SessionStartupLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relayplay_session_startup_latency_seconds",
		Help:    "Time from start or quality switch until the manifest is parsed",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30},
	})
)

// RecordEngineFetch records the outcome of a fetch attempt.
func RecordEngineFetch(kind, result string) {
	EngineFetchTotal.WithLabelValues(kind, result).Inc()
}

// ObserveEngineFetchDuration records the duration of one fetch attempt.
func ObserveEngineFetchDuration(kind string, d time.Duration) {
	EngineFetchDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveSessionStartupLatency records the time until the session reached ready.
func ObserveSessionStartupLatency(d time.Duration) {
	SessionStartupLatency.Observe(d.Seconds())
}
