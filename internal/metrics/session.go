// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayplay_resolutions_total",
		Help: "Upstream manifest resolutions by path (share, start) and outcome",
	}, []string{"path", "outcome"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayplay_session_transitions_total",
		Help: "Session controller state transitions",
	}, []string{"from", "to"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relayplay_session_state",
		Help: "Current session controller state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	qualityClamps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relayplay_quality_clamps_total",
		Help: "Quality requests replaced by the lowest tier for restricted references",
	})
)

var sessionStates = []string{"idle", "resolving", "attaching", "ready", "failed"}

// RecordResolution counts one resolver call.
func RecordResolution(path, outcome string) {
	resolutions.WithLabelValues(path, outcome).Inc()
}

// RecordSessionTransition counts a transition and updates the state gauge.
func RecordSessionTransition(from, to string) {
	sessionTransitions.WithLabelValues(from, to).Inc()
	SetSessionState(to)
}

// SetSessionState marks state as the active one.
func SetSessionState(state string) {
	for _, s := range sessionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		sessionState.WithLabelValues(s).Set(value)
	}
}

// RecordQualityClamp counts a clamped quality request.
func RecordQualityClamp() {
	qualityClamps.Inc()
}

// Resolutions exposes the collector for tests.
func Resolutions() *prometheus.CounterVec {
	return resolutions
}
