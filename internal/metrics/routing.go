// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routeDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayplay_route_decisions_total",
		Help: "Request router decisions by class (dedicated_relay, pass_through, pooled_relay)",
	}, []string{"class"})

	relaySelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayplay_relay_selections_total",
		Help: "Round-robin relay pool selections by endpoint",
	}, []string{"endpoint"})
)

// RecordRouteDecision increments the decision counter for a route class.
func RecordRouteDecision(class string) {
	routeDecisions.WithLabelValues(class).Inc()
}

// RecordRelaySelection increments the selection counter for a pool endpoint.
func RecordRelaySelection(endpoint string) {
	relaySelections.WithLabelValues(endpoint).Inc()
}

// RouteDecisions exposes the collector for tests.
func RouteDecisions() *prometheus.CounterVec {
	return routeDecisions
}
