// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package capability decides which quality tiers the active reference may use.
package capability

import (
	"fmt"

	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/reference"
)

// QualityNotAllowedError describes a tier request the reference cannot serve.
// The gate never returns it as a failure; it travels as the warning of a clamp.
type QualityNotAllowedError struct {
	Kind      reference.Kind
	Requested quality.Tier
	Granted   quality.Tier
}

func (e *QualityNotAllowedError) Error() string {
	return fmt.Sprintf("%s is not available for %s links; playing %s instead",
		e.Requested.Label(), e.Kind, e.Granted.Label())
}

// Decision is the outcome of ClampOrReject.
type Decision struct {
	Quality quality.Tier
	// Warning is set when the requested tier was replaced.
	Warning *QualityNotAllowedError
}

// Clamped reports whether the requested tier was replaced.
func (d Decision) Clamped() bool {
	return d.Warning != nil
}

// IsQualityAllowed is true for any tier on a Share reference and only for the
// lowest tier on a Start reference.
func IsQualityAllowed(ref reference.Reference, q quality.Tier) bool {
	if !q.Valid() {
		return false
	}
	switch ref.(type) {
	case reference.Share:
		return true
	case reference.Start:
		return q == quality.Lowest()
	default:
		return false
	}
}

// ClampOrReject degrades a disallowed request to the lowest tier and reports
// why instead of failing it.
func ClampOrReject(ref reference.Reference, requested quality.Tier) Decision {
	if IsQualityAllowed(ref, requested) {
		return Decision{Quality: requested}
	}
	granted := quality.Lowest()
	kind := reference.Kind("")
	if ref != nil {
		kind = ref.Kind()
	}
	return Decision{
		Quality: granted,
		Warning: &QualityNotAllowedError{Kind: kind, Requested: requested, Granted: granted},
	}
}

// Selectable lists the tiers the quality selector should offer, lowest first.
func Selectable(ref reference.Reference) []quality.Tier {
	var out []quality.Tier
	for _, q := range quality.All() {
		if IsQualityAllowed(ref, q) {
			out = append(out, q)
		}
	}
	return out
}
