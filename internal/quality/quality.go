// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package quality defines the fixed set of encoding tiers a manifest can be requested at.
package quality

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier is one encoding profile of the host. Tiers are ordered lowest first for
// display; selection is always an exact match.
type Tier string

const (
	Auto360  Tier = "M3U8_AUTO_360"
	Auto480  Tier = "M3U8_AUTO_480"
	Auto720  Tier = "M3U8_AUTO_720"
	Auto1080 Tier = "M3U8_AUTO_1080"
)

const tierPrefix = "M3U8_AUTO_"

var ordered = []Tier{Auto360, Auto480, Auto720, Auto1080}

// All returns every tier, lowest first.
func All() []Tier {
	out := make([]Tier, len(ordered))
	copy(out, ordered)
	return out
}

// Lowest returns the lowest tier, the only one restricted references may use.
func Lowest() Tier {
	return ordered[0]
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	for _, o := range ordered {
		if o == t {
			return true
		}
	}
	return false
}

// Number returns the vertical resolution used in upstream queries (e.g. 720).
func (t Tier) Number() int {
	n, err := strconv.Atoi(strings.TrimPrefix(string(t), tierPrefix))
	if err != nil {
		return 0
	}
	return n
}

// Label is the short human form shown next to the quality selector.
func (t Tier) Label() string {
	return fmt.Sprintf("%dp", t.Number())
}

func (t Tier) String() string {
	return string(t)
}

// Parse accepts "720", "720p" or "M3U8_AUTO_720" (case-insensitive).
func Parse(s string) (Tier, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	raw = strings.TrimSuffix(raw, "P")
	if !strings.HasPrefix(raw, tierPrefix) {
		raw = tierPrefix + raw
	}
	t := Tier(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown quality tier %q", s)
	}
	return t, nil
}
