// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package relay holds the CORS relay endpoints and the round-robin pool over them.
package relay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/ManuGH/relayplay/internal/metrics"
)

// ErrEmptyPool is returned when a pool is configured without endpoints.
var ErrEmptyPool = errors.New("relay pool has no endpoints")

// Endpoint is the base URL of one relay. Relays accept GET {base}/?url={target}.
type Endpoint string

// ParseEndpoint validates that raw is an absolute http(s) URL.
func ParseEndpoint(raw string) (Endpoint, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse relay %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("relay %q must be an absolute http(s) URL", raw)
	}
	return Endpoint(strings.TrimRight(raw, "/")), nil
}

// Wrap returns the relay URL that fetches target. The target is query-escaped
// as the single url parameter; no other parameters are added.
func (e Endpoint) Wrap(target string) string {
	return strings.TrimRight(string(e), "/") + "/?url=" + url.QueryEscape(target)
}

func (e Endpoint) String() string {
	return string(e)
}

// Pool is a fixed, ordered set of interchangeable relays selected round-robin.
// There is no health tracking: a failing relay keeps its turn in the rotation.
type Pool struct {
	endpoints []Endpoint
	counter   atomic.Uint64
}

// NewPool builds a pool from raw endpoint URLs, preserving order.
func NewPool(raw []string) (*Pool, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPool
	}
	eps := make([]Endpoint, 0, len(raw))
	for _, r := range raw {
		ep, err := ParseEndpoint(r)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return &Pool{endpoints: eps}, nil
}

// Next returns the next relay in rotation and advances the counter.
func (p *Pool) Next() Endpoint {
	n := p.counter.Add(1) - 1
	ep := p.endpoints[n%uint64(len(p.endpoints))]
	metrics.RecordRelaySelection(ep.String())
	return ep
}

// Peek returns the relay the next call to Next will pick, without advancing.
func (p *Pool) Peek() Endpoint {
	n := p.counter.Load()
	return p.endpoints[n%uint64(len(p.endpoints))]
}

// Len is the pool size.
func (p *Pool) Len() int {
	return len(p.endpoints)
}
