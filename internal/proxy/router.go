// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package proxy decides, for every URL the streaming engine fetches, whether the
// request goes direct or through a relay, and rewrites it accordingly.
package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/metrics"
	"github.com/ManuGH/relayplay/internal/relay"
)

// Class is the routing classification of one request.
type Class string

const (
	ClassDedicatedRelay Class = "dedicated_relay"
	ClassPassThrough    Class = "pass_through"
	ClassPooledRelay    Class = "pooled_relay"
)

// Decision is the result of routing one URL.
type Decision struct {
	Class Class
	URL   string
	Relay relay.Endpoint // empty for pass-through
}

// Config configures a Router.
type Config struct {
	Primary        string
	StorageDomains []string
	ResolverHost   string
}

// Router rewrites outbound engine requests. It holds no per-session state; the
// only mutable state is the round-robin counter inside the shared pool.
type Router struct {
	primary      relay.Endpoint
	pool         *relay.Pool
	domains      []string
	resolverHost string
}

// NewRouter builds a Router over a shared pool.
func NewRouter(cfg Config, pool *relay.Pool) (*Router, error) {
	if pool == nil {
		return nil, relay.ErrEmptyPool
	}
	primary, err := relay.ParseEndpoint(cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary relay: %w", err)
	}
	domains := make([]string, 0, len(cfg.StorageDomains))
	for _, d := range cfg.StorageDomains {
		n := normalizeHost(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if n != "" {
			domains = append(domains, n)
		}
	}
	return &Router{
		primary:      primary,
		pool:         pool,
		domains:      domains,
		resolverHost: normalizeHost(cfg.ResolverHost),
	}, nil
}

// Classify returns the class of rawURL without advancing the pool.
// Rules apply in order; unparseable URLs fall through to the pooled relay.
func (r *Router) Classify(rawURL string) Class {
	if manifest.IsBlobURL(rawURL) {
		// A blob handle never carries a storage host.
		return ClassPassThrough
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ClassPooledRelay
	}
	host := normalizeHost(u.Host)
	if r.isStorageHost(host) {
		return ClassDedicatedRelay
	}
	if r.resolverHost != "" && host == r.resolverHost {
		return ClassPassThrough
	}
	return ClassPooledRelay
}

// Route classifies rawURL and rewrites it. It is the engine's rewrite hook.
func (r *Router) Route(rawURL string) Decision {
	class := r.Classify(rawURL)
	metrics.RecordRouteDecision(string(class))

	switch class {
	case ClassDedicatedRelay:
		return Decision{Class: class, URL: r.primary.Wrap(rawURL), Relay: r.primary}
	case ClassPassThrough:
		return Decision{Class: class, URL: rawURL}
	default:
		ep := r.pool.Next()
		return Decision{Class: ClassPooledRelay, URL: ep.Wrap(rawURL), Relay: ep}
	}
}

// Preview reports the decision Route would make for rawURL without recording
// it or advancing the pool rotation.
func (r *Router) Preview(rawURL string) Decision {
	switch class := r.Classify(rawURL); class {
	case ClassDedicatedRelay:
		return Decision{Class: class, URL: r.primary.Wrap(rawURL), Relay: r.primary}
	case ClassPassThrough:
		return Decision{Class: class, URL: rawURL}
	default:
		ep := r.pool.Peek()
		return Decision{Class: ClassPooledRelay, URL: ep.Wrap(rawURL), Relay: ep}
	}
}

// Rewrite adapts Route to a func(string) string hook.
func (r *Router) Rewrite(rawURL string) string {
	return r.Route(rawURL).URL
}

func (r *Router) isStorageHost(host string) bool {
	for _, d := range r.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// normalizeHost lower-cases, strips the port and converts IDN labels to ASCII.
func normalizeHost(hostport string) string {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}
