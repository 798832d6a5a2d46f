// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proxy

import "net/http"

// credentialHeaders never leave the process; relays are third parties.
var credentialHeaders = []string{"Cookie", "Authorization", "Proxy-Authorization"}

// Transport strips credentials from every outbound request.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req
	for _, h := range credentialHeaders {
		if req.Header.Get(h) != "" {
			// RoundTrippers must not mutate the caller's request.
			out = req.Clone(req.Context())
			break
		}
	}
	for _, h := range credentialHeaders {
		out.Header.Del(h)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(out)
}

// NewClient returns a client with no cookie jar over a credential-stripping transport.
func NewClient(base http.RoundTripper) *http.Client {
	return &http.Client{Transport: NewTransport(base)}
}
