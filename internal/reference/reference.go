// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package reference models the user- or host-supplied identifier of the content to play.
package reference

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrNoReference is returned when none of the start parameters carries a reference.
var ErrNoReference = errors.New("no video reference provided")

// Kind tags the active reference variant.
type Kind string

const (
	KindShare Kind = "share"
	KindStart Kind = "start"
)

// Reference is either a Share (full-featured) or a Start (restricted) reference.
// The set of variants is closed.
type Reference interface {
	Kind() Kind
	// Value is the string sent upstream: the share URL or the start token.
	Value() string
	sealed()
}

// Share is a full reference, usable at any quality tier.
type Share struct {
	URL string
}

func (Share) Kind() Kind      { return KindShare }
func (s Share) Value() string { return s.URL }
func (Share) sealed()         {}

// Start is a restricted reference, usable only at the lowest tier.
type Start struct {
	Token string
}

func (Start) Kind() Kind      { return KindStart }
func (s Start) Value() string { return s.Token }
func (Start) sealed()         {}

// Sources are the start parameters a host page or shell can provide. Any subset may be empty.
type Sources struct {
	Share  string // full reference string
	Start  string // restricted token or bare identifier
	Launch string // launch token from the host shell
}

// Select picks the active reference with precedence Share > Start > Launch.
// A launch token is prefixed into canonical URL form and then behaves like a Start token.
func Select(src Sources, canonicalBase string) (Reference, error) {
	if v := strings.TrimSpace(src.Share); v != "" {
		return Share{URL: v}, nil
	}
	if v := strings.TrimSpace(src.Start); v != "" {
		return Start{Token: v}, nil
	}
	if v := strings.TrimSpace(src.Launch); v != "" {
		return Start{Token: NormalizeStartToken(v, canonicalBase)}, nil
	}
	return nil, ErrNoReference
}

// NormalizeStartToken returns token unchanged when it already is an absolute
// http(s) URL, otherwise it prefixes the canonical share base. Relative share
// links ("/s/1abc", "sharing/link?surl=abc") are reduced to their share code
// first and rebuilt in the host's "/s/1<code>" form.
func NormalizeStartToken(token, canonicalBase string) string {
	token = strings.TrimSpace(token)
	if isAbsoluteHTTP(token) {
		return token
	}
	if !bareCodeRe.MatchString(strings.TrimPrefix(token, "/")) {
		if code, ok := ExtractShareCode(token); ok {
			return canonicalBase + "1" + code
		}
	}
	return canonicalBase + strings.TrimPrefix(token, "/")
}

func isAbsoluteHTTP(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var (
	sharePathRe = regexp.MustCompile(`/s/([A-Za-z0-9_-]+)`)
	bareCodeRe  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ExtractShareCode pulls the share code out of a share URL (surl query or /s/ path)
// or accepts a bare code. The host prefixes codes in /s/ links with a "1" that
// the surl form omits; it is stripped so both forms yield the same code.
func ExtractShareCode(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if u, err := url.Parse(raw); err == nil {
		if surl := u.Query().Get("surl"); surl != "" {
			return strings.TrimPrefix(surl, "1"), true
		}
	}
	if m := sharePathRe.FindStringSubmatch(raw); m != nil {
		return strings.TrimPrefix(m[1], "1"), true
	}
	if bareCodeRe.MatchString(raw) {
		return strings.TrimPrefix(raw, "1"), true
	}
	return "", false
}
