// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manifest describes where a playable manifest lives: at a remote URL
// or in an in-memory blob handle that must be released.
package manifest

import "strings"

// HeaderMarker is the first tag of every valid HLS playlist.
const HeaderMarker = "#EXTM3U"

// HasHeader reports whether text starts with the playlist header marker,
// ignoring leading whitespace and a UTF-8 byte order mark.
func HasHeader(text string) bool {
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.HasPrefix(strings.TrimSpace(text), HeaderMarker)
}

// Kind tags a Source.
type Kind string

const (
	KindURL  Kind = "url"
	KindBlob Kind = "blob"
)

// Releaser is a transient resource owned by a playback session.
// Release returns true only for the call that actually released it.
type Releaser interface {
	Release() bool
}

// Source is what the engine loads: a remote manifest URL or a blob handle.
type Source struct {
	Kind Kind
	URL  string
	blob *Blob
}

// FromURL returns a Source pointing at a remote manifest.
func FromURL(u string) Source {
	return Source{Kind: KindURL, URL: u}
}

// FromBlob returns a Source backed by an in-memory manifest.
func FromBlob(b *Blob) Source {
	return Source{Kind: KindBlob, URL: b.URL(), blob: b}
}

// Transient returns the resource that must be released when the session is
// replaced or torn down, or nil for URL sources.
func (s Source) Transient() Releaser {
	if s.blob == nil {
		return nil
	}
	return s.blob
}

// IsZero reports whether s is the empty Source.
func (s Source) IsZero() bool {
	return s.Kind == "" && s.URL == ""
}
