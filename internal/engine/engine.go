// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine defines the streaming-engine contract the session controller
// drives, and ships HLSEngine, a headless HLS loader.
package engine

import (
	"errors"
	"fmt"

	"github.com/ManuGH/relayplay/internal/hls"
	"github.com/ManuGH/relayplay/internal/manifest"
)

var (
	// ErrDisposed is returned by Load on a disposed engine.
	ErrDisposed = errors.New("engine disposed")
	// ErrAlreadyLoaded is returned by a second Load on the same engine.
	ErrAlreadyLoaded = errors.New("engine already loaded")
)

// RewriteFunc maps every outbound URL to the URL actually fetched.
type RewriteFunc func(rawURL string) string

// EventKind tags an Event.
type EventKind string

const (
	EventManifestParsed EventKind = "manifest_parsed"
	EventFatal          EventKind = "fatal"
)

// Event is reported by an engine to its Handler.
type Event struct {
	Kind EventKind
	Info *hls.Info // set for EventManifestParsed
	Err  *Error    // set for EventFatal
}

// Handler receives engine events. It may be called from engine goroutines.
type Handler func(Event)

// Engine loads one manifest source. An Engine is single-use: after Dispose it
// emits nothing more.
type Engine interface {
	Load(src manifest.Source, rewrite RewriteFunc) error
	Dispose()
}

// Factory builds a fresh engine bound to h.
type Factory func(h Handler) Engine

// Error is an engine failure. Recoverable errors stay inside the engine;
// only fatal ones reach the Handler.
type Error struct {
	Fatal bool
	Op    string // "manifest", "playlist", "segment", "key"
	URL   string
	Err   error
}

func (e *Error) Error() string {
	kind := "recoverable"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("engine %s %s error: %v", kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
