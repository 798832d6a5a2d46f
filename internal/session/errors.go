// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import "errors"

var (
	// ErrTornDown is returned by every call after Teardown.
	ErrTornDown = errors.New("session torn down")
	// ErrSuperseded is returned to a request overtaken by a newer one.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrNoSession is returned by SelectQuality before any Start.
	ErrNoSession = errors.New("no active session")
	// ErrNotReady is returned by Play while nothing is attached.
	ErrNotReady = errors.New("session is not ready")
)
