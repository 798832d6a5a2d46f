// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resolver

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the session boundary.
	ErrUpstream          = errors.New("resolver: upstream request failed")
	ErrMalformedResponse = errors.New("resolver: malformed upstream response")
	ErrInvalidManifest   = errors.New("resolver: invalid manifest")
)

// Kind classifies a ResolutionError.
type Kind string

const (
	KindUpstream          Kind = "upstream"
	KindMalformedResponse Kind = "malformed_response"
	KindInvalidManifest   Kind = "invalid_manifest"
)

func (k Kind) sentinel() error {
	switch k {
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindInvalidManifest:
		return ErrInvalidManifest
	default:
		return ErrUpstream
	}
}

// ResolutionError is returned by both resolve paths. Message is safe to show
// to the user as-is.
type ResolutionError struct {
	Kind    Kind
	Path    string // "share" or "start"
	Status  int
	Message string
	Err     error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve %s: %s", e.Path, e.Message)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is lets errors.Is match the kind sentinel.
func (e *ResolutionError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// UserMessage extracts the plain-text message for status output.
func UserMessage(err error) string {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
