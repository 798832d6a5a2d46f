// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldGeneration = "generation"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldQuality   = "quality"
	FieldReference = "reference_kind"
	FieldShareCode = "share_code"
	FieldOffset    = "offset"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Routing fields
	FieldRouteClass = "route_class"
	FieldRelay      = "relay"
	FieldURL        = "url"
)
