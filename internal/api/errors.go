// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/reference"
	"github.com/ManuGH/relayplay/internal/resolver"
	"github.com/ManuGH/relayplay/internal/session"
)

// Error codes returned in the "error" field.
const (
	CodeBadRequest     = "bad_request"
	CodeInvalidQuality = "invalid_quality"
	CodeNoReference    = "no_reference"
	CodeNoSession      = "no_session"
	CodeNotReady       = "not_ready"
	CodeSuperseded     = "superseded"
	CodeTornDown       = "torn_down"
	CodeUpstream       = "upstream_failed"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Detail    string            `json:"detail,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Session   *session.Snapshot `json:"session,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, errCode, detail string) {
	writeJSON(w, code, ErrorResponse{
		Error:     errCode,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeSessionError maps controller errors to HTTP. Resolution failures carry
// the snapshot so the caller sees the published error status.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error, snap *session.Snapshot) {
	code, errCode, detail := classify(err)
	if code >= http.StatusInternalServerError {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str(log.FieldEvent, "api.session_error").Msg("session operation failed")
	}
	writeJSON(w, code, ErrorResponse{
		Error:     errCode,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
		Session:   snap,
	})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, reference.ErrNoReference):
		return http.StatusBadRequest, CodeNoReference, "No video reference provided"
	case errors.Is(err, session.ErrNoSession):
		return http.StatusConflict, CodeNoSession, err.Error()
	case errors.Is(err, session.ErrNotReady):
		return http.StatusConflict, CodeNotReady, err.Error()
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, CodeSuperseded, err.Error()
	case errors.Is(err, session.ErrTornDown):
		return http.StatusConflict, CodeTornDown, err.Error()
	case errors.Is(err, resolver.ErrUpstream),
		errors.Is(err, resolver.ErrMalformedResponse),
		errors.Is(err, resolver.ErrInvalidManifest):
		return http.StatusBadGateway, CodeUpstream, resolver.UserMessage(err)
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}
