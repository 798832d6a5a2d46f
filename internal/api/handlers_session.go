// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/reference"
	"github.com/ManuGH/relayplay/internal/session"
)

const maxBodyBytes = 16 << 10

// StartRequest carries the start parameters a host page provides.
type StartRequest struct {
	Share   string `json:"share,omitempty"`
	Start   string `json:"start,omitempty"`
	Launch  string `json:"launch,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// QualityRequest selects a tier for the live session.
type QualityRequest struct {
	Quality string `json:"quality"`
}

// QualityOption is one entry of the quality selector.
type QualityOption struct {
	Tier     quality.Tier `json:"tier"`
	Label    string       `json:"label"`
	Selected bool         `json:"selected"`
}

// RouteResponse is the router decision for one URL.
type RouteResponse struct {
	URL       string `json:"url"`
	Class     string `json:"class"`
	Rewritten string `json:"rewritten"`
	Relay     string `json:"relay,omitempty"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Session().Snapshot())
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tier, ok := parseTier(w, r, req.Quality, true)
	if !ok {
		return
	}
	wait, ok := s.parseWait(w, r)
	if !ok {
		return
	}

	ctrl := s.Session()
	src := reference.Sources{Share: req.Share, Start: req.Start, Launch: req.Launch}
	err := ctrl.Start(r.Context(), src, tier)
	s.respond(w, r, ctrl, err, wait)
}

func (s *Server) handleSelectQuality(w http.ResponseWriter, r *http.Request) {
	var req QualityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tier, ok := parseTier(w, r, req.Quality, false)
	if !ok {
		return
	}
	wait, ok := s.parseWait(w, r)
	if !ok {
		return
	}

	ctrl := s.Session()
	err := ctrl.SelectQuality(r.Context(), tier)
	s.respond(w, r, ctrl, err, wait)
}

// respond reports the outcome of a start or switch. With a wait, it blocks
// until the session is Ready or Failed, or the wait elapses.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, ctrl *session.Controller, err error, wait time.Duration) {
	if err != nil {
		snap := ctrl.Snapshot()
		writeSessionError(w, r, err, &snap)
		return
	}
	if wait <= 0 {
		writeJSON(w, http.StatusAccepted, ctrl.Snapshot())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	snap, err := ctrl.WaitFor(ctx, session.StateReady, session.StateFailed)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusAccepted, snap)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		writeSessionError(w, r, err, &snap)
	}
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Reset(); err != nil {
		writeSessionError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQualities(w http.ResponseWriter, _ *http.Request) {
	ctrl := s.Session()
	current := ctrl.Snapshot().Quality
	tiers := ctrl.Selectable()
	out := make([]QualityOption, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, QualityOption{Tier: t, Label: t.Label(), Selected: t == current})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	ctrl := s.Session()
	if err := ctrl.Play(); err != nil {
		writeSessionError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	ctrl := s.Session()
	if err := ctrl.Pause(); err != nil {
		writeSessionError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "url parameter is required")
		return
	}
	d := s.cfg.Router.Preview(raw)
	writeJSON(w, http.StatusOK, RouteResponse{
		URL:       raw,
		Class:     string(d.Class),
		Rewritten: d.URL,
		Relay:     d.Relay.String(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Debug().Err(err).Str(log.FieldEvent, "api.bad_body").Msg("rejected request body")
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func parseTier(w http.ResponseWriter, r *http.Request, raw string, optional bool) (quality.Tier, bool) {
	if raw == "" && optional {
		return "", true
	}
	t, err := quality.Parse(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidQuality, err.Error())
		return "", false
	}
	return t, true
}

func (s *Server) parseWait(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("wait")
	if raw == "" {
		return 0, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "wait must be a non-negative duration")
		return 0, false
	}
	return min(d, s.cfg.MaxWait), true
}
