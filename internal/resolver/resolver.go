// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resolver turns a share or start reference into a manifest source by
// calling the upstream resolution API.
package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/metrics"
	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/reference"
	"github.com/ManuGH/relayplay/internal/telemetry"
)

const (
	pathShare = "share"
	pathStart = "start"

	// maxBodyBytes bounds every upstream body read.
	maxBodyBytes = 4 << 20
	// maxDetailBytes bounds error text copied into user-visible messages.
	maxDetailBytes = 200

	genericFailure = "could not resolve the video"
)

// Config configures a Resolver.
type Config struct {
	BaseURL            string
	CanonicalShareBase string
	Timeout            time.Duration
	// Transport overrides the base transport, mainly for tests.
	Transport http.RoundTripper
}

// Resolver calls the upstream resolution API. It never retries and never caches.
type Resolver struct {
	base      *url.URL
	canonical string
	timeout   time.Duration
	client    *http.Client
	registry  *manifest.Registry
}

// New builds a Resolver. Blob sources produced by the fast path are stored in registry.
func New(cfg Config, registry *manifest.Registry) (*Resolver, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse resolver base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("resolver base url %q must be an absolute http(s) URL", cfg.BaseURL)
	}
	if registry == nil {
		return nil, fmt.Errorf("resolver requires a manifest registry")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rt := cfg.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Resolver{
		base:      u,
		canonical: cfg.CanonicalShareBase,
		timeout:   timeout,
		client:    &http.Client{Transport: otelhttp.NewTransport(rt)},
		registry:  registry,
	}, nil
}

// Host is the resolver's own host; the router passes its requests through.
func (r *Resolver) Host() string {
	return r.base.Host
}

type shareResponse struct {
	M3U8URL string `json:"m3u8_url"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type hostAPIError struct {
	Errno  *int   `json:"errno"`
	Errmsg string `json:"errmsg"`
}

// ResolveByShare requests a manifest URL for a share reference at tier q.
func (r *Resolver) ResolveByShare(ctx context.Context, shareURL string, q quality.Tier) (manifest.Source, error) {
	ctx, span := telemetry.Tracer("relayplay/resolver").Start(ctx, "resolver.share")
	defer span.End()
	span.SetAttributes(telemetry.ResolveAttributes(pathShare, q.String())...)

	endpoint := r.endpoint("/get_m3u8") + "?url=" + url.QueryEscape(shareURL) +
		"&quality=" + strconv.Itoa(q.Number())

	status, body, err := r.get(ctx, pathShare, endpoint)
	if err != nil {
		return r.fail(ctx, span, err)
	}
	if status < 200 || status > 299 {
		return r.fail(ctx, span, &ResolutionError{
			Kind: KindUpstream, Path: pathShare, Status: status, Message: upstreamDetail(body),
		})
	}

	// The upstream sometimes answers with the manifest itself.
	if manifest.HasHeader(string(body)) {
		blob := r.registry.Create(body)
		r.succeed(ctx, pathShare, "blob")
		return manifest.FromBlob(blob), nil
	}

	var resp shareResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return r.fail(ctx, span, &ResolutionError{
			Kind: KindMalformedResponse, Path: pathShare, Status: status,
			Message: "upstream returned an unreadable response", Err: err,
		})
	}
	if strings.TrimSpace(resp.M3U8URL) == "" {
		return r.fail(ctx, span, &ResolutionError{
			Kind: KindMalformedResponse, Path: pathShare, Status: status,
			Message: "upstream response has no m3u8_url",
		})
	}
	r.succeed(ctx, pathShare, "url")
	return manifest.FromURL(resp.M3U8URL), nil
}

// ResolveByStart requests manifest text for a start token and registers it as a blob.
func (r *Resolver) ResolveByStart(ctx context.Context, token string) (manifest.Source, error) {
	ctx, span := telemetry.Tracer("relayplay/resolver").Start(ctx, "resolver.start")
	defer span.End()
	span.SetAttributes(telemetry.ResolveAttributes(pathStart, "")...)

	target := reference.NormalizeStartToken(token, r.canonical)
	endpoint := r.endpoint("/get_m3u8_stream_fast/" + url.PathEscape(target))

	status, body, err := r.get(ctx, pathStart, endpoint)
	if err != nil {
		return r.fail(ctx, span, err)
	}
	if status < 200 || status > 299 {
		return r.fail(ctx, span, &ResolutionError{
			Kind: KindUpstream, Path: pathStart, Status: status, Message: upstreamDetail(body),
		})
	}
	if !manifest.HasHeader(string(body)) {
		msg := "upstream returned an invalid manifest"
		var hostErr hostAPIError
		if json.Unmarshal(body, &hostErr) == nil && hostErr.Errno != nil {
			em := hostErr.Errmsg
			if em == "" {
				em = "unknown error"
			}
			msg = fmt.Sprintf("host API error %d: %s", *hostErr.Errno, em)
		}
		return r.fail(ctx, span, &ResolutionError{
			Kind: KindInvalidManifest, Path: pathStart, Status: status, Message: msg,
		})
	}

	blob := r.registry.Create(body)
	r.succeed(ctx, pathStart, "blob")
	return manifest.FromBlob(blob), nil
}

// Ping probes the upstream health endpoint.
func (r *Resolver) Ping(ctx context.Context) error {
	status, _, err := r.get(ctx, "health", r.endpoint("/health"))
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("resolver health returned HTTP %d", status)
	}
	return nil
}

// endpoint joins path onto the base URL without re-encoding it.
func (r *Resolver) endpoint(path string) string {
	return strings.TrimRight(r.base.String(), "/") + path
}

func (r *Resolver) get(ctx context.Context, path, target string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger := xglog.WithComponentFromContext(ctx, "resolver")
	logger.Debug().
		Str(xglog.FieldEvent, "resolver.request").
		Str("path", path).
		Str(xglog.FieldURL, xglog.MaskURL(target)).
		Msg("upstream request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, &ResolutionError{Kind: KindUpstream, Path: path, Message: genericFailure, Err: err}
	}
	req.Header.Set("Accept", "application/json, application/vnd.apple.mpegurl, */*")

	res, err := r.client.Do(req)
	if err != nil {
		return 0, nil, &ResolutionError{Kind: KindUpstream, Path: path, Message: "upstream is unreachable", Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes+1))
	if err != nil {
		return res.StatusCode, nil, &ResolutionError{
			Kind: KindUpstream, Path: path, Status: res.StatusCode, Message: "upstream response was cut off", Err: err,
		}
	}
	if len(body) > maxBodyBytes {
		return res.StatusCode, nil, &ResolutionError{
			Kind: KindMalformedResponse, Path: path, Status: res.StatusCode, Message: "upstream response is too large",
		}
	}
	return res.StatusCode, body, nil
}

func (r *Resolver) fail(ctx context.Context, span trace.Span, err error) (manifest.Source, error) {
	path := pathShare
	kind := KindUpstream
	var re *ResolutionError
	if errors.As(err, &re) {
		path, kind = re.Path, re.Kind
	}
	metrics.RecordResolution(path, string(kind))
	span.RecordError(err)
	span.SetAttributes(telemetry.ErrorAttributes(string(kind))...)
	span.SetStatus(codes.Error, string(kind))
	logger := xglog.WithComponentFromContext(ctx, "resolver")
	logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "resolver.failed").
		Str("path", path).
		Str("kind", string(kind)).
		Msg("resolution failed")
	return manifest.Source{}, err
}

func (r *Resolver) succeed(ctx context.Context, path, source string) {
	metrics.RecordResolution(path, "ok")
	logger := xglog.WithComponentFromContext(ctx, "resolver")
	logger.Info().
		Str(xglog.FieldEvent, "resolver.resolved").
		Str("path", path).
		Str("source", source).
		Msg("manifest resolved")
}

// upstreamDetail returns the upstream "detail" text, or a generic message.
func upstreamDetail(body []byte) string {
	var d detailResponse
	if err := json.Unmarshal(bytes.TrimSpace(body), &d); err == nil && strings.TrimSpace(d.Detail) != "" {
		detail := strings.TrimSpace(d.Detail)
		if len(detail) > maxDetailBytes {
			detail = detail[:maxDetailBytes]
		}
		return detail
	}
	return genericFailure
}
