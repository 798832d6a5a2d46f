// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/relayplay/internal/capability"
	"github.com/ManuGH/relayplay/internal/config"
	"github.com/ManuGH/relayplay/internal/hls"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/proxy"
	"github.com/ManuGH/relayplay/internal/quality"
	"github.com/ManuGH/relayplay/internal/reference"
	"github.com/ManuGH/relayplay/internal/resolver"
	"github.com/ManuGH/relayplay/internal/version"
)

const maxInspectBytes = 8 << 20

type resolveOutput struct {
	Reference string       `json:"reference"`
	Quality   quality.Tier `json:"quality"`
	Warning   string       `json:"warning,omitempty"`
	Source    string       `json:"source"`
	URL       string       `json:"url,omitempty"`
	Manifest  string       `json:"manifest,omitempty"`
	Playlist  *playlistSum `json:"playlist,omitempty"`
}

type playlistSum struct {
	Master         bool    `json:"master"`
	Variants       int     `json:"variants"`
	Segments       int     `json:"segments"`
	Keys           int     `json:"keys"`
	TargetDuration float64 `json:"targetDurationSeconds"`
	TotalDuration  float64 `json:"totalDurationSeconds"`
	VOD            bool    `json:"vod"`
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		src         reference.Sources
		tier        string
		inspect     bool
		resolverURL string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a reference into a playable manifest once",
		Example: `  relayplay resolve --share https://www.terabox.com/s/1abc --quality 720
  relayplay resolve --start 1abc --inspect`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(opts.configPath, version.Version).LoadUnvalidated()
			if err != nil {
				return err
			}
			if resolverURL != "" {
				cfg.Resolver.BaseURL = resolverURL
			}
			requested := quality.Tier("")
			if tier != "" {
				if requested, err = quality.Parse(tier); err != nil {
					return err
				}
			} else if requested, err = quality.Parse(cfg.Playback.DefaultQuality); err != nil {
				return err
			}
			return runResolve(cmd.Context(), cmd.OutOrStdout(), cfg, src, requested, inspect)
		},
	}
	cmd.Flags().StringVar(&src.Share, "share", "", "full share reference")
	cmd.Flags().StringVar(&src.Start, "start", "", "restricted start token")
	cmd.Flags().StringVar(&src.Launch, "launch", "", "launch token from the host shell")
	cmd.Flags().StringVarP(&tier, "quality", "q", "", "quality tier (360, 480, 720, 1080)")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "print the manifest and a playlist summary")
	cmd.Flags().StringVar(&resolverURL, "resolver-url", "", "resolution API base URL override")
	return cmd
}

func runResolve(ctx context.Context, w io.Writer, cfg config.AppConfig, src reference.Sources, requested quality.Tier, inspect bool) error {
	ref, err := reference.Select(src, cfg.Resolver.CanonicalShareBase)
	if err != nil {
		return err
	}
	decision := capability.ClampOrReject(ref, requested)

	reg := manifest.NewRegistry()
	res, err := resolver.New(resolver.Config{
		BaseURL:            cfg.Resolver.BaseURL,
		CanonicalShareBase: cfg.Resolver.CanonicalShareBase,
		Timeout:            cfg.Resolver.Timeout,
	}, reg)
	if err != nil {
		return err
	}

	var source manifest.Source
	switch r := ref.(type) {
	case reference.Share:
		source, err = res.ResolveByShare(ctx, r.URL, decision.Quality)
	case reference.Start:
		source, err = res.ResolveByStart(ctx, r.Token)
	}
	if err != nil {
		return errors.New(resolver.UserMessage(err))
	}
	defer func() {
		if t := source.Transient(); t != nil {
			t.Release()
		}
	}()

	out := resolveOutput{
		Reference: string(ref.Kind()),
		Quality:   decision.Quality,
		Source:    string(source.Kind),
	}
	if decision.Clamped() {
		out.Warning = decision.Warning.Error()
	}
	if source.Kind == manifest.KindURL {
		out.URL = source.URL
	}

	if inspect {
		text, err := manifestText(ctx, reg, source, cfg.Resolver.Timeout)
		if err != nil {
			return err
		}
		out.Manifest = text
		if info, err := hls.Inspect(text); err == nil {
			out.Playlist = &playlistSum{
				Master:         info.Master,
				Variants:       len(info.Variants),
				Segments:       len(info.Segments),
				Keys:           len(info.KeyURIs),
				TargetDuration: info.TargetDuration.Seconds(),
				TotalDuration:  info.TotalDuration.Seconds(),
				VOD:            info.IsVOD,
			}
		}
	}
	return printJSON(w, out)
}

// manifestText returns the playlist body. Remote manifests are fetched
// directly; relays are not involved in this diagnostic.
func manifestText(ctx context.Context, reg *manifest.Registry, src manifest.Source, timeout time.Duration) (string, error) {
	if src.Kind == manifest.KindBlob {
		content, ok := reg.Open(src.URL)
		if !ok {
			return "", fmt.Errorf("blob %s already released", src.URL)
		}
		return string(content), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := proxy.NewClient(nil).Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch manifest: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxInspectBytes))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}
	return string(body), nil
}
