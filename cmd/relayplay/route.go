// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/ManuGH/relayplay/internal/proxy"
	"github.com/ManuGH/relayplay/internal/relay"
)

type routeOutput struct {
	URL       string `json:"url"`
	Class     string `json:"class"`
	Rewritten string `json:"rewritten"`
	Relay     string `json:"relay,omitempty"`
}

func newRouteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "route URL...",
		Short: "Show how outbound requests would be routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			pool, err := relay.NewPool(cfg.Relays.Pool)
			if err != nil {
				return err
			}
			resolverHost := ""
			if u, err := url.Parse(cfg.Resolver.BaseURL); err == nil {
				resolverHost = u.Host
			}
			router, err := proxy.NewRouter(proxy.Config{
				Primary:        cfg.Relays.Primary,
				StorageDomains: cfg.Relays.StorageDomains,
				ResolverHost:   resolverHost,
			}, pool)
			if err != nil {
				return err
			}

			// Route, not Preview: several URLs show the rotation advancing.
			out := make([]routeOutput, 0, len(args))
			for _, raw := range args {
				d := router.Route(raw)
				out = append(out, routeOutput{
					URL:       raw,
					Class:     string(d.Class),
					Rewritten: d.URL,
					Relay:     d.Relay.String(),
				})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
