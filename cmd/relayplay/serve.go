// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/relayplay/internal/daemon"
	xglog "github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := xglog.WithComponent("daemon")

			cfg, err := opts.load()
			if err != nil {
				logger.Error().
					Err(err).
					Str(xglog.FieldEvent, "config.load_failed").
					Str("config_path", opts.configPath).
					Msg("failed to load configuration")
				return err
			}
			opts.applyLogLevel(cmd, cfg)
			logger = xglog.WithComponent("daemon")

			source := "env+defaults"
			if opts.configPath != "" {
				source = "file"
			}
			logger.Info().
				Str(xglog.FieldEvent, "config.loaded").
				Str("source", source).
				Str("path", opts.configPath).
				Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := daemon.Build(ctx, cfg)
			if err != nil {
				logger.Error().Err(err).Str(xglog.FieldEvent, "startup.failed").Msg("failed to wire runtime")
				return err
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}
			mgr, err := rt.NewManager(daemon.DefaultServerConfig(cfg.ListenAddr))
			if err != nil {
				return err
			}

			logger.Info().
				Str(xglog.FieldEvent, "startup").
				Str("version", version.Version).
				Str("commit", version.Commit).
				Str("addr", cfg.ListenAddr).
				Str("resolver", xglog.MaskURL(cfg.Resolver.BaseURL)).
				Str("primary_relay", cfg.Relays.Primary).
				Int("pool_size", rt.Pool.Len()).
				Bool("telemetry", cfg.Telemetry.Enabled).
				Msg("starting relayplay")

			if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Str(xglog.FieldEvent, "manager.failed").Msg("server failed")
				return err
			}
			logger.Info().Msg("server exiting")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address override, e.g. :8088")
	return cmd
}
