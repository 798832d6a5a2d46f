// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command relayplay serves the playback control API and offers offline
// helpers for resolution, routing and configuration.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuGH/relayplay/internal/config"
	xglog "github.com/ManuGH/relayplay/internal/log"
	"github.com/ManuGH/relayplay/internal/version"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "relayplay",
		Short:         "HLS playback control plane with relay routing",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// safe defaults until a command loads its configuration
			xglog.Configure(xglog.Config{
				Level:   opts.logLevel,
				Output:  cmd.ErrOrStderr(),
				Service: "relayplay",
				Version: version.Version,
			})
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("RELAYPLAY_CONFIG"), "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newResolveCmd(opts),
		newRouteCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) load() (config.AppConfig, error) {
	return config.NewLoader(o.configPath, version.Version).Load()
}

// applyLogLevel re-configures the logger once the configuration is known.
// The flag wins over the file.
func (o *rootOptions) applyLogLevel(cmd *cobra.Command, cfg config.AppConfig) {
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	xglog.Configure(xglog.Config{
		Level:   level,
		Output:  cmd.ErrOrStderr(),
		Service: "relayplay",
		Version: cfg.Version,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
