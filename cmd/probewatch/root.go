/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carverauto/probewatch/pkg/agent"
	"github.com/carverauto/probewatch/pkg/config"
	"github.com/carverauto/probewatch/pkg/lifecycle"
	"github.com/carverauto/probewatch/pkg/monitor"
	"github.com/carverauto/probewatch/pkg/scan"
	"github.com/carverauto/probewatch/pkg/version"
)

const (
	exitInit     = 1
	exitPoller   = 2
	exitRegister = 3
)

type options struct {
	configPath string
	hostsFile  string
	webhookURL string
	scanMode   string
	localIP    string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "probewatch -f <hosts file> -r <robot webhook>",
		Short: "Raw SYN health checker for ip:port endpoints",
		Long: `probewatch sends a half-open TCP probe to every endpoint in the hosts file
once per second, listens for SYN-ACK replies at the link layer and posts a
markdown notification when an endpoint goes down or recovers.

Each hosts file line is "ip:port<space>service label". Needs root or
CAP_NET_RAW.`,
		Version:       version.GetFullVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.hostsFile, "file", "f", "", "hosts file, one \"ip:port label\" per line")
	flags.StringVarP(&opts.webhookURL, "robot", "r", "", "webhook URL notifications are posted to")
	flags.StringVarP(&opts.configPath, "config", "c", "", "optional JSON or YAML config file")
	flags.StringVar(&opts.scanMode, "scan-mode", "", "probe flags: syn, null, fin, xmas or ack")
	flags.StringVar(&opts.localIP, "local-ip", "", "probe source address (default: default-route interface)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	return cmd
}

// loadConfig layers defaults, the config file, PROBEWATCH_* variables and
// flags, in that order.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.Default()

	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	if opts.hostsFile != "" {
		cfg.HostsFile = opts.hostsFile
	}

	if opts.webhookURL != "" {
		cfg.WebhookURL = opts.webhookURL
	}

	if opts.scanMode != "" {
		cfg.ScanMode = opts.scanMode
	}

	if opts.localIP != "" {
		cfg.LocalIP = opts.localIP
	}

	if opts.debug {
		cfg.Logging.Debug = true
	}

	return cfg, nil
}

func run(ctx context.Context, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := lifecycle.SignalContext(ctx)
	defer stop()

	log, shutdown, err := lifecycle.Setup(ctx, "probewatch", &cfg.Logging, cfg.Metrics)
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down metrics")
		}
	}()

	a, err := agent.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Msg("Starting probe loop")

	if err := a.Run(ctx); err != nil {
		return err
	}

	log.Info().Msg("Probe loop stopped")

	return nil
}

// exitCode maps a startup or run error onto the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, scan.ErrPollerCreate):
		return exitPoller
	case errors.Is(err, scan.ErrPollerRegister), errors.Is(err, monitor.ErrWaitFailed):
		return exitRegister
	default:
		// bad hosts file, missing webhook, invalid config, engine init
		return exitInit
	}
}
