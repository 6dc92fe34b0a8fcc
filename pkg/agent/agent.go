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

// Package agent assembles the probe engine from a Config and runs it.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/probewatch/pkg/config"
	"github.com/carverauto/probewatch/pkg/hosts"
	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/monitor"
	"github.com/carverauto/probewatch/pkg/notify"
	"github.com/carverauto/probewatch/pkg/scan"
)

// ErrEngineInit wraps failures to set up the local address or sockets.
var ErrEngineInit = errors.New("failed to initialize probe engine")

// Agent owns every resource of a running probe engine.
type Agent struct {
	monitor    *monitor.Monitor
	sender     *scan.ProbeSender
	capture    *scan.CaptureListener
	poller     *scan.Poller
	dispatcher *notify.Dispatcher
	nats       *notify.NATSPublisher
	logger     logger.Logger
}

// New validates cfg and opens the sockets. On error everything opened so far
// is released.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (a *Agent, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hostSrc := hosts.NewFileSource(cfg.HostsFile, log)
	if err := hostSrc.Check(); err != nil {
		return nil, err
	}

	mode, err := scan.ParseScanMode(cfg.ScanMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineInit, err)
	}

	local, err := scan.LocalAddress(cfg.LocalIP, cfg.ListenPort)
	if err != nil {
		return nil, fmt.Errorf("%w: local address: %w", ErrEngineInit, err)
	}

	a = &Agent{logger: log}

	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	a.capture, err = scan.NewCaptureListener(local, scan.CaptureOptions{RecvBufferBytes: cfg.RecvBufferBytes}, log)
	if err != nil {
		return a, fmt.Errorf("%w: %w", ErrEngineInit, err)
	}

	a.sender, err = scan.NewProbeSender(local, scan.SenderOptions{
		Workers:   cfg.SendWorkers,
		QueueSize: cfg.SendQueue,
		Mode:      mode,
	}, log)
	if err != nil {
		return a, fmt.Errorf("%w: %w", ErrEngineInit, err)
	}

	// poller errors carry their own sentinels
	a.poller, err = scan.NewPoller(a.capture.FD())
	if err != nil {
		return a, err
	}

	sinks := []notify.Notifier{
		notify.NewWebhookNotifier(cfg.WebhookURL, notify.WebhookOptions{
			AtMobiles:      cfg.AtMobiles,
			ConnectTimeout: cfg.ConnectTimeout.Std(),
			RequestTimeout: cfg.NotifyTimeout.Std(),
		}),
	}

	if cfg.NATS.URL != "" {
		a.nats, err = notify.ConnectNATS(ctx, cfg.NATS, log)
		if err != nil {
			return a, fmt.Errorf("%w: %w", ErrEngineInit, err)
		}

		sinks = append(sinks, a.nats)
	}

	a.dispatcher = notify.NewDispatcher(sinks, cfg.NotifyWorkers, cfg.NotifyTimeout.Std(), log)

	a.monitor, err = monitor.New(monitor.Deps{
		Hosts:      hostSrc,
		Prober:     a.sender,
		Replies:    a.capture,
		Waiter:     a.poller,
		Dispatcher: a.dispatcher,
		Clock:      monitor.RealClock(),
	}, cfg.MonitorOptions(), log)
	if err != nil {
		return a, err
	}

	log.Info().
		Str("local", local.String()).
		Str("scan_mode", mode.String()).
		Str("hosts_file", cfg.HostsFile).
		Bool("nats", a.nats != nil).
		Msg("Probe engine ready")

	return a, nil
}

// Run probes until ctx is cancelled or the readiness wait fails.
func (a *Agent) Run(ctx context.Context) error {
	return a.monitor.Run(ctx)
}

// Close stops sending, flushes notifications and closes every socket.
func (a *Agent) Close() {
	if a.sender != nil {
		_ = a.sender.Close()
	}

	if a.poller != nil {
		if err := a.poller.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close poller")
		}
	}

	if a.capture != nil {
		if err := a.capture.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close capture socket")
		}
	}

	if a.dispatcher != nil {
		a.dispatcher.Close()
	}

	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close NATS connection")
		}
	}
}
