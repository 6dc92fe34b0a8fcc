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

// Package lifecycle wires process-wide concerns: the component logger, the
// metrics pipeline and signal-driven shutdown.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/metrics"
	"github.com/carverauto/probewatch/pkg/version"
)

// ShutdownFunc flushes what Setup started.
type ShutdownFunc func(ctx context.Context) error

// Setup creates the component logger and, when enabled, the OTLP metrics
// exporter. A disabled exporter is not an error.
func Setup(ctx context.Context, component string, logCfg *logger.Config, metricsCfg metrics.Config) (logger.Logger, ShutdownFunc, error) {
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	log, err := logger.NewComponentLogger(component, logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if metricsCfg.ServiceVersion == "" {
		metricsCfg.ServiceVersion = version.GetVersion()
	}

	_, err = metrics.InitializeMetrics(ctx, metricsCfg)

	switch {
	case errors.Is(err, metrics.ErrOTelMetricsDisabled):
		log.Debug().Msg("OTel metrics exporter disabled")
	case err != nil:
		return nil, nil, err
	default:
		log.Info().Str("endpoint", metricsCfg.Endpoint).Msg("OTel metrics exporter started")
	}

	return log, metrics.Shutdown, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
