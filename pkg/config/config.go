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

// Package config loads probewatch settings from a JSON or YAML file and
// PROBEWATCH_* environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carverauto/probewatch/pkg/health"
	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/metrics"
	"github.com/carverauto/probewatch/pkg/models"
	"github.com/carverauto/probewatch/pkg/monitor"
	"github.com/carverauto/probewatch/pkg/notify"
	"github.com/carverauto/probewatch/pkg/scan"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PROBEWATCH_"

var (
	ErrMissingHostsFile = errors.New("hosts file is required")
	ErrMissingWebhook   = errors.New("webhook URL is required")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrReadConfig       = errors.New("failed to read config file")
)

// Config is the full agent configuration.
type Config struct {
	HostsFile       string            `json:"hosts_file" yaml:"hosts_file"`
	WebhookURL      string            `json:"webhook_url" yaml:"webhook_url"`
	AtMobiles       []string          `json:"at_mobiles" yaml:"at_mobiles"`
	ListenPort      int               `json:"listen_port" yaml:"listen_port"`
	LocalIP         string            `json:"local_ip" yaml:"local_ip"`
	ScanMode        string            `json:"scan_mode" yaml:"scan_mode"`
	SendWorkers     int               `json:"send_workers" yaml:"send_workers"`
	SendQueue       int               `json:"send_queue" yaml:"send_queue"`
	RecvBufferBytes int               `json:"recv_buffer_bytes" yaml:"recv_buffer_bytes"`
	CycleInterval   models.Duration   `json:"cycle_interval" yaml:"cycle_interval"`
	ReceiveBudget   models.Duration   `json:"receive_budget" yaml:"receive_budget"`
	WaitSlice       models.Duration   `json:"wait_slice" yaml:"wait_slice"`
	ReportEvery     int               `json:"report_every" yaml:"report_every"`
	FailThreshold   int               `json:"fail_threshold" yaml:"fail_threshold"`
	FailInterval    models.Duration   `json:"fail_interval" yaml:"fail_interval"`
	NotifyWorkers   int               `json:"notify_workers" yaml:"notify_workers"`
	NotifyTimeout   models.Duration   `json:"notify_timeout" yaml:"notify_timeout"`
	ConnectTimeout  models.Duration   `json:"connect_timeout" yaml:"connect_timeout"`
	NATS            notify.NATSConfig `json:"nats" yaml:"nats"`
	Logging         logger.Config     `json:"logging" yaml:"logging"`
	Metrics         metrics.Config    `json:"metrics" yaml:"metrics"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ListenPort:      scan.DefaultListenPort,
		ScanMode:        scan.ScanSYN.String(),
		SendWorkers:     8,
		RecvBufferBytes: scan.DefaultRecvBufferBytes,
		CycleInterval:   models.Duration(monitor.DefaultPeriod),
		ReceiveBudget:   models.Duration(monitor.DefaultBudget),
		WaitSlice:       models.Duration(monitor.DefaultWaitSlice),
		ReportEvery:     monitor.DefaultReportEvery,
		FailThreshold:   health.DefaultFailThreshold,
		FailInterval:    models.Duration(health.DefaultInterval * time.Second),
		NotifyWorkers:   notify.DefaultWorkers,
		NotifyTimeout:   models.Duration(5 * time.Second),
		ConnectTimeout:  models.Duration(time.Second),
		NATS:            notify.NATSConfig{Subject: notify.DefaultNATSSubject},
		Logging:         *logger.DefaultConfig(),
		Metrics:         metrics.Config{ServiceName: "probewatch"},
	}
}

// Load reads path over the defaults. Files ending in .yaml or .yml are YAML,
// everything else JSON. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %w", ErrReadConfig, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to unmarshal YAML from '%s': %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
		}
	}

	return cfg, nil
}

// Validate checks the settings the agent cannot start without.
func (c *Config) Validate() error {
	if c.HostsFile == "" {
		return ErrMissingHostsFile
	}

	if c.WebhookURL == "" {
		return ErrMissingWebhook
	}

	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("%w: listen_port %d out of range", ErrInvalidConfig, c.ListenPort)
	}

	if _, err := scan.ParseScanMode(c.ScanMode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.LocalIP != "" && !models.NewHostAddress(c.LocalIP, c.ListenPort).Valid() {
		return fmt.Errorf("%w: local_ip %q is not IPv4", ErrInvalidConfig, c.LocalIP)
	}

	if c.CycleInterval.Std() <= 0 || c.WaitSlice.Std() <= 0 {
		return fmt.Errorf("%w: cycle_interval and wait_slice must be positive", ErrInvalidConfig)
	}

	if c.ReceiveBudget.Std() <= 0 || c.ReceiveBudget.Std() > c.CycleInterval.Std() {
		return fmt.Errorf("%w: receive_budget must be positive and within cycle_interval", ErrInvalidConfig)
	}

	if c.FailInterval.Std() < time.Second {
		return fmt.Errorf("%w: fail_interval must be at least 1s", ErrInvalidConfig)
	}

	return nil
}

// MonitorOptions maps the cycle settings onto monitor.Options.
func (c *Config) MonitorOptions() monitor.Options {
	return monitor.Options{
		Period:        c.CycleInterval.Std(),
		Budget:        c.ReceiveBudget.Std(),
		WaitSlice:     c.WaitSlice.Std(),
		ReportEvery:   c.ReportEvery,
		FailThreshold: c.FailThreshold,
		FailInterval:  c.FailInterval.Std(),
	}
}
