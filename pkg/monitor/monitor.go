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

// Package monitor runs the fixed-period probe cycle: send a probe to every
// configured host, collect replies for a bounded time, score each host and
// report state changes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/carverauto/probewatch/pkg/health"
	"github.com/carverauto/probewatch/pkg/hosts"
	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/metrics"
	"github.com/carverauto/probewatch/pkg/notify"
)

const (
	DefaultPeriod      = time.Second
	DefaultBudget      = 900 * time.Millisecond
	DefaultWaitSlice   = 100 * time.Millisecond
	DefaultReportEvery = 60
)

// Options are the cycle timings and health parameters. Zero values take the
// defaults.
type Options struct {
	Period        time.Duration
	Budget        time.Duration
	WaitSlice     time.Duration
	ReportEvery   int
	FailThreshold int
	// FailInterval is the window failures must fall into, rounded down to
	// whole seconds.
	FailInterval time.Duration
}

func (o *Options) setDefaults() {
	if o.Period <= 0 {
		o.Period = DefaultPeriod
	}

	if o.Budget <= 0 || o.Budget > o.Period {
		o.Budget = min(DefaultBudget, o.Period)
	}

	if o.WaitSlice <= 0 {
		o.WaitSlice = DefaultWaitSlice
	}

	if o.ReportEvery <= 0 {
		o.ReportEvery = DefaultReportEvery
	}

	if o.FailThreshold <= 0 {
		o.FailThreshold = health.DefaultFailThreshold
	}

	if o.FailInterval <= 0 {
		o.FailInterval = health.DefaultInterval * time.Second
	}
}

// Deps are the collaborators of a Monitor.
type Deps struct {
	Hosts      HostSource
	Prober     Prober
	Replies    ReplySource
	Waiter     Waiter
	Dispatcher Dispatcher
	Clock      Clock
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Cycle      int
	Hosts      int
	Replies    int
	Ignored    int
	SubmitCost time.Duration
	Elapsed    time.Duration
	Recovered  []string
	Down       []string
	Unhealthy  []string
	Summary    bool
}

// Monitor owns the per-host health map. It is driven from a single
// goroutine; none of its methods are safe for concurrent use.
type Monitor struct {
	deps   Deps
	opts   Options
	states map[string]*health.State
	cycles int
	start  time.Time
	logger logger.Logger
}

func New(deps Deps, opts Options, log logger.Logger) (*Monitor, error) {
	if deps.Hosts == nil || deps.Prober == nil || deps.Replies == nil ||
		deps.Waiter == nil || deps.Dispatcher == nil {
		return nil, ErrMissingDependency
	}

	if deps.Clock == nil {
		deps.Clock = RealClock()
	}

	opts.setDefaults()

	return &Monitor{
		deps:   deps,
		opts:   opts,
		states: make(map[string]*health.State),
		start:  deps.Clock.Now(),
		logger: log,
	}, nil
}

// healthSeconds is the health clock: whole seconds since the monitor was
// built, read from the injected Clock.
func (m *Monitor) healthSeconds() int64 {
	return int64(m.deps.Clock.Now().Sub(m.start) / time.Second)
}

// State returns the health record for key ("ip:port"), if the host has been
// seen.
func (m *Monitor) State(key string) (*health.State, bool) {
	st, ok := m.states[key]

	return st, ok
}

func entryText(e hosts.Entry) string {
	return "service: " + e.Service + "  address: " + e.Addr.String()
}

// RunCycle performs one probe cycle. Only a failed readiness wait or a
// cancelled context is returned as an error.
func (m *Monitor) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := m.deps.Clock.Now()

	m.cycles++
	report := &CycleReport{Cycle: m.cycles}

	entries, err := m.deps.Hosts.Load(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to load hosts, probing nothing this cycle")
	}

	pending := make(map[string]hosts.Entry, len(entries))

	for _, e := range entries {
		key := e.Addr.String()
		if _, ok := pending[key]; ok {
			continue
		}

		if _, ok := m.states[key]; !ok {
			m.states[key] = health.New(m.opts.FailThreshold, int(m.opts.FailInterval/time.Second),
				health.WithClock(m.healthSeconds))
		}

		pending[key] = e
		m.deps.Prober.Detect(e.Addr)
	}

	report.Hosts = len(pending)
	report.SubmitCost = m.deps.Clock.Now().Sub(start)

	m.logger.Debug().
		Int("cycle", report.Cycle).
		Int("hosts", report.Hosts).
		Dur("submit_cost", report.SubmitCost).
		Msg("Probes submitted")

	if err := m.collect(ctx, start, pending, report); err != nil {
		return report, err
	}

	for key, e := range pending {
		st := m.states[key]
		if st.OnFail() {
			report.Down = append(report.Down, entryText(e))
		}

		if !st.Healthy() {
			report.Unhealthy = append(report.Unhealthy, entryText(e))
		}

		m.logger.Debug().Str("host", key).Str("state", st.String()).Msg("Probe failed")
	}

	sort.Strings(report.Recovered)
	sort.Strings(report.Down)
	sort.Strings(report.Unhealthy)

	m.report(report)

	report.Elapsed = m.deps.Clock.Now().Sub(start)
	metrics.RecordCycle(ctx, report.Elapsed)

	m.logger.Debug().
		Int("cycle", report.Cycle).
		Int("replies", report.Replies).
		Int("ignored", report.Ignored).
		Int("recovered", len(report.Recovered)).
		Int("down", len(report.Down)).
		Int("unhealthy", len(report.Unhealthy)).
		Dur("elapsed", report.Elapsed).
		Msg("Cycle complete")

	return report, nil
}

// collect drains replies until the receive budget is spent.
func (m *Monitor) collect(ctx context.Context, start time.Time, pending map[string]hosts.Entry, report *CycleReport) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := m.opts.Budget - m.deps.Clock.Now().Sub(start)
		if remaining <= 0 {
			return nil
		}

		ready, err := m.deps.Waiter.Wait(min(m.opts.WaitSlice, remaining))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWaitFailed, err)
		}

		if ready == 0 {
			continue
		}

		for {
			key, ok := m.deps.Replies.Capture()
			if !ok {
				break
			}

			report.Replies++

			e, ok := pending[key]
			if !ok {
				// late reply from an earlier cycle, a duplicate, or a host
				// no longer listed
				report.Ignored++
				continue
			}

			delete(pending, key)

			st := m.states[key]
			if st.OnSuccess() {
				report.Recovered = append(report.Recovered, entryText(e))
				m.logger.Info().Str("host", key).Str("state", st.String()).Msg("Host recovered")
			}
		}
	}
}

func (m *Monitor) report(r *CycleReport) {
	now := m.deps.Clock.Now()

	metrics.RecordTransitions(context.Background(), metrics.DirectionRecovered, len(r.Recovered))
	metrics.RecordTransitions(context.Background(), metrics.DirectionDown, len(r.Down))

	if len(r.Recovered) > 0 || len(r.Down) > 0 {
		for _, d := range r.Down {
			m.logger.Warn().Str("entry", d).Msg("Host down")
		}

		m.deps.Dispatcher.Dispatch(notify.NewStateChange(r.Recovered, r.Down, now))
	}

	if r.Cycle%m.opts.ReportEvery == 0 && len(r.Unhealthy) > 0 {
		r.Summary = true
		m.deps.Dispatcher.Dispatch(notify.NewSummary(r.Unhealthy, now))
	}
}

// Run repeats RunCycle every Period until ctx is cancelled, sleeping
// whatever is left of each period. An overrun cycle is followed immediately
// by the next one with no catch-up. It returns nil on cancellation and the
// wait error otherwise.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		start := m.deps.Clock.Now()

		if _, err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return err
		}

		rest := m.opts.Period - m.deps.Clock.Now().Sub(start)
		m.logger.Trace().Dur("sleep", rest).Msg("Cycle finished")

		if err := m.deps.Clock.Sleep(ctx, rest); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			return err
		}
	}
}
