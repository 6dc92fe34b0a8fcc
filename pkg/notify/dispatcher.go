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

package notify

import (
	"context"
	"time"

	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/metrics"
	"github.com/carverauto/probewatch/pkg/workers"
)

const (
	DefaultWorkers = 2
	defaultTimeout = 5 * time.Second
)

// Dispatcher fans messages out to every sink on a small worker pool so the
// probe loop never waits on delivery. Failures are logged and not retried.
type Dispatcher struct {
	sinks   []Notifier
	pool    *workers.Pool[struct{}]
	timeout time.Duration
	logger  logger.Logger
}

// NewDispatcher starts workers goroutines (DefaultWorkers when <= 0). Each
// delivery is bounded by timeout.
func NewDispatcher(sinks []Notifier, nWorkers int, timeout time.Duration, log logger.Logger) *Dispatcher {
	if nWorkers <= 0 {
		nWorkers = DefaultWorkers
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Dispatcher{
		sinks: sinks,
		pool: workers.New(workers.Config[struct{}]{
			Name:    "notify",
			Workers: nWorkers,
		}, log),
		timeout: timeout,
		logger:  log,
	}
}

// Dispatch queues msg for every sink without blocking.
func (d *Dispatcher) Dispatch(msg *Message) {
	for _, sink := range d.sinks {
		err := d.pool.Submit(func(*workers.Slot[struct{}]) {
			d.deliver(sink, msg)
		})
		if err != nil {
			metrics.RecordNotification(context.Background(), sink.Name(), err)
			d.logger.Warn().Err(err).Str("sink", sink.Name()).Str("id", msg.ID).Msg("Dropped notification")
		}
	}
}

func (d *Dispatcher) deliver(sink Notifier, msg *Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err := sink.Notify(ctx, msg)
	metrics.RecordNotification(ctx, sink.Name(), err)

	if err != nil {
		d.logger.Error().
			Err(err).
			Str("sink", sink.Name()).
			Str("id", msg.ID).
			Str("kind", string(msg.Kind)).
			Msg("Notification delivery failed")

		return
	}

	d.logger.Debug().Str("sink", sink.Name()).Str("id", msg.ID).Msg("Notification delivered")
}

// Close waits for queued deliveries.
func (d *Dispatcher) Close() {
	d.pool.Close()
}
