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

// Package metrics holds the OpenTelemetry instruments for probe traffic,
// health transitions, cycle timing and notification delivery.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "probewatch"

	metricProbesSent    = "probewatch_probes_sent_total"
	metricProbeErrors   = "probewatch_probe_errors_total"
	metricReplies       = "probewatch_replies_total"
	metricTransitions   = "probewatch_transitions_total"
	metricCycleDuration = "probewatch_cycle_duration_seconds"
	metricNotifications = "probewatch_notifications_total"
)

// Transition directions.
const (
	DirectionDown      = "down"
	DirectionRecovered = "recovered"
)

var (
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	meterOnce sync.Once
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	sentCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	errorCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	replyCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	transitionCounter metric.Int64Counter
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	cycleHistogram metric.Float64Histogram
	//nolint:gochecknoglobals // metrics instruments are shared across the process intentionally
	notifyCounter metric.Int64Counter
)

func initMeter() {
	meter := otel.Meter(meterName)

	sentCounter = int64Counter(meter, metricProbesSent, "Probe datagrams handed to the kernel")
	errorCounter = int64Counter(meter, metricProbeErrors, "Probes that could not be queued, built or sent")
	replyCounter = int64Counter(meter, metricReplies, "SYN-ACK replies attributed to a probed host")
	transitionCounter = int64Counter(meter, metricTransitions, "Host health state changes")
	notifyCounter = int64Counter(meter, metricNotifications, "Notification deliveries by sink and outcome")

	hist, err := meter.Float64Histogram(
		metricCycleDuration,
		metric.WithDescription("Time spent in one probe cycle, excluding the trailing sleep"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}
	cycleHistogram = hist
}

func int64Counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		otel.Handle(err)
	}

	return counter
}

// RecordProbeSent counts one transmitted probe.
func RecordProbeSent(ctx context.Context) {
	meterOnce.Do(initMeter)
	if sentCounter == nil {
		return
	}

	sentCounter.Add(ctx, 1)
}

// RecordProbeError counts a probe lost before reaching the wire.
func RecordProbeError(ctx context.Context, reason string) {
	meterOnce.Do(initMeter)
	if errorCounter == nil {
		return
	}

	errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordReply(ctx context.Context) {
	meterOnce.Do(initMeter)
	if replyCounter == nil {
		return
	}

	replyCounter.Add(ctx, 1)
}

// RecordTransitions counts count hosts moving in direction.
func RecordTransitions(ctx context.Context, direction string, count int) {
	if count == 0 {
		return
	}

	meterOnce.Do(initMeter)
	if transitionCounter == nil {
		return
	}

	transitionCounter.Add(ctx, int64(count), metric.WithAttributes(attribute.String("direction", direction)))
}

func RecordCycle(ctx context.Context, duration time.Duration) {
	meterOnce.Do(initMeter)
	if cycleHistogram == nil {
		return
	}

	cycleHistogram.Record(ctx, duration.Seconds())
}

// RecordNotification counts one delivery attempt on sink.
func RecordNotification(ctx context.Context, sink string, err error) {
	meterOnce.Do(initMeter)
	if notifyCounter == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	notifyCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.String("outcome", outcome),
	))
}
