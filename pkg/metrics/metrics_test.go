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

package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, m.Name)

	want := attribute.NewSet(attrs...)

	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}

	return 0
}

// The global delegate binds once per process, so everything is checked
// against a single reader.
func TestInstruments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	ctx := context.Background()

	RecordProbeSent(ctx)
	RecordProbeSent(ctx)
	RecordProbeError(ctx, "send")
	RecordReply(ctx)
	RecordTransitions(ctx, DirectionDown, 3)
	RecordTransitions(ctx, DirectionRecovered, 0)
	RecordCycle(ctx, 900*time.Millisecond)
	RecordNotification(ctx, "webhook", nil)
	RecordNotification(ctx, "webhook", errors.New("boom"))

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, got[metricProbesSent]))
	assert.Equal(t, int64(1), sumFor(t, got[metricProbeErrors], attribute.String("reason", "send")))
	assert.Equal(t, int64(1), sumFor(t, got[metricReplies]))
	assert.Equal(t, int64(3), sumFor(t, got[metricTransitions], attribute.String("direction", DirectionDown)))
	assert.Zero(t, sumFor(t, got[metricTransitions], attribute.String("direction", DirectionRecovered)))
	assert.Equal(t, int64(1), sumFor(t, got[metricNotifications],
		attribute.String("sink", "webhook"), attribute.String("outcome", "failure")))

	hist, ok := got[metricCycleDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestInitializeMetricsDisabled(t *testing.T) {
	_, err := InitializeMetrics(context.Background(), Config{})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	_, err = InitializeMetrics(context.Background(), Config{Enabled: true})
	require.ErrorIs(t, err, ErrOTelMetricsDisabled)

	require.NoError(t, Shutdown(context.Background()))
}

func TestSetupTLSConfigMissingCA(t *testing.T) {
	_, err := setupTLSConfig(&TLSConfig{CAFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
}
