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

package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/metrics"
)

func TestSetupWithoutMetrics(t *testing.T) {
	log, shutdown, err := Setup(context.Background(), "probewatch", &logger.Config{Level: "warn"}, metrics.Config{})
	require.NoError(t, err)
	require.NotNil(t, log)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupBadLevel(t *testing.T) {
	_, _, err := Setup(context.Background(), "probewatch", &logger.Config{Level: "loud"}, metrics.Config{})
	require.Error(t, err)
}

func TestSignalContextCancel(t *testing.T) {
	ctx, cancel := SignalContext(context.Background())
	cancel()

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
