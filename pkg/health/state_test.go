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

package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) read() int64 { return c.now }

func newTestState(threshold, interval int) (*State, *fakeClock) {
	clock := &fakeClock{}

	return New(threshold, interval, WithClock(clock.read)), clock
}

func TestNewDefaults(t *testing.T) {
	s := New(DefaultFailThreshold, DefaultInterval)

	assert.True(t, s.Healthy())
	assert.Equal(t, 0, s.RecoverLatency())
	assert.Equal(t, 0, s.FailCount())
	assert.Equal(t, 3, s.FailThreshold())
	assert.Equal(t, 5, s.Interval())
}

func TestNewClampsThresholds(t *testing.T) {
	s := New(1, 1)
	assert.Equal(t, MinFailThreshold, s.FailThreshold())
	assert.Equal(t, MinFailThreshold, s.Interval())

	s = New(6, 2)
	assert.Equal(t, 6, s.FailThreshold())
	assert.Equal(t, 6, s.Interval())
}

func TestOnFailTripsAfterThresholdInsideWindow(t *testing.T) {
	s, clock := newTestState(3, 5)

	clock.now = 0
	assert.False(t, s.OnFail())
	clock.now = 1
	assert.False(t, s.OnFail())
	assert.True(t, s.Healthy())

	clock.now = 2
	assert.True(t, s.OnFail(), "third failure inside the window trips")
	assert.False(t, s.Healthy())
	assert.Equal(t, 10, s.RecoverLatency())
	assert.Equal(t, []int64{0, 1, 2}, s.Failures())
}

func TestOnFailAtWindowEdgeStillTrips(t *testing.T) {
	s, clock := newTestState(3, 5)

	clock.now = 100
	s.OnFail()
	clock.now = 102
	s.OnFail()
	clock.now = 105

	assert.True(t, s.OnFail(), "now - oldest == interval is inside the window")
}

func TestOnFailSpreadOutStaysHealthy(t *testing.T) {
	s, clock := newTestState(3, 5)

	for i := 0; i < 10; i++ {
		clock.now = int64(i * 6)
		assert.False(t, s.OnFail(), "failure %d", i)
	}

	assert.True(t, s.Healthy())
	assert.Equal(t, 3, s.FailCount(), "ring holds at most failThreshold entries")
	assert.Equal(t, []int64{42, 48, 54}, s.Failures())
}

func TestOnFailTripsOnceBurstArrives(t *testing.T) {
	s, clock := newTestState(3, 5)

	clock.now = 0
	s.OnFail()
	clock.now = 20
	s.OnFail()
	clock.now = 21
	assert.False(t, s.OnFail(), "oldest failure is outside the window")

	clock.now = 22
	assert.True(t, s.OnFail(), "window now holds 20, 21, 22")
	assert.Equal(t, []int64{20, 21, 22}, s.Failures())
}

func TestOnFailWhileUnhealthyDoesNotRetrigger(t *testing.T) {
	s, clock := newTestState(3, 5)

	for i := 0; i < 3; i++ {
		clock.now = int64(i)
		s.OnFail()
	}
	require.False(t, s.Healthy())

	s.OnSuccess()
	clock.now = 3
	assert.False(t, s.OnFail())
	assert.Equal(t, 9, s.RecoverLatency(), "latency is not re-armed")
}

func TestRecoveryNeedsDrainAndLatency(t *testing.T) {
	s, clock := newTestState(3, 5)

	for i := 0; i < 3; i++ {
		clock.now = int64(i)
		s.OnFail()
	}
	require.False(t, s.Healthy())
	require.Equal(t, 10, s.RecoverLatency())

	for i := 0; i < 3; i++ {
		assert.False(t, s.OnSuccess())
	}

	assert.Equal(t, 0, s.FailCount(), "three successes drain the ring")
	assert.Equal(t, 7, s.RecoverLatency())
	assert.False(t, s.Healthy())

	for i := 0; i < 6; i++ {
		assert.False(t, s.OnSuccess())
	}

	assert.Equal(t, 1, s.RecoverLatency())
	assert.True(t, s.OnSuccess(), "tenth success completes recovery")
	assert.True(t, s.Healthy())
	assert.Equal(t, 0, s.RecoverLatency())

	assert.False(t, s.OnSuccess(), "already healthy")
}

func TestRecoveryInterruptedByFailure(t *testing.T) {
	s, clock := newTestState(3, 5)

	for i := 0; i < 3; i++ {
		clock.now = int64(i)
		s.OnFail()
	}

	for i := 0; i < 9; i++ {
		s.OnSuccess()
	}
	require.Equal(t, 1, s.RecoverLatency())

	clock.now = 30
	s.OnFail()
	assert.Equal(t, 1, s.FailCount())

	assert.True(t, s.OnSuccess(), "latency and ring both reach zero on the same success")
	assert.True(t, s.Healthy())
	assert.Equal(t, 0, s.FailCount())
}

func TestRecoveryWaitsForRingAfterLatency(t *testing.T) {
	s, clock := newTestState(3, 5)

	for i := 0; i < 3; i++ {
		clock.now = int64(i)
		s.OnFail()
	}

	for i := 0; i < 10; i++ {
		s.OnSuccess()
	}
	require.True(t, s.Healthy())

	// Trip again, then pile failures on while unhealthy so the ring stays
	// full after the latency countdown ends.
	for i := 0; i < 3; i++ {
		clock.now = int64(100 + i)
		s.OnFail()
	}
	require.False(t, s.Healthy())

	for i := 0; i < 10; i++ {
		s.OnSuccess()
		clock.now++
		s.OnFail()
	}

	assert.Equal(t, 0, s.RecoverLatency())
	assert.Equal(t, 3, s.FailCount())
	assert.False(t, s.Healthy())

	assert.False(t, s.OnSuccess())
	assert.False(t, s.OnSuccess())
	assert.True(t, s.OnSuccess(), "third success drains the ring")
}

func TestOnSuccessOnHealthyIsNoop(t *testing.T) {
	s, clock := newTestState(3, 5)

	clock.now = 7
	s.OnFail()
	assert.Equal(t, 1, s.FailCount())

	assert.False(t, s.OnSuccess())
	assert.Equal(t, 0, s.FailCount())
	assert.Equal(t, 0, s.RecoverLatency())

	assert.False(t, s.OnSuccess())
	assert.Equal(t, 0, s.FailCount())
}

func TestString(t *testing.T) {
	s, clock := newTestState(3, 5)

	clock.now = 4
	s.OnFail()
	clock.now = 5
	s.OnFail()

	assert.Equal(t, "healthy: true recover: 0 | 4 | 5 |", s.String())
}

func TestDefaultClockIsMonotonic(t *testing.T) {
	first := monotonicSeconds()
	second := monotonicSeconds()

	assert.GreaterOrEqual(t, second, first)
	assert.GreaterOrEqual(t, first, int64(0))
}
