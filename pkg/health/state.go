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

// Package health turns a stream of per-host probe successes and failures into
// a debounced healthy/unhealthy verdict.
//
// A host goes unhealthy once failThreshold failures land inside an
// interval-second window. It comes back only after the failure ring has fully
// drained and a further 2*interval successes have been seen. Both conditions
// advance per event, not per wall-clock tick.
//
// A State is not safe for concurrent use; the probe loop owns every State.
package health

import (
	"fmt"
	"strings"
	"time"
)

const (
	// MinFailThreshold is the smallest accepted failure count.
	MinFailThreshold = 3

	DefaultFailThreshold = 3
	DefaultInterval      = 5
)

// Clock returns monotonic time in whole seconds.
type Clock func() int64

//nolint:gochecknoglobals // process start anchors the default monotonic clock
var processStart = time.Now()

func monotonicSeconds() int64 {
	return int64(time.Since(processStart) / time.Second)
}

type Option func(*State)

// WithClock replaces the monotonic clock used to stamp failures.
func WithClock(clock Clock) Option {
	return func(s *State) {
		if clock != nil {
			s.now = clock
		}
	}
}

// State is the hysteresis record for a single host.
//
// Failure timestamps live in a fixed ring of failThreshold+1 slots. One slot
// is always left unused so head == tail means empty and
// (tail+1)%len == head means full.
type State struct {
	healthy        bool
	recoverLatency int
	interval       int64

	head int
	tail int
	ring []int64

	now Clock
}

// New returns a healthy State. failThreshold is raised to MinFailThreshold
// and interval to failThreshold when smaller.
func New(failThreshold, interval int, opts ...Option) *State {
	if failThreshold < MinFailThreshold {
		failThreshold = MinFailThreshold
	}

	if interval < failThreshold {
		interval = failThreshold
	}

	s := &State{
		healthy:  true,
		interval: int64(interval),
		ring:     make([]int64, failThreshold+1),
		now:      monotonicSeconds,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// OnSuccess records a reply and reports whether the host just recovered.
func (s *State) OnSuccess() bool {
	if s.recoverLatency > 0 {
		s.recoverLatency--
	}

	if !s.empty() {
		s.head = s.next(s.head)
	}

	if !s.healthy && s.empty() && s.recoverLatency == 0 {
		s.healthy = true

		return true
	}

	return false
}

// OnFail records a missed reply and reports whether the host just went
// unhealthy.
func (s *State) OnFail() bool {
	now := s.now()

	s.ring[s.tail] = now
	s.tail = s.next(s.tail)

	// wrapped: drop the oldest failure
	if s.tail == s.head {
		s.head = s.next(s.head)
	}

	if s.full() && s.healthy && now-s.ring[s.head] <= s.interval {
		s.healthy = false
		s.recoverLatency = int(2 * s.interval)

		return true
	}

	return false
}

// Healthy reports the current verdict.
func (s *State) Healthy() bool { return s.healthy }

// RecoverLatency is the remaining success countdown before recovery.
func (s *State) RecoverLatency() int { return s.recoverLatency }

// Interval is the failure window in seconds.
func (s *State) Interval() int { return int(s.interval) }

// FailThreshold is the number of failures that trips the state.
func (s *State) FailThreshold() int { return len(s.ring) - 1 }

// FailCount is the number of failures currently held in the ring.
func (s *State) FailCount() int {
	return (s.tail - s.head + len(s.ring)) % len(s.ring)
}

// Failures returns the recorded failure timestamps, oldest first.
func (s *State) Failures() []int64 {
	out := make([]int64, 0, s.FailCount())
	for i := s.head; i != s.tail; i = s.next(i) {
		out = append(out, s.ring[i])
	}

	return out
}

// String renders the record as "recover: N | t1 |t2 | |" for debug logs.
func (s *State) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "healthy: %t recover: %d |", s.healthy, s.recoverLatency)

	for _, ts := range s.Failures() {
		fmt.Fprintf(&b, " %d |", ts)
	}

	return b.String()
}

func (s *State) next(i int) int {
	return (i + 1) % len(s.ring)
}

func (s *State) empty() bool {
	return s.head == s.tail
}

func (s *State) full() bool {
	return s.next(s.tail) == s.head
}
