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

// Package workers runs submitted tasks on a fixed set of goroutines. Each
// goroutine owns a resource slot that is created the first time one of its
// tasks asks for it and is reused for the goroutine's lifetime.
package workers

import (
	"errors"
	"sync"

	"github.com/carverauto/probewatch/pkg/logger"
)

var (
	ErrQueueFull  = errors.New("worker queue full")
	ErrPoolClosed = errors.New("worker pool closed")
)

const (
	defaultQueueMultiplier = 256
)

// Opener creates the resource for one worker.
type Opener[R any] func(workerID int) (R, error)

// Closer releases a worker resource on shutdown.
type Closer[R any] func(R) error

// Slot is a worker-owned resource. Only the owning worker touches it.
type Slot[R any] struct {
	WorkerID int

	open   Opener[R]
	opened bool
	res    R
	err    error
}

// Get returns the worker's resource, opening it on first use. A failed open
// is remembered: the worker stays broken for its lifetime.
func (s *Slot[R]) Get() (R, error) {
	if !s.opened {
		s.opened = true

		if s.open != nil {
			s.res, s.err = s.open(s.WorkerID)
		}
	}

	return s.res, s.err
}

// Task is a unit of work. It runs on exactly one worker, exactly once.
type Task[R any] func(slot *Slot[R])

type Config[R any] struct {
	Name    string
	Workers int
	// QueueSize bounds pending tasks. Zero means Workers*256.
	QueueSize int
	Open      Opener[R]
	Close     Closer[R]
}

// Pool is a bounded worker pool.
type Pool[R any] struct {
	name   string
	tasks  chan Task[R]
	closer Closer[R]
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts cfg.Workers goroutines (at least one).
func New[R any](cfg Config[R], log logger.Logger) *Pool[R] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * defaultQueueMultiplier
	}

	p := &Pool[R]{
		name:   cfg.Name,
		tasks:  make(chan Task[R], cfg.QueueSize),
		closer: cfg.Close,
		logger: log,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)

		slot := &Slot[R]{WorkerID: i, open: cfg.Open}

		go func() {
			defer p.wg.Done()

			p.worker(slot)
		}()
	}

	return p
}

// Submit enqueues task without blocking.
func (p *Pool[R]) Submit(task Task[R]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting work, lets queued tasks finish and releases every
// opened worker resource.
func (p *Pool[R]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}

	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// Pending is the number of queued tasks not yet picked up.
func (p *Pool[R]) Pending() int {
	return len(p.tasks)
}

func (p *Pool[R]) worker(slot *Slot[R]) {
	defer p.release(slot)

	for task := range p.tasks {
		p.run(task, slot)
	}
}

func (p *Pool[R]) run(task Task[R], slot *Slot[R]) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Str("pool", p.name).
				Int("worker", slot.WorkerID).
				Interface("panic", r).
				Msg("Task panicked")
		}
	}()

	task(slot)
}

func (p *Pool[R]) release(slot *Slot[R]) {
	if !slot.opened || slot.err != nil || p.closer == nil {
		return
	}

	if err := p.closer(slot.res); err != nil {
		p.logger.Warn().
			Err(err).
			Str("pool", p.name).
			Int("worker", slot.WorkerID).
			Msg("Failed to release worker resource")
	}
}
