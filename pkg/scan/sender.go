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

package scan

import (
	"context"
	"net/netip"

	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/metrics"
	"github.com/carverauto/probewatch/pkg/models"
	"github.com/carverauto/probewatch/pkg/workers"
)

const (
	defaultSendWorkers = 8
)

// rawSocket sends fully formed IPv4 datagrams.
type rawSocket interface {
	SendTo(packet []byte, dst netip.AddrPort) error
	Close() error
}

type socketOpener func() (rawSocket, error)

// SenderOptions tunes the ProbeSender.
type SenderOptions struct {
	// Workers is the number of concurrent send goroutines, each owning one
	// raw socket. Defaults to 8.
	Workers int
	// QueueSize bounds probes waiting for a worker.
	QueueSize int
	Mode      ScanMode
}

// ProbeSender renders probes and transmits them from a pool of workers.
// Detect never blocks on the network and reports nothing back: a probe that
// fails to go out simply never gets a reply.
type ProbeSender struct {
	local  models.HostAddress
	mode   ScanMode
	pool   *workers.Pool[rawSocket]
	logger logger.Logger
}

// NewProbeSender builds a sender whose probes originate from local.
func NewProbeSender(local models.HostAddress, opts SenderOptions, log logger.Logger) (*ProbeSender, error) {
	return newProbeSender(local, opts, openRawSocket, log)
}

func newProbeSender(local models.HostAddress, opts SenderOptions, open socketOpener, log logger.Logger) (*ProbeSender, error) {
	if !local.Valid() {
		return nil, ErrInvalidAddress
	}

	if _, err := tcpFlags(opts.Mode); err != nil {
		return nil, err
	}

	if opts.Workers <= 0 {
		opts.Workers = defaultSendWorkers
	}

	s := &ProbeSender{
		local:  local,
		mode:   opts.Mode,
		logger: log,
	}

	s.pool = workers.New(workers.Config[rawSocket]{
		Name:      "probe-send",
		Workers:   opts.Workers,
		QueueSize: opts.QueueSize,
		Open: func(workerID int) (rawSocket, error) {
			sock, err := open()
			if err != nil {
				return nil, err
			}

			log.Debug().Int("worker", workerID).Msg("Opened raw send socket")

			return sock, nil
		},
		Close: func(sock rawSocket) error {
			return sock.Close()
		},
	}, log)

	return s, nil
}

// Local is the address probes are sent from.
func (s *ProbeSender) Local() models.HostAddress {
	return s.local
}

// Detect queues one probe to dst.
func (s *ProbeSender) Detect(dst models.HostAddress) {
	if !dst.Valid() {
		s.logger.Warn().Str("ip", dst.IP()).Int("port", dst.Port()).Msg("Skipping probe to invalid address")
		return
	}

	err := s.pool.Submit(func(slot *workers.Slot[rawSocket]) {
		s.send(slot, dst)
	})
	if err != nil {
		metrics.RecordProbeError(context.Background(), "enqueue")
		s.logger.Warn().Err(err).Str("host", dst.String()).Msg("Dropped probe")
	}
}

func (s *ProbeSender) send(slot *workers.Slot[rawSocket], dst models.HostAddress) {
	ctx := context.Background()

	sock, err := slot.Get()
	if err != nil {
		metrics.RecordProbeError(ctx, "socket")
		s.logger.Error().Err(err).Int("worker", slot.WorkerID).Msg("Create send socket failed")

		return
	}

	pkt, err := BuildProbe(dst, s.local, s.mode)
	if err != nil {
		metrics.RecordProbeError(ctx, "build")
		s.logger.Error().Err(err).Str("host", dst.String()).Msg("Failed to build probe")

		return
	}

	if err := sock.SendTo(pkt, dst.AddrPort()); err != nil {
		metrics.RecordProbeError(ctx, "send")
		s.logger.Error().Err(err).Str("host", dst.String()).Msg("Send datagram failed")

		return
	}

	metrics.RecordProbeSent(ctx)
}

// Close waits for queued probes and closes every worker socket.
func (s *ProbeSender) Close() error {
	s.pool.Close()

	return nil
}
