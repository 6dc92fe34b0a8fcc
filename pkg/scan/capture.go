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
)

const (
	// DefaultRecvBufferBytes is the SO_RCVBUF requested for the capture socket.
	DefaultRecvBufferBytes = 624640

	captureFrameLen = 1514
)

// frameSocket is a non-blocking link-layer socket. Recv returns 0, nil when
// nothing is queued.
type frameSocket interface {
	FD() int
	Recv(buf []byte) (int, error)
	Close() error
}

type frameSocketOpener func(recvBuffer int, ack uint32) (frameSocket, error)

// CaptureOptions tunes the CaptureListener.
type CaptureOptions struct {
	RecvBufferBytes int
}

// CaptureListener reads probe replies off the wire.
type CaptureListener struct {
	sock   frameSocket
	local  netip.AddrPort
	buf    []byte
	logger logger.Logger
}

// NewCaptureListener opens the capture socket with the reply filter attached.
// Only SYN-ACKs addressed to local are reported.
func NewCaptureListener(local models.HostAddress, opts CaptureOptions, log logger.Logger) (*CaptureListener, error) {
	return newCaptureListener(local, opts, openPacketSocket, log)
}

func newCaptureListener(
	local models.HostAddress, opts CaptureOptions, open frameSocketOpener, log logger.Logger,
) (*CaptureListener, error) {
	if !local.Valid() {
		return nil, ErrInvalidAddress
	}

	if opts.RecvBufferBytes <= 0 {
		opts.RecvBufferBytes = DefaultRecvBufferBytes
	}

	sock, err := open(opts.RecvBufferBytes, ProbeAck)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("local", local.String()).
		Int("recv_buffer", opts.RecvBufferBytes).
		Msg("Capture socket ready")

	return &CaptureListener{
		sock:   sock,
		local:  local.AddrPort(),
		buf:    make([]byte, captureFrameLen),
		logger: log,
	}, nil
}

// FD is the capture socket descriptor, for registering with a Poller.
func (c *CaptureListener) FD() int {
	return c.sock.FD()
}

// Capture performs one non-blocking read and returns the "ip:port" of the
// host that answered. It returns false when nothing is queued, on read
// errors, and for frames that are not a SYN-ACK to our probe address.
func (c *CaptureListener) Capture() (string, bool) {
	n, err := c.sock.Recv(c.buf)
	if err != nil {
		c.logger.Error().Err(err).Msg("Capture read failed")
		return "", false
	}

	if n == 0 {
		return "", false
	}

	return c.accept(c.buf[:n])
}

func (c *CaptureListener) accept(frame []byte) (string, bool) {
	reply, err := ParseReply(frame)
	if err != nil {
		c.logger.Debug().Err(err).Int("len", len(frame)).Msg("Ignoring frame")
		return "", false
	}

	if !reply.IsSynAck() {
		return "", false
	}

	if reply.Dst != c.local.Addr().As4() || reply.DstPort != c.local.Port() {
		return "", false
	}

	metrics.RecordReply(context.Background())

	return reply.Key(), true
}

// Close closes the capture socket.
func (c *CaptureListener) Close() error {
	return c.sock.Close()
}
