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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/probewatch/pkg/logger"
	"github.com/carverauto/probewatch/pkg/models"
)

// queuedSocket hands out queued frames, then reports nothing pending.
type queuedSocket struct {
	frames [][]byte
	errs   []error
	closed bool
}

func (s *queuedSocket) FD() int { return 7 }

func (s *queuedSocket) Recv(buf []byte) (int, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]

		return 0, err
	}

	if len(s.frames) == 0 {
		return 0, nil
	}

	n := copy(buf, s.frames[0])
	s.frames = s.frames[1:]

	return n, nil
}

func (s *queuedSocket) Close() error {
	s.closed = true
	return nil
}

func newTestListener(t *testing.T, sock *queuedSocket) *CaptureListener {
	t.Helper()

	var gotBuffer int

	open := func(recvBuffer int, ack uint32) (frameSocket, error) {
		gotBuffer = recvBuffer

		assert.Equal(t, ProbeAck, ack)

		return sock, nil
	}

	local := models.NewHostAddress("10.0.0.1", DefaultListenPort)

	c, err := newCaptureListener(local, CaptureOptions{}, open, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultRecvBufferBytes, gotBuffer)

	return c
}

func TestCaptureAcceptsSynAckToLocal(t *testing.T) {
	sock := &queuedSocket{frames: [][]byte{synAckFrame().build()}}
	c := newTestListener(t, sock)

	key, ok := c.Capture()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5:80", key)

	_, ok = c.Capture()
	assert.False(t, ok)

	assert.Equal(t, 7, c.FD())
	require.NoError(t, c.Close())
	assert.True(t, sock.closed)
}

func TestCaptureRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*frameFields)
	}{
		{name: "rst-ack", mutate: func(f *frameFields) { f.flags = rstFlag | ackFlag }},
		{name: "syn only", mutate: func(f *frameFields) { f.flags = synFlag }},
		{name: "other destination ip", mutate: func(f *frameFields) { f.dst = [4]byte{10, 0, 0, 9} }},
		{name: "other destination port", mutate: func(f *frameFields) { f.dport = 22 }},
		{name: "not tcp", mutate: func(f *frameFields) { f.proto = 17 }},
		{name: "bad header length", mutate: func(f *frameFields) { f.ihl = 16 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := synAckFrame()
			tt.mutate(&fields)

			c := newTestListener(t, &queuedSocket{frames: [][]byte{fields.build()}})

			_, ok := c.Capture()
			assert.False(t, ok)
		})
	}
}

func TestCaptureReadErrorYieldsNoResult(t *testing.T) {
	sock := &queuedSocket{
		errs:   []error{errors.New("device went away")},
		frames: [][]byte{synAckFrame().build()},
	}
	c := newTestListener(t, sock)

	_, ok := c.Capture()
	assert.False(t, ok)

	key, ok := c.Capture()
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.5:80", key)
}

func TestCaptureOpenFailure(t *testing.T) {
	open := func(int, uint32) (frameSocket, error) {
		return nil, ErrAttachFilter
	}

	_, err := newCaptureListener(models.NewHostAddress("10.0.0.1", DefaultListenPort),
		CaptureOptions{RecvBufferBytes: 4096}, open, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrAttachFilter)
}
