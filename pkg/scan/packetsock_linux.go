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

//go:build linux

package scan

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// packetSocket is an AF_PACKET socket seeing every frame on the host, cut
// down in the kernel by the reply filter.
type packetSocket struct {
	fd int
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

func openPacketSocket(recvBuffer int, ack uint32) (frameSocket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureSocket, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBuffer); err != nil {
		_ = unix.Close(fd)

		return nil, fmt.Errorf("%w: SO_RCVBUF: %w", ErrCaptureSocket, err)
	}

	if err := attachReplyFilter(fd, ack); err != nil {
		_ = unix.Close(fd)

		return nil, err
	}

	return &packetSocket{fd: fd}, nil
}

func attachReplyFilter(fd int, ack uint32) error {
	raw, err := AssembleReplyFilter(ack)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAttachFilter, err)
	}

	filter := make([]unix.SockFilter, len(raw))
	for i, ins := range raw {
		filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}

	prog := &unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}

	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog); err != nil {
		return fmt.Errorf("%w: %w", ErrAttachFilter, err)
	}

	return nil
}

func (s *packetSocket) FD() int {
	return s.fd
}

func (s *packetSocket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return 0, nil
		}

		return 0, err
	}

	return n, nil
}

func (s *packetSocket) Close() error {
	return unix.Close(s.fd)
}
