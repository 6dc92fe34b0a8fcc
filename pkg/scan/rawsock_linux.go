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
	"fmt"
	"net/netip"

	"golang.org/x/sys/unix"
)

// inetRawSocket is an AF_INET raw socket with IP_HDRINCL set, so the kernel
// sends our IPv4 header as-is.
type inetRawSocket struct {
	fd int
}

func openRawSocket() (rawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRawSocket, err)
	}

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		_ = unix.Close(fd)

		return nil, fmt.Errorf("%w: IP_HDRINCL: %w", ErrRawSocket, err)
	}

	return &inetRawSocket{fd: fd}, nil
}

func (s *inetRawSocket) SendTo(packet []byte, dst netip.AddrPort) error {
	sa := &unix.SockaddrInet4{
		Port: int(dst.Port()),
		Addr: dst.Addr().As4(),
	}

	return unix.Sendto(s.fd, packet, 0, sa)
}

func (s *inetRawSocket) Close() error {
	return unix.Close(s.fd)
}
