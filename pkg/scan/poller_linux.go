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
	"time"

	"golang.org/x/sys/unix"
)

// Poller waits for a single descriptor to become readable.
type Poller struct {
	epfd   int
	events []unix.EpollEvent
}

// NewPoller creates an epoll instance and registers fd for input readiness.
// Errors wrap ErrPollerCreate or ErrPollerRegister.
func NewPoller(fd int) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPollerCreate, err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)} // #nosec G115 -- descriptors fit in int32
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		_ = unix.Close(epfd)

		return nil, fmt.Errorf("%w: %w", ErrPollerRegister, err)
	}

	return &Poller{epfd: epfd, events: make([]unix.EpollEvent, 1)}, nil
}

// Wait blocks up to timeout and returns the number of ready descriptors.
// An interrupted wait counts as a timeout.
func (p *Poller) Wait(timeout time.Duration) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.events, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}

		return 0, fmt.Errorf("%w: %w", ErrPollerWait, err)
	}

	return n, nil
}

// Close releases the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
