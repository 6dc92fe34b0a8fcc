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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPollerWait(t *testing.T) {
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK))

	defer func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}()

	p, err := NewPoller(fds[0])
	require.NoError(t, err)

	defer func() { _ = p.Close() }()

	n, err := p.Wait(10 * time.Millisecond)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = unix.Write(fds[1], []byte{1})
	require.NoError(t, err)

	n, err = p.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPollerRegisterFailure(t *testing.T) {
	_, err := NewPoller(-1)
	require.ErrorIs(t, err, ErrPollerRegister)
}
