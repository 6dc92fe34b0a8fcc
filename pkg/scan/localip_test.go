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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAddressOverride(t *testing.T) {
	addr, err := LocalAddress("10.1.2.3", DefaultListenPort)
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3:28724", addr.String())

	_, err = LocalAddress("fe80::1", DefaultListenPort)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = LocalAddress("10.1.2.3", 70000)
	require.ErrorIs(t, err, ErrInvalidAddress)
}
