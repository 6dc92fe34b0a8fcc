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
	"fmt"

	"github.com/carverauto/probewatch/pkg/models"
)

// LocalAddress is the probe source address: override if set, otherwise the
// IPv4 address of the interface carrying the default route.
func LocalAddress(override string, port int) (models.HostAddress, error) {
	ip := override
	if ip == "" {
		var err error

		ip, err = defaultRouteIPv4()
		if err != nil {
			return models.HostAddress{}, err
		}
	}

	addr := models.NewHostAddress(ip, port)
	if !addr.Valid() {
		return models.HostAddress{}, fmt.Errorf("%w: %s port %d", ErrInvalidAddress, ip, port)
	}

	return addr, nil
}
