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

	"github.com/vishvananda/netlink"
)

func defaultRouteIPv4() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("list routes: %w", err)
	}

	for _, r := range routes {
		if !isDefaultRoute(r) || r.LinkIndex == 0 {
			continue
		}

		link, err := netlink.LinkByIndex(r.LinkIndex)
		if err != nil {
			return "", fmt.Errorf("link %d: %w", r.LinkIndex, err)
		}

		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return "", fmt.Errorf("addresses of %s: %w", link.Attrs().Name, err)
		}

		for _, a := range addrs {
			if a.IPNet == nil {
				continue
			}

			if ip4 := a.IP.To4(); ip4 != nil {
				return ip4.String(), nil
			}
		}

		return "", fmt.Errorf("%w: %s", ErrInterfaceNoIPv4, link.Attrs().Name)
	}

	return "", ErrNoDefaultRoute
}

func isDefaultRoute(r netlink.Route) bool {
	if r.Dst == nil {
		return true
	}

	ones, _ := r.Dst.Mask.Size()

	return ones == 0 && r.Dst.IP.IsUnspecified()
}
