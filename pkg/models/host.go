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

// Package models provides the value types shared by the probe engine.
package models

import (
	"net/netip"
	"strconv"
)

// HostAddress is an IPv4 TCP endpoint read from the host list. It is
// immutable once built; the canonical "ip:port" form is computed up front
// and doubles as the key for per-host health state.
type HostAddress struct {
	ip    string
	port  int
	addr  netip.AddrPort
	valid bool
	key   string
}

// NewHostAddress parses ip and port. The result is marked invalid (and has an
// empty key) when ip is not a dotted IPv4 address or port is outside 1-65535.
func NewHostAddress(ip string, port int) HostAddress {
	h := HostAddress{ip: ip, port: port}

	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() || port < 1 || port > 65535 {
		return h
	}

	h.addr = netip.AddrPortFrom(addr, uint16(port)) // #nosec G115 - range checked above
	h.valid = true
	h.key = ip + ":" + strconv.Itoa(port)

	return h
}

// ParseHostAddress splits an "ip:port" string and builds a HostAddress.
func ParseHostAddress(s string) HostAddress {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return HostAddress{ip: s}
	}

	return NewHostAddress(ap.Addr().String(), int(ap.Port()))
}

// IP returns the textual address as supplied.
func (h HostAddress) IP() string { return h.ip }

// Port returns the port as supplied, which may be out of range when !Valid().
func (h HostAddress) Port() int { return h.port }

// Valid reports whether the address parsed.
func (h HostAddress) Valid() bool { return h.valid }

// AddrPort returns the binary socket address.
func (h HostAddress) AddrPort() netip.AddrPort { return h.addr }

// IP4 returns the address as four network-order bytes.
func (h HostAddress) IP4() [4]byte { return h.addr.Addr().As4() }

// String returns the canonical "ip:port" form, or "" when invalid.
func (h HostAddress) String() string { return h.key }
