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

import "errors"

var (
	// IPv4/TCP parsing errors
	ErrShortIPv4Header     = errors.New("short IPv4 header")
	ErrNotIPv4             = errors.New("not IPv4")
	ErrBadIPv4HeaderLength = errors.New("bad IPv4 header length")
	ErrNotTCP              = errors.New("not TCP")
	ErrShortTCPHeader      = errors.New("short TCP header")

	// Probe construction errors
	ErrUnsupportedScanMode = errors.New("unsupported scan mode")
	ErrInvalidAddress      = errors.New("invalid IPv4 address")

	// Socket errors
	ErrRawSocket       = errors.New("failed to open raw send socket")
	ErrCaptureSocket   = errors.New("failed to open capture socket")
	ErrAttachFilter    = errors.New("failed to attach capture filter")
	ErrPollerCreate    = errors.New("failed to create readiness poller")
	ErrPollerRegister  = errors.New("failed to register capture socket with poller")
	ErrPollerWait      = errors.New("readiness wait failed")
	ErrUnsupportedHost = errors.New("raw probing is only supported on Linux")

	// Interface errors
	ErrNoDefaultRoute  = errors.New("no IPv4 default route")
	ErrInterfaceNoIPv4 = errors.New("interface has no IPv4 address")
)
