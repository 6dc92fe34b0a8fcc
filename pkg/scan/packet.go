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
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"
	"syscall"

	"golang.org/x/net/ipv4"

	"github.com/carverauto/probewatch/internal/fastsum"
	"github.com/carverauto/probewatch/pkg/models"
)

// Probe signature. Every crafted packet carries ProbeIPID and ProbeSeq so
// the traffic is easy to spot in tcpdump, and the capture filter only lets
// through replies acknowledging ProbeSeq.
const (
	ProbeIPID uint16 = 9999
	ProbeSeq  uint32 = 888888
	ProbeAck         = ProbeSeq + 1

	// DefaultListenPort is the source port of probes, and so the port replies
	// are addressed to.
	DefaultListenPort = 28724
)

const (
	ethHeaderLen     = 14
	etherTypeIPv4    = 0x0800
	tcpHeaderLen     = 20
	probeLen         = ipv4.HeaderLen + tcpHeaderLen
	defaultTTL       = 64
	defaultTCPWindow = 14600

	finFlag = 0x01
	synFlag = 0x02
	rstFlag = 0x04
	pshFlag = 0x08
	ackFlag = 0x10
	urgFlag = 0x20
)

// ScanMode selects the TCP flags set on a probe.
type ScanMode int

const (
	ScanSYN ScanMode = iota
	ScanNull
	ScanFIN
	ScanXmas
	ScanACK
	// ScanUDP is declared for completeness; no probe is ever built for it.
	ScanUDP
)

//nolint:gochecknoglobals // lookup table
var scanModeNames = map[ScanMode]string{
	ScanSYN:  "syn",
	ScanNull: "null",
	ScanFIN:  "fin",
	ScanXmas: "xmas",
	ScanACK:  "ack",
	ScanUDP:  "udp",
}

func (m ScanMode) String() string {
	if name, ok := scanModeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("ScanMode(%d)", int(m))
}

// ParseScanMode maps a name such as "syn" or "xmas" to a ScanMode. Only
// modes a probe can be built for are accepted.
func ParseScanMode(name string) (ScanMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ScanSYN, nil
	}

	for mode, n := range scanModeNames {
		if n != name {
			continue
		}

		if _, err := tcpFlags(mode); err != nil {
			return 0, err
		}

		return mode, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedScanMode, name)
}

func tcpFlags(mode ScanMode) (uint8, error) {
	switch mode {
	case ScanSYN:
		return synFlag, nil
	case ScanNull:
		return 0, nil
	case ScanFIN:
		return finFlag, nil
	case ScanXmas:
		return finFlag | pshFlag | urgFlag, nil
	case ScanACK:
		return ackFlag, nil
	case ScanUDP:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedScanMode, mode)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedScanMode, mode)
	}
}

// BuildProbe renders a 40-byte IPv4+TCP datagram from src to dst with both
// checksums installed.
func BuildProbe(dst, src models.HostAddress, mode ScanMode) ([]byte, error) {
	if !dst.Valid() || !src.Valid() {
		return nil, ErrInvalidAddress
	}

	flags, err := tcpFlags(mode)
	if err != nil {
		return nil, err
	}

	srcIP := src.IP4()
	dstIP := dst.IP4()

	pkt := make([]byte, probeLen)

	ip := pkt[:ipv4.HeaderLen]
	ip[0] = 4<<4 | ipv4.HeaderLen>>2
	binary.BigEndian.PutUint16(ip[2:], probeLen)
	binary.BigEndian.PutUint16(ip[4:], ProbeIPID)
	ip[8] = defaultTTL
	ip[9] = syscall.IPPROTO_TCP
	copy(ip[12:16], srcIP[:])
	copy(ip[16:20], dstIP[:])
	binary.BigEndian.PutUint16(ip[10:], fastsum.Checksum(ip))

	tcp := pkt[ipv4.HeaderLen:]
	binary.BigEndian.PutUint16(tcp[0:], src.AddrPort().Port())
	binary.BigEndian.PutUint16(tcp[2:], dst.AddrPort().Port())
	binary.BigEndian.PutUint32(tcp[4:], ProbeSeq)
	tcp[12] = (tcpHeaderLen / 4) << 4
	tcp[13] = flags
	binary.BigEndian.PutUint16(tcp[14:], defaultTCPWindow)
	binary.BigEndian.PutUint16(tcp[16:], fastsum.TCPv4(srcIP, dstIP, tcp, nil))

	return pkt, nil
}

// Reply is the part of a captured Ethernet/IPv4/TCP frame the probe loop
// cares about.
type Reply struct {
	Src     [4]byte
	Dst     [4]byte
	SrcPort uint16
	DstPort uint16
	Seq     uint32
	Ack     uint32
	Flags   uint8
}

// Key is the remote endpoint as "ip:port", matching models.HostAddress.String.
func (r Reply) Key() string {
	return netip.AddrPortFrom(netip.AddrFrom4(r.Src), r.SrcPort).String()
}

// IsSynAck reports whether both SYN and ACK are set.
func (r Reply) IsSynAck() bool {
	return r.Flags&(synFlag|ackFlag) == synFlag|ackFlag
}

// IsRst reports whether RST is set.
func (r Reply) IsRst() bool {
	return r.Flags&rstFlag != 0
}

// ParseReply decodes an Ethernet frame carrying IPv4/TCP. It never reads past
// the IP header length declared in the frame or past a 20-byte TCP header.
func ParseReply(frame []byte) (Reply, error) {
	var r Reply

	if len(frame) < ethHeaderLen+ipv4.HeaderLen {
		return r, ErrShortIPv4Header
	}

	ip := frame[ethHeaderLen:]
	if ip[0]>>4 != 4 {
		return r, ErrNotIPv4
	}

	ihl := int(ip[0]&0x0f) * 4
	if ihl < ipv4.HeaderLen {
		return r, fmt.Errorf("%w: %d bytes", ErrBadIPv4HeaderLength, ihl)
	}

	if len(ip) < ihl {
		return r, fmt.Errorf("%w: declared %d, have %d", ErrShortIPv4Header, ihl, len(ip))
	}

	if ip[9] != syscall.IPPROTO_TCP {
		return r, ErrNotTCP
	}

	if len(ip) < ihl+tcpHeaderLen {
		return r, ErrShortTCPHeader
	}

	tcp := ip[ihl : ihl+tcpHeaderLen]

	copy(r.Src[:], ip[12:16])
	copy(r.Dst[:], ip[16:20])
	r.SrcPort = binary.BigEndian.Uint16(tcp[0:])
	r.DstPort = binary.BigEndian.Uint16(tcp[2:])
	r.Seq = binary.BigEndian.Uint32(tcp[4:])
	r.Ack = binary.BigEndian.Uint32(tcp[8:])
	r.Flags = tcp[13]

	return r, nil
}
