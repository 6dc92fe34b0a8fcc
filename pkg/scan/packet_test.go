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
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"

	"github.com/carverauto/probewatch/internal/fastsum"
	"github.com/carverauto/probewatch/pkg/models"
)

func probeEndpoints(t *testing.T) (dst, src models.HostAddress) {
	t.Helper()

	dst = models.NewHostAddress("192.168.1.20", 443)
	src = models.NewHostAddress("192.168.1.5", DefaultListenPort)

	require.True(t, dst.Valid())
	require.True(t, src.Valid())

	return dst, src
}

func TestBuildProbeFlags(t *testing.T) {
	dst, src := probeEndpoints(t)

	tests := []struct {
		mode  ScanMode
		flags uint8
	}{
		{ScanSYN, synFlag},
		{ScanNull, 0},
		{ScanFIN, finFlag},
		{ScanXmas, finFlag | pshFlag | urgFlag},
		{ScanACK, ackFlag},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			pkt, err := BuildProbe(dst, src, tt.mode)
			require.NoError(t, err)
			require.Len(t, pkt, 40)

			assert.Equal(t, tt.flags, pkt[ipv4.HeaderLen+13])
		})
	}
}

func TestBuildProbeRejects(t *testing.T) {
	dst, src := probeEndpoints(t)

	_, err := BuildProbe(dst, src, ScanUDP)
	require.ErrorIs(t, err, ErrUnsupportedScanMode)

	_, err = BuildProbe(dst, src, ScanMode(42))
	require.ErrorIs(t, err, ErrUnsupportedScanMode)

	_, err = BuildProbe(models.NewHostAddress("::1", 80), src, ScanSYN)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = BuildProbe(dst, models.NewHostAddress("10.0.0.1", 0), ScanSYN)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestBuildProbeChecksums(t *testing.T) {
	dst, src := probeEndpoints(t)

	pkt, err := BuildProbe(dst, src, ScanSYN)
	require.NoError(t, err)

	// a correct header sums to zero including its own checksum
	assert.Zero(t, fastsum.Checksum(pkt[:ipv4.HeaderLen]))
	assert.Zero(t, fastsum.TCPv4(src.IP4(), dst.IP4(), pkt[ipv4.HeaderLen:], nil))

	// recomputing with the field zeroed reproduces the stored value
	tcp := append([]byte(nil), pkt[ipv4.HeaderLen:]...)
	stored := binary.BigEndian.Uint16(tcp[16:])
	tcp[16], tcp[17] = 0, 0
	assert.Equal(t, stored, fastsum.TCPv4(src.IP4(), dst.IP4(), tcp, nil))
}

func TestBuildProbeParsesWithIPv4Package(t *testing.T) {
	dst, src := probeEndpoints(t)

	pkt, err := BuildProbe(dst, src, ScanSYN)
	require.NoError(t, err)

	h, err := ipv4.ParseHeader(pkt)
	require.NoError(t, err)

	assert.Equal(t, 4, h.Version)
	assert.Equal(t, ipv4.HeaderLen, h.Len)
	assert.Equal(t, 40, h.TotalLen)
	assert.Equal(t, int(ProbeIPID), h.ID)
	assert.Equal(t, 64, h.TTL)
	assert.Equal(t, 6, h.Protocol)
	assert.Equal(t, "192.168.1.5", h.Src.String())
	assert.Equal(t, "192.168.1.20", h.Dst.String())
}

func TestBuildProbeDecodesWithGopacket(t *testing.T) {
	dst, src := probeEndpoints(t)

	pkt, err := BuildProbe(dst, src, ScanXmas)
	require.NoError(t, err)

	packet := gopacket.NewPacket(pkt, layers.LayerTypeIPv4, gopacket.Default)
	require.Nil(t, packet.ErrorLayer())

	ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	assert.Equal(t, layers.IPProtocolTCP, ip.Protocol)
	assert.Equal(t, ProbeIPID, ip.Id)

	tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	assert.Equal(t, layers.TCPPort(DefaultListenPort), tcp.SrcPort)
	assert.Equal(t, layers.TCPPort(443), tcp.DstPort)
	assert.Equal(t, ProbeSeq, tcp.Seq)
	assert.Zero(t, tcp.Ack)
	assert.Equal(t, uint16(defaultTCPWindow), tcp.Window)
	assert.Equal(t, uint8(5), tcp.DataOffset)
	assert.True(t, tcp.FIN)
	assert.True(t, tcp.PSH)
	assert.True(t, tcp.URG)
	assert.False(t, tcp.SYN)

	// gopacket recomputes the checksum the same way
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, tcp))
	assert.Equal(t, pkt[ipv4.HeaderLen+16:ipv4.HeaderLen+18], buf.Bytes()[16:18])
}

func TestParseScanMode(t *testing.T) {
	for name, want := range map[string]ScanMode{
		"":      ScanSYN,
		"syn":   ScanSYN,
		"NULL":  ScanNull,
		" fin ": ScanFIN,
		"xmas":  ScanXmas,
		"ack":   ScanACK,
	} {
		got, err := ParseScanMode(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseScanMode("udp")
	require.ErrorIs(t, err, ErrUnsupportedScanMode)

	_, err = ParseScanMode("connect")
	require.ErrorIs(t, err, ErrUnsupportedScanMode)
}

func TestParseReply(t *testing.T) {
	frame := synAckFrame().build()

	r, err := ParseReply(frame)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5:80", r.Key())
	assert.Equal(t, [4]byte{10, 0, 0, 1}, r.Dst)
	assert.Equal(t, uint16(DefaultListenPort), r.DstPort)
	assert.Equal(t, ProbeAck, r.Ack)
	assert.True(t, r.IsSynAck())
	assert.False(t, r.IsRst())
}

func TestParseReplyWithOptions(t *testing.T) {
	fields := synAckFrame()
	fields.ihl = 32
	fields.sport = 8080

	r, err := ParseReply(fields.build())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8080", r.Key())
	assert.True(t, r.IsSynAck())
}

func TestParseReplyGopacketFrame(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       []byte{0, 1, 2, 3, 4, 5},
		DstMAC:       []byte{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    []byte{172, 16, 0, 9},
		DstIP:    []byte{172, 16, 0, 1},
	}
	tcp := &layers.TCP{
		SrcPort: 22,
		DstPort: DefaultListenPort,
		Seq:     1,
		Ack:     ProbeAck,
		SYN:     true,
		ACK:     true,
		Window:  1024,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp))

	r, err := ParseReply(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "172.16.0.9:22", r.Key())
	assert.True(t, r.IsSynAck())

	assert.Equal(t, len(buf.Bytes()), runFilter(t, buf.Bytes()))
}

func TestParseReplyErrors(t *testing.T) {
	valid := synAckFrame().build()

	t.Run("short frame", func(t *testing.T) {
		_, err := ParseReply(valid[:ethHeaderLen+19])
		require.ErrorIs(t, err, ErrShortIPv4Header)
	})

	t.Run("not ipv4", func(t *testing.T) {
		frame := append([]byte(nil), valid...)
		frame[ethHeaderLen] = 6<<4 | 5
		_, err := ParseReply(frame)
		require.ErrorIs(t, err, ErrNotIPv4)
	})

	t.Run("header length below minimum", func(t *testing.T) {
		frame := append([]byte(nil), valid...)
		frame[ethHeaderLen] = 4<<4 | 4
		_, err := ParseReply(frame)
		require.ErrorIs(t, err, ErrBadIPv4HeaderLength)
	})

	t.Run("declared header exceeds frame", func(t *testing.T) {
		frame := append([]byte(nil), valid[:ethHeaderLen+24]...)
		frame[ethHeaderLen] = 4<<4 | 15
		_, err := ParseReply(frame)
		require.ErrorIs(t, err, ErrShortIPv4Header)
	})

	t.Run("not tcp", func(t *testing.T) {
		fields := synAckFrame()
		fields.proto = 17
		_, err := ParseReply(fields.build())
		require.ErrorIs(t, err, ErrNotTCP)
	})

	t.Run("truncated tcp header", func(t *testing.T) {
		_, err := ParseReply(valid[:len(valid)-1])
		require.ErrorIs(t, err, ErrShortTCPHeader)
	})

	t.Run("truncated after options", func(t *testing.T) {
		fields := synAckFrame()
		fields.ihl = 60
		frame := fields.build()
		_, err := ParseReply(frame[:ethHeaderLen+60+10])
		require.ErrorIs(t, err, ErrShortTCPHeader)
	})
}
