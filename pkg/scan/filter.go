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
	"golang.org/x/net/bpf"
)

const (
	// frame offsets as seen by a socket filter on an Ethernet link
	offEtherType  = 12
	offIPFragment = ethHeaderLen + 6
	offIPProto    = ethHeaderLen + 9
	offTCPAck     = ethHeaderLen + 8  // relative to X = IP header length
	offTCPFlags   = ethHeaderLen + 13 // relative to X = IP header length

	ipFragOffsetMask = 0x1fff
	filterAccept     = 0xffff
)

// ReplyFilter returns the classic BPF program attached to the capture
// socket. It keeps unfragmented IPv4/TCP frames that have SYN or ACK set and
// acknowledge ack; everything else is dropped in the kernel.
//
// Equivalent to:
//
//	tcp and tcp[tcpflags] & (tcp-syn|tcp-ack) != 0 and tcp[8:4] = <ack>
func ReplyFilter(ack uint32) []bpf.Instruction {
	return []bpf.Instruction{
		/* 0 */ bpf.LoadAbsolute{Off: offEtherType, Size: 2},
		/* 1 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypeIPv4, SkipFalse: 10},
		/* 2 */ bpf.LoadAbsolute{Off: offIPProto, Size: 1},
		/* 3 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: 6, SkipFalse: 8},
		/* 4 */ bpf.LoadAbsolute{Off: offIPFragment, Size: 2},
		/* 5 */ bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: ipFragOffsetMask, SkipTrue: 6},
		/* 6 */ bpf.LoadMemShift{Off: ethHeaderLen},
		/* 7 */ bpf.LoadIndirect{Off: offTCPFlags, Size: 1},
		/* 8 */ bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: synFlag | ackFlag, SkipFalse: 3},
		/* 9 */ bpf.LoadIndirect{Off: offTCPAck, Size: 4},
		/* 10 */ bpf.JumpIf{Cond: bpf.JumpEqual, Val: ack, SkipFalse: 1},
		/* 11 */ bpf.RetConstant{Val: filterAccept},
		/* 12 */ bpf.RetConstant{Val: 0},
	}
}

// AssembleReplyFilter assembles ReplyFilter for attaching with
// SO_ATTACH_FILTER.
func AssembleReplyFilter(ack uint32) ([]bpf.RawInstruction, error) {
	return bpf.Assemble(ReplyFilter(ack))
}
