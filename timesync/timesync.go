/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package timesync implements the three-phase time handshake shared by
// source and receiver: a stateless set of functions operating on
// protocol.TimePacket values, so the phase logic that used to be
// duplicated in both RX handlers has exactly one implementation.
package timesync

import "github.com/barksync/bark/protocol"

// HandleBroadcast answers a phase-1 Broadcast packet addressed to rid
// (or to the broadcast receiver id), stamping t2 and rewriting rid to
// the replying receiver's own id. ok is false if the packet is not a
// Broadcast, or is addressed to a different receiver.
func HandleBroadcast(pkt protocol.TimePacket, rid protocol.ReceiverID, nowMicros uint64) (protocol.TimePacket, bool) {
	if pkt.Phase() != protocol.TimePhaseBroadcast {
		return protocol.TimePacket{}, false
	}
	if pkt.RID != protocol.BroadcastReceiver && pkt.RID != rid {
		return protocol.TimePacket{}, false
	}
	reply := pkt
	reply.RID = rid
	reply.T2 = nowMicros
	return reply, true
}

// HandleReceiverReply stamps t3 on a phase-2 ReceiverReply, producing
// the phase-3 StreamReply the source unicasts back to the receiver. ok
// is false if pkt is not a ReceiverReply.
func HandleReceiverReply(pkt protocol.TimePacket, nowMicros uint64) (protocol.TimePacket, bool) {
	if pkt.Phase() != protocol.TimePhaseReceiverReply {
		return protocol.TimePacket{}, false
	}
	reply := pkt
	reply.T3 = nowMicros
	return reply, true
}

// HandleStreamReply extracts a round-trip and clock-delta observation
// from a phase-3 StreamReply, using the canonical NTP-style offset
// formula applied to (t1, t2, t3, now). ok is false if pkt is not a
// StreamReply.
func HandleStreamReply(pkt protocol.TimePacket, nowMicros uint64) (rttUs uint64, clockDeltaUs int64, ok bool) {
	if pkt.Phase() != protocol.TimePhaseStreamReply {
		return 0, 0, false
	}
	t1, t2, t3, t4 := int64(pkt.T1), int64(pkt.T2), int64(pkt.T3), int64(nowMicros)
	rtt := t3 - t1
	if rtt < 0 {
		rtt = 0
	}
	delta := ((t2 - t1) + (t3 - t4)) / 2
	return uint64(rtt), delta, true
}
