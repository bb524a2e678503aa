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

package timesync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barksync/bark/protocol"
)

func TestHandleBroadcastAddressedToSelf(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, RID: 42, T1: 1000}
	reply, ok := HandleBroadcast(pkt, 42, 1500)
	require.True(t, ok)
	require.Equal(t, uint64(1500), reply.T2)
	require.Equal(t, protocol.ReceiverID(42), reply.RID)
}

func TestHandleBroadcastAddressedToAll(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, RID: protocol.BroadcastReceiver, T1: 1000}
	reply, ok := HandleBroadcast(pkt, 7, 1500)
	require.True(t, ok)
	require.Equal(t, protocol.ReceiverID(7), reply.RID)
}

func TestHandleBroadcastIgnoresOtherReceiver(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, RID: 42, T1: 1000}
	_, ok := HandleBroadcast(pkt, 7, 1500)
	require.False(t, ok)
}

func TestHandleBroadcastRejectsNonBroadcastPhase(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, T1: 1000, T2: 1200}
	_, ok := HandleBroadcast(pkt, 7, 1500)
	require.False(t, ok)
}

func TestHandleReceiverReplyStampsT3(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, RID: 7, T1: 1000, T2: 1200}
	reply, ok := HandleReceiverReply(pkt, 1300)
	require.True(t, ok)
	require.Equal(t, uint64(1300), reply.T3)
}

func TestHandleReceiverReplyRejectsWrongPhase(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, T1: 1000}
	_, ok := HandleReceiverReply(pkt, 1300)
	require.False(t, ok)
}

func TestHandleStreamReplySymmetricClocks(t *testing.T) {
	// t1=1000 (source broadcast), t2=1100 (receiver reply), t3=1150
	// (source stream reply), now=1250 (receiver recv): rtt = t3-t1 =
	// 150, delta = ((t2-t1) + (t3-now)) / 2 = (100 - 100) / 2 = 0.
	pkt := protocol.TimePacket{SID: 1, T1: 1000, T2: 1100, T3: 1150}
	rtt, delta, ok := HandleStreamReply(pkt, 1250)
	require.True(t, ok)
	require.Equal(t, uint64(150), rtt)
	require.Equal(t, int64(0), delta)
}

func TestHandleStreamReplyDetectsClockOffset(t *testing.T) {
	// delta = ((t2-t1) + (t3-now)) / 2 = (600 + 400) / 2 = 500.
	pkt := protocol.TimePacket{SID: 1, T1: 1000, T2: 1600, T3: 1650}
	_, delta, ok := HandleStreamReply(pkt, 1250)
	require.True(t, ok)
	require.Equal(t, int64(500), delta)
}

func TestHandleStreamReplyRejectsWrongPhase(t *testing.T) {
	pkt := protocol.TimePacket{SID: 1, T1: 1000, T2: 1200}
	_, _, ok := HandleStreamReply(pkt, 1300)
	require.False(t, ok)
}
