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

package jitter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barksync/bark/protocol"
)

func pkt(seq uint64) protocol.AudioPacket {
	return protocol.AudioPacket{Header: protocol.AudioPacketHeader{Seq: seq}}
}

func TestQueueStartDelayCountdown(t *testing.T) {
	// pts==dts means zero skew; startDelayFor yields 1, so the first Pop
	// should be absent and the second should yield the packet.
	q := NewQueue(8)
	q.Insert(pkt(0))

	_, ok := q.Pop()
	require.False(t, ok)
	require.True(t, q.Live())

	got, ok := q.Pop()
	require.True(t, ok)
	require.True(t, q.Live())
	require.Equal(t, uint64(0), got.Header.Seq)
}

func TestQueueDropsPastSeq(t *testing.T) {
	q := NewQueue(8)
	q.Insert(pkt(0))
	q.Pop() // consume the start-delay tick
	_, ok := q.Pop()
	require.True(t, ok) // advances headSeq to 1

	q.Insert(pkt(0)) // < headSeq(1), dropped
	require.Equal(t, 0, q.Len())
}

func TestQueueDuplicateKeepsFirst(t *testing.T) {
	q := NewQueue(8)
	first := protocol.AudioPacket{Header: protocol.AudioPacketHeader{Seq: 0, PTS: 111}}
	second := protocol.AudioPacket{Header: protocol.AudioPacketHeader{Seq: 0, PTS: 222}}
	q.Insert(first)
	q.Insert(second)
	q.Pop() // start-delay tick

	got, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(111), got.Header.PTS)
}

func TestQueueResetsOnFarFuture(t *testing.T) {
	q := NewQueue(4)
	q.Insert(pkt(0))
	q.Pop() // start-delay tick, headSeq now 0 still (not yet advanced until live)

	// jump far ahead, beyond capacity from the current head
	q.Insert(pkt(100))
	require.Equal(t, uint64(100), q.HeadSeq())
	require.Equal(t, 1, q.Len())
}

func TestQueuePopBeforeElapsedIsAbsent(t *testing.T) {
	// a large pts-dts skew arms a multi-packet countdown.
	q := NewQueue(16)
	q.Insert(protocol.AudioPacket{Header: protocol.AudioPacketHeader{
		Seq: 0, PTS: 20000, DTS: 0, // 20ms skew
	}})

	absentCount := 0
	for i := 0; i < 10; i++ {
		if _, ok := q.Pop(); !ok {
			absentCount++
		} else {
			break
		}
	}
	require.Greater(t, absentCount, 1)
}

func TestQueueInsertExtendsEmptySlots(t *testing.T) {
	q := NewQueue(8)
	q.Insert(pkt(0))
	q.Insert(pkt(2)) // leaves slot 1 empty
	q.Pop()          // start-delay tick

	got, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(0), got.Header.Seq)

	_, ok = q.Pop() // slot 1 never filled
	require.False(t, ok)

	got, ok = q.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(2), got.Header.Seq)
}
