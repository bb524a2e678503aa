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

// Package jitter implements the receiver's jitter queue: a bounded,
// sequence-indexed ring of AUDIO packets that absorbs network reordering
// ahead of the decode/playback loop.
package jitter

import (
	log "github.com/sirupsen/logrus"

	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/sampleclock"
)

// maxStartDelay bounds the initial countdown derived from a stream's
// first packet; a pathological pts-dts skew should never stall playback
// for more than a handful of packets.
const maxStartDelay = 50

type slot struct {
	present bool
	packet  protocol.AudioPacket
}

// Queue is a fixed-capacity ring indexed by packet sequence number.
// Single-writer (RX), single-reader (decode); callers serialize access
// externally, the same mutex-guarded-state pattern used throughout
// this repo's other shared-state types.
type Queue struct {
	cap     uint64
	headSeq uint64
	slots   []slot // ring: slots[(headSeq+i)%cap] holds seq headSeq+i

	startDelaySet  bool
	remainingDelay int

	drops  uint32
	resets uint32
}

// NewQueue creates an empty queue with room for cap outstanding packets.
func NewQueue(cap int) *Queue {
	if cap < 1 {
		cap = 1
	}
	return &Queue{
		cap:   uint64(cap),
		slots: make([]slot, cap),
	}
}

// Reset clears the queue and disarms the start-delay countdown, as if
// newly created at seq. Insert is the only caller, on a far-future
// sequence gap, so every call here counts as one forced resync.
func (q *Queue) Reset(seq uint64) {
	q.headSeq = seq
	for i := range q.slots {
		q.slots[i] = slot{}
	}
	q.startDelaySet = false
	q.remainingDelay = 0
	q.resets++
}

// Len reports how many packets are currently buffered.
func (q *Queue) Len() int {
	n := 0
	for _, s := range q.slots {
		if s.present {
			n++
		}
	}
	return n
}

func startDelayFor(p protocol.AudioPacket) int {
	var delta int64
	if p.Header.PTS > p.Header.DTS {
		delta = int64(p.Header.PTS - p.Header.DTS)
	}
	dur := int64(sampleclock.PacketDurationMicros)
	n := delta/dur + 1
	if delta%dur != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	if n > maxStartDelay {
		n = maxStartDelay
	}
	return int(n)
}

func (q *Queue) arm(p protocol.AudioPacket) {
	q.remainingDelay = startDelayFor(p)
	q.startDelaySet = true
}

// Insert admits p into the queue per the component design: past packets
// are dropped, far-future packets trigger a reset, in-range packets
// fill their slot (first-received wins on duplicates).
func (q *Queue) Insert(p protocol.AudioPacket) {
	if !q.startDelaySet {
		q.arm(p)
	}

	seq := p.Header.Seq
	if seq < q.headSeq {
		q.drops++
		return // past, drop
	}
	offset := seq - q.headSeq
	if offset >= q.cap {
		log.Warnf("jitter: seq %d is %d ahead of head %d (capacity %d), resetting queue", seq, offset, q.headSeq, q.cap)
		q.Reset(seq)
		q.arm(p)
		offset = 0
	}
	idx := (q.headSeq + offset) % q.cap
	if q.slots[idx].present {
		q.drops++
		return // duplicate, keep first received
	}
	q.slots[idx] = slot{present: true, packet: p}
}

// Drops reports how many packets Insert has discarded (past-sequence
// or duplicate) over the queue's lifetime.
func (q *Queue) Drops() uint32 { return q.drops }

// Resets reports how many times a far-future sequence gap has forced
// Insert to resync the queue over its lifetime.
func (q *Queue) Resets() uint32 { return q.resets }

// Pop removes and returns the packet at the current head, once the
// start-delay countdown has elapsed. While the countdown is still
// running, Pop decrements it and returns false without advancing the
// head — the caller should treat this identically to an empty slot.
func (q *Queue) Pop() (protocol.AudioPacket, bool) {
	if !q.startDelaySet || q.remainingDelay > 0 {
		if q.remainingDelay > 0 {
			q.remainingDelay--
		}
		return protocol.AudioPacket{}, false
	}

	idx := q.headSeq % q.cap
	s := q.slots[idx]
	q.slots[idx] = slot{}
	q.headSeq++

	if !s.present {
		return protocol.AudioPacket{}, false
	}
	return s.packet, true
}

// Live reports whether the start-delay countdown has fully elapsed.
func (q *Queue) Live() bool {
	return q.startDelaySet && q.remainingDelay == 0
}

// HeadSeq returns the sequence number the queue currently expects next.
func (q *Queue) HeadSeq() uint64 { return q.headSeq }
