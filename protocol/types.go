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

package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// SessionID is a signed 64-bit microsecond wall-clock stamp taken at
// source startup. It orders lexicographically across the network and
// doubles as the tiebreak in takeover decisions.
type SessionID int64

// NewSessionID mints a SessionID from the current wall clock.
func NewSessionID() SessionID {
	return SessionID(time.Now().UnixMicro())
}

func (s SessionID) String() string {
	return fmt.Sprintf("%d", int64(s))
}

// ReceiverID is an unsigned 64-bit random value identifying a receiver
// on the wire. Zero means broadcast/any.
type ReceiverID uint64

// BroadcastReceiver is the ReceiverID meaning "any/all receivers".
const BroadcastReceiver ReceiverID = 0

// NewReceiverID mints a random non-zero ReceiverID.
func NewReceiverID() (ReceiverID, error) {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("generating receiver id: %w", err)
		}
		id := ReceiverID(binary.LittleEndian.Uint64(b[:]))
		if id != BroadcastReceiver {
			return id, nil
		}
	}
}

// Priority is the per-node stream priority used in takeover comparisons.
type Priority int8

// AudioPacketHeader is the fixed 40-byte header carried by every AUDIO
// packet, immediately following the common Header.
type AudioPacketHeader struct {
	SID      SessionID
	Seq      uint64
	PTS      uint64 // TimestampMicros: presentation time on the source clock
	DTS      uint64 // TimestampMicros: source clock at transmission
	Format   Format
	Priority Priority
	// Padding: 6 bytes, reserved, always zero on the wire.
}

// AudioPacket is an AudioPacketHeader plus exactly one packet-length of
// encoded frames.
type AudioPacket struct {
	Header  AudioPacketHeader
	Payload []byte
}

// TimePhase identifies which of a TimePacket's three timestamps are
// populated, and therefore which of the three handshake phases it is.
type TimePhase int

// The three phases of the time handshake, distinguished solely by
// which of (T1,T2,T3) are nonzero.
const (
	TimePhaseInvalid TimePhase = iota
	TimePhaseBroadcast
	TimePhaseReceiverReply
	TimePhaseStreamReply
)

// TimePacketBodySize is the on-wire size of the non-padding portion of
// a TimePacket.
const TimePacketBodySize = 8 + 8 + 8 + 8 + 8

// TimePacket is one leg of the three-phase time-sync handshake. Its
// wire length is padded to equal an AUDIO packet's length for the
// active format, so both experience comparable queuing delay.
type TimePacket struct {
	SID SessionID
	RID ReceiverID
	T1  uint64 // TimestampMicros
	T2  uint64 // TimestampMicros
	T3  uint64 // TimestampMicros
}

// Phase classifies the packet per the t1/t2/t3 zero pattern in §3.
func (p TimePacket) Phase() TimePhase {
	switch {
	case p.T1 != 0 && p.T2 == 0 && p.T3 == 0:
		return TimePhaseBroadcast
	case p.T1 != 0 && p.T2 != 0 && p.T3 == 0:
		return TimePhaseReceiverReply
	case p.T1 != 0 && p.T2 != 0 && p.T3 != 0:
		return TimePhaseStreamReply
	default:
		return TimePhaseInvalid
	}
}

// StreamStatus is the receiver-side playback state surfaced to the
// stats protocol.
type StreamStatus uint8

// Stream statuses, as named in the component design.
const (
	StatusSeek StreamStatus = iota
	StatusSync
	StatusSlew
	StatusMiss
)

func (s StreamStatus) String() string {
	switch s {
	case StatusSeek:
		return "SEEK"
	case StatusSync:
		return "SYNC"
	case StatusSlew:
		return "SLEW"
	case StatusMiss:
		return "MISS"
	default:
		return "UNKNOWN"
	}
}

// Presence bits for ReceiverStats' optional fields.
const (
	receiverStatsHasAudioOffset uint8 = 1 << iota
	receiverStatsHasBufferLength
	receiverStatsHasNetworkLatency
	receiverStatsHasPredictOffset
)

// ReceiverStats carries a receiver's optional live measurements. Each
// optional field is guarded by a presence bit because a freshly-created
// stream may not have a value yet (e.g. before the first clock-delta
// sample). The three event counters are always present — zero is a
// meaningful count, not an absence — and accumulate for the lifetime of
// the stream.
type ReceiverStats struct {
	present         uint8
	AudioOffsetUs   int64
	BufferLength    uint64 // samples buffered in the jitter queue
	NetworkLatency  uint64 // microseconds, one-way estimate
	PredictOffsetUs int64
	Status          StreamStatus
	PacketsDropped  uint32 // jitter queue: past-sequence or duplicate packets discarded
	StreamResets    uint32 // jitter queue: resyncs forced by a far-future sequence gap
	Misses          uint32 // playback ticks with nothing due to present
}

// SetAudioOffset records the receiver's current audio-offset sample.
func (r *ReceiverStats) SetAudioOffset(us int64) {
	r.AudioOffsetUs = us
	r.present |= receiverStatsHasAudioOffset
}

// HasAudioOffset reports whether AudioOffsetUs is populated.
func (r ReceiverStats) HasAudioOffset() bool { return r.present&receiverStatsHasAudioOffset != 0 }

// SetBufferLength records the receiver's current jitter-queue depth.
func (r *ReceiverStats) SetBufferLength(samples uint64) {
	r.BufferLength = samples
	r.present |= receiverStatsHasBufferLength
}

// HasBufferLength reports whether BufferLength is populated.
func (r ReceiverStats) HasBufferLength() bool { return r.present&receiverStatsHasBufferLength != 0 }

// SetNetworkLatency records the receiver's current round-trip-derived latency.
func (r *ReceiverStats) SetNetworkLatency(us uint64) {
	r.NetworkLatency = us
	r.present |= receiverStatsHasNetworkLatency
}

// HasNetworkLatency reports whether NetworkLatency is populated.
func (r ReceiverStats) HasNetworkLatency() bool {
	return r.present&receiverStatsHasNetworkLatency != 0
}

// SetPredictOffset records the receiver's predicted clock offset.
func (r *ReceiverStats) SetPredictOffset(us int64) {
	r.PredictOffsetUs = us
	r.present |= receiverStatsHasPredictOffset
}

// HasPredictOffset reports whether PredictOffsetUs is populated.
func (r ReceiverStats) HasPredictOffset() bool { return r.present&receiverStatsHasPredictOffset != 0 }

// PresenceBits returns the raw presence bitmask, for marshaling.
func (r ReceiverStats) PresenceBits() uint8 { return r.present }

// SetPresenceBits restores the raw presence bitmask, for unmarshaling.
func (r *ReceiverStats) SetPresenceBits(b uint8) { r.present = b }

// NodeStatsFieldLen is the fixed, NUL-padded ASCII width of each
// NodeStats string field.
const NodeStatsFieldLen = 32

// NodeStats identifies the process answering a stats request.
type NodeStats struct {
	Username string
	Hostname string
}
