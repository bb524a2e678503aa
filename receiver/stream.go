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

package receiver

import (
	"sync"
	"time"

	"github.com/barksync/bark/aggregator"
	"github.com/barksync/bark/codec"
	"github.com/barksync/bark/jitter"
	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/rateservo"
	"github.com/barksync/bark/sampleclock"
)

// queueCapacity bounds how far a stream's jitter queue can reorder
// before a gap forces a reset; same window size the aggregators use.
const queueCapacity = aggregator.DefaultSize

// stream is everything the receiver tracks for one active source: its
// identity for takeover comparisons, the jitter queue and decoder
// feeding its playback loop, and the clock estimator/rate controller
// that keep it in sync. Insert/Pop and the lastSeen/estimator fields
// are all guarded by mu since RX (writer) and the decode loop (reader)
// run on separate goroutines, per the queue's single-writer/single-
// reader contract.
type stream struct {
	sid      protocol.SessionID
	priority protocol.Priority
	format   protocol.Format

	dec         codec.Decoder
	resampler   Resampler
	rate        *rateservo.Controller
	rttWindow   *aggregator.Window
	deltaWindow *aggregator.Window

	mu         sync.Mutex
	queue      *jitter.Queue
	lastSeen   time.Time
	lastStatus protocol.StreamStatus
	misses     uint32
}

func newStream(hdr protocol.AudioPacketHeader, dec codec.Decoder, resampler Resampler, now time.Time) *stream {
	return &stream{
		sid:         hdr.SID,
		priority:    hdr.Priority,
		format:      hdr.Format,
		dec:         dec,
		resampler:   resampler,
		rate:        rateservo.New(sampleclock.Rate),
		rttWindow:   aggregator.New(aggregator.DefaultSize),
		deltaWindow: aggregator.New(aggregator.DefaultSize),
		queue:       jitter.NewQueue(queueCapacity),
		lastSeen:    now,
	}
}

// insert admits an AUDIO packet belonging to this stream into its
// jitter queue and refreshes the silence-timeout clock.
func (s *stream) insert(pkt protocol.AudioPacket, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Insert(pkt)
	s.lastSeen = now
}

// pop pulls the next packet for the playback loop, if one is due.
func (s *stream) pop() (protocol.AudioPacket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Pop()
}

func (s *stream) queueDepth() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.queue.Len())
}

// LastSeen reports when this stream last had a packet inserted.
func (s *stream) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// recordTimeSample folds one StreamReply observation into the rtt and
// clock-delta windows.
func (s *stream) recordTimeSample(rttUs uint64, clockDeltaUs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rttWindow.Add(float64(rttUs))
	s.deltaWindow.Add(float64(clockDeltaUs))
}

// medianClockDelta reports the current clock-delta estimate; ok is
// false until at least one StreamReply sample has been recorded.
func (s *stream) medianClockDelta() (us int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deltaWindow.Len() == 0 {
		return 0, false
	}
	return int64(s.deltaWindow.Median()), true
}

// setStatus records the most recent status a playback tick produced,
// so a STATS-REQ arriving between ticks still reports it (in
// particular MISS, which the rate controller itself does not persist).
func (s *stream) setStatus(status protocol.StreamStatus) {
	s.mu.Lock()
	s.lastStatus = status
	s.mu.Unlock()
}

// status reports the last status a playback tick produced.
func (s *stream) status() protocol.StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

// recordMiss counts one playback tick that had nothing due to present.
func (s *stream) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}

// counters reports the stream's lifetime event counts: packets the
// jitter queue has discarded, resyncs it has been forced into, and
// playback ticks that came up empty.
func (s *stream) counters() (drops, resets, misses uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Drops(), s.queue.Resets(), s.misses
}

// networkLatencyUs reports half the median observed round trip.
func (s *stream) networkLatencyUs() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rttWindow.Len() == 0 {
		return 0
	}
	return uint64(s.rttWindow.Median() / 2)
}

// adjustedPTS maps a remote PTS (wire microseconds) onto the local
// sample-clock domain by folding in the current clock-delta estimate.
func adjustedPTS(remotePTSUs uint64, clockDeltaUs int64) sampleclock.Timestamp {
	adjustedUs := int64(remotePTSUs) + clockDeltaUs
	if adjustedUs < 0 {
		adjustedUs = 0
	}
	return sampleclock.TimestampFromMicros(uint64(adjustedUs))
}
