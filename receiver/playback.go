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
	"context"

	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/sampleclock"
)

// packetDurationMicros paces the decode ticker at one packet per tick,
// mirroring sampleclock's fixed packet duration.
const packetDurationMicros = sampleclock.PacketDurationMicros

// tick runs one playback cycle for the stream: pop the next due
// packet (or silence if none is due, or the clock estimator has no
// sample yet), resample it to the sink's rate, write it, and feed the
// resulting timing observation back into the rate-adjust controller.
func (s *stream) tick(ctx context.Context, sink PlaybackSink) error {
	pkt, haveQueued := s.pop()

	delta, deltaReady := s.medianClockDelta()

	var frames []float32
	var play sampleclock.Timestamp
	haveTiming := haveQueued && deltaReady

	if haveQueued && deltaReady {
		decoded := make([]float32, silenceFrames)
		n, err := s.dec.Decode(pkt.Payload, decoded)
		if err != nil {
			frames = make([]float32, silenceFrames)
		} else {
			frames = decoded[:n]
		}
		play = adjustedPTS(pkt.Header.PTS, delta)
	} else {
		// Either nothing was due (a miss) or we cannot yet place the
		// packet on the local clock; play silence rather than audio at
		// the wrong time.
		frames = make([]float32, silenceFrames)
	}

	in := frames
	out := make([]float32, len(frames))
	for len(in) > 0 {
		read, written := s.resampler.Process(in, out)
		if written > 0 {
			expected, err := sink.Write(ctx, out[:written])
			if err != nil {
				return err
			}
			switch {
			case haveTiming:
				rate, status := s.rate.Sample(expected, play)
				s.resampler.SetInputRate(rate)
				s.setStatus(status)
				play = play.Add(sampleclock.Frames(read / protocol.Channels))
			case !deltaReady:
				// The clock estimator has no sample yet: not locked, so
				// SEEK rather than MISS.
				s.setStatus(s.rate.Status())
			default:
				// Locked, but nothing was due this tick: a genuine miss.
				s.setStatus(s.rate.Miss())
				s.recordMiss()
			}
		}
		if read <= 0 {
			break
		}
		in = in[read:]
	}
	return nil
}

// snapshotStats renders the stream's current measurements as the wire
// ReceiverStats a STATS-REQ reply carries.
func (s *stream) snapshotStats() protocol.ReceiverStats {
	var rs protocol.ReceiverStats
	rs.SetBufferLength(s.queueDepth())
	rs.Status = s.status()
	if delta, ok := s.medianClockDelta(); ok {
		rs.SetPredictOffset(delta)
	}
	if latency := s.networkLatencyUs(); latency > 0 {
		rs.SetNetworkLatency(latency)
	}
	rs.PacketsDropped, rs.StreamResets, rs.Misses = s.counters()
	return rs
}
