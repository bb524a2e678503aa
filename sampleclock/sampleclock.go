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

// Package sampleclock defines the sample-rate time arithmetic used
// throughout bark: timestamps and durations are native sample counts at
// a fixed rate, lossless within that domain. Conversion to and from
// microseconds (the units the wire format uses) is always explicit and
// always lossy.
package sampleclock

import "fmt"

// Rate is the fixed sample rate all arithmetic in this package assumes.
const Rate = 48000

// Timestamp is an unsigned count of samples since an arbitrary epoch.
// It is totally ordered.
type Timestamp uint64

// SampleDuration is an unsigned count of samples.
type SampleDuration uint64

// TimestampDelta is a signed count of samples, used for the difference
// between two Timestamps which may be negative.
type TimestampDelta int64

// ClockDelta is a signed microsecond quantity, used for the offset
// between two independent wall clocks.
type ClockDelta int64

// Add returns t shifted forward by d.
func (t Timestamp) Add(d SampleDuration) Timestamp {
	return t + Timestamp(d)
}

// Sub returns the signed distance from o to t (t - o).
func (t Timestamp) Sub(o Timestamp) TimestampDelta {
	return TimestampDelta(int64(t) - int64(o))
}

// AddDelta returns t shifted by a signed delta, which may move it backward.
func (t Timestamp) AddDelta(d TimestampDelta) Timestamp {
	return Timestamp(int64(t) + int64(d))
}

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool { return t < o }

// ToMicros converts a Timestamp to a wire TimestampMicros value. Lossy:
// truncates fractional microseconds when Rate does not evenly divide
// 1e6 times the sample count.
func (t Timestamp) ToMicros() uint64 {
	return uint64(t) * 1_000_000 / Rate
}

// TimestampFromMicros converts a wire TimestampMicros value back to a
// Timestamp. Lossy: does not recover sub-sample precision lost when the
// microsecond value was produced from a different sample count.
func TimestampFromMicros(us uint64) Timestamp {
	return Timestamp(us * Rate / 1_000_000)
}

// MicrosDelta returns the signed microsecond difference a-b.
func MicrosDelta(a, b uint64) ClockDelta {
	return ClockDelta(int64(a) - int64(b))
}

// Add returns a duration increased by another; closed under addition.
func (d SampleDuration) Add(o SampleDuration) SampleDuration { return d + o }

// Sub returns d-o, or a descriptive error (and a zero duration) when o
// exceeds d; it never panics.
// bark itself never subtracts durations where the operand could exceed
// the minuend, per the data model's closure rule.
func (d SampleDuration) Sub(o SampleDuration) (SampleDuration, error) {
	if o > d {
		return 0, fmt.Errorf("sampleclock: cannot subtract duration %d from smaller duration %d", o, d)
	}
	return d - o, nil
}

// PacketDuration is the SampleDuration spanned by one audio packet's
// worth of frames (FramesPerPacket in the protocol package, but this
// package has no dependency on protocol so the constant is mirrored
// here to keep sampleclock standalone).
const PacketDuration SampleDuration = 160

// Frames converts a raw frame count to a SampleDuration (frames and
// samples-per-channel coincide for interleaved stereo).
func Frames(n int) SampleDuration {
	return SampleDuration(n)
}

// PacketDurationMicros is PacketDuration expressed in wire microseconds,
// truncated like any other ToMicros conversion.
const PacketDurationMicros = uint64(PacketDuration) * 1_000_000 / Rate
