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

package cmd

import (
	"context"
	"math"

	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/sampleclock"
)

// toneSource is a stand-in CaptureSource: real device capture is out of
// scope for this repo (source.CaptureSource is published so a real
// backend can be plugged in), so the CLI instead streams a fixed test
// tone. It's enough to drive the wire protocol and time-sync end to
// end without any audio hardware.
type toneSource struct {
	phase float64
	clock sampleclock.Timestamp
}

const toneHz = 440.0

func (t *toneSource) Capture(ctx context.Context) ([]float32, sampleclock.Timestamp, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
	}
	frames := make([]float32, protocol.FramesPerPacket*protocol.Channels)
	step := 2 * math.Pi * toneHz / sampleclock.Rate
	for i := 0; i < protocol.FramesPerPacket; i++ {
		v := float32(0.2 * math.Sin(t.phase))
		frames[i*2] = v
		frames[i*2+1] = v
		t.phase += step
	}
	capturedAt := t.clock
	t.clock = t.clock.Add(sampleclock.Frames(protocol.FramesPerPacket))
	return frames, capturedAt, nil
}

// discardSink is a stand-in PlaybackSink: real device playback is out
// of scope (receiver.PlaybackSink is published for a real backend),
// so the CLI instead counts frames and reports a free-running
// presentation clock, enough to exercise decode/resample/rate-adjust
// without any audio hardware.
type discardSink struct {
	next sampleclock.Timestamp
}

func (d *discardSink) Write(ctx context.Context, frames []float32) (sampleclock.Timestamp, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}
	ts := d.next
	d.next = d.next.Add(sampleclock.Frames(len(frames) / protocol.Channels))
	return ts, nil
}

func (d *discardSink) Delay() sampleclock.SampleDuration { return 0 }

// identityResampler stands in for a real sample-rate converter: it
// copies frames 1:1 regardless of SetInputRate, which is exact for the
// common case of a source and receiver both running at sampleclock.Rate
// and merely shifts presentation time (rather than truly reclocking
// samples) when rateservo asks for a different rate. A production
// resampler is out of scope (receiver.Resampler is published for one to
// be plugged in).
type identityResampler struct{}

func (identityResampler) SetInputRate(float64) {}

func (identityResampler) Process(in, out []float32) (int, int) {
	n := copy(out, in)
	return n, n
}
