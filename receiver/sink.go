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

	"github.com/barksync/bark/sampleclock"
)

// PlaybackSink is the output device collaborator. It is out of scope
// for this repo (no device I/O is implemented here) but its shape is
// part of the public surface so a real backend can be plugged in.
type PlaybackSink interface {
	// Write blocks until frames have been accepted into the device's
	// playback buffer, returning the sample-clock time the first frame
	// of this write is expected to reach the speaker.
	Write(ctx context.Context, frames []float32) (expected sampleclock.Timestamp, err error)
	// Delay reports the sink's current output latency, for stats.
	Delay() sampleclock.SampleDuration
}

// Resampler adapts a stream of frames at one nominal rate onto the
// sink's fixed output rate, consuming a variable input rate set by the
// rate-adjust controller.
type Resampler interface {
	// SetInputRate changes the rate Process assumes the input frames
	// were captured at.
	SetInputRate(hz float64)
	// Process converts as much of in as fits into out, returning how
	// many input samples were consumed and how many output samples were
	// produced (counts of interleaved float32 values, not frames).
	Process(in, out []float32) (read, written int)
}
