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

package source

import (
	"context"

	"github.com/barksync/bark/sampleclock"
)

// CaptureSource is the input device collaborator. It is out of scope
// for this repo (no device I/O is implemented here) but its shape is
// part of the public surface so a real backend can be plugged in.
type CaptureSource interface {
	// Capture blocks until a batch of interleaved stereo frames is
	// available, returning them along with the sample-clock reading at
	// the moment the first frame of the batch was captured.
	Capture(ctx context.Context) (frames []float32, capturedAt sampleclock.Timestamp, err error)
}
