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

// Package rateservo implements the receiver's rate-adjust controller: a
// threshold-based SYNC/SLEW state machine that perturbs the resampler's
// input rate to pull presentation time back into alignment, rather than
// a continuously-acting PI loop.
package rateservo

import (
	"math"

	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/sampleclock"
)

const (
	startSlewThresholdUs = 2000
	stopSlewThresholdUs  = 100
	slewTargetDurationUs = 500_000

	minRateFactor = 0.98
	maxRateFactor = 2.0
)

// Controller holds the slew state and nominal sample rate for one
// active stream's playback loop.
type Controller struct {
	base   float64
	slew   bool
	locked bool
}

// New creates a Controller whose nominal (un-slewed) rate is base.
func New(base float64) *Controller {
	return &Controller{base: base}
}

// Reset returns the controller to its pre-lock state, as when a stream
// is torn down and replaced.
func (c *Controller) Reset() {
	c.slew = false
	c.locked = false
}

// Sample feeds one (real, play) timing observation and returns the
// sample rate the resampler should use next, along with the status that
// observation implies.
//
//   - real is the timestamp the sink expects to play next.
//   - play is the adjusted presentation timestamp for that same point.
func (c *Controller) Sample(real, play sampleclock.Timestamp) (float64, protocol.StreamStatus) {
	c.locked = true

	offsetFrames := int64(real.Sub(play))
	offsetUs := math.Abs(float64(offsetFrames) * 1_000_000 / sampleclock.Rate)

	switch {
	case offsetUs < stopSlewThresholdUs:
		c.slew = false
		return c.base, protocol.StatusSync
	case offsetUs < startSlewThresholdUs && !c.slew:
		return c.base, protocol.StatusSync
	default:
		rateOffset := float64(offsetFrames) * 1_000_000 / slewTargetDurationUs
		rate := c.base + rateOffset
		rate = clamp(rate, minRateFactor*c.base, maxRateFactor*c.base)
		c.slew = true
		return rate, protocol.StatusSlew
	}
}

// Miss reports the status for a playback tick that had no packet to
// present (a jitter queue pop that came up empty).
func (c *Controller) Miss() protocol.StreamStatus {
	return protocol.StatusMiss
}

// Status reports the controller's current status without taking a new
// sample — SEEK before the first Sample call, SYNC or SLEW after.
func (c *Controller) Status() protocol.StreamStatus {
	if !c.locked {
		return protocol.StatusSeek
	}
	if c.slew {
		return protocol.StatusSlew
	}
	return protocol.StatusSync
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
