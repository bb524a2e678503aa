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

// Package aggregator implements the fixed-size sliding-window median
// used to smooth round-trip and clock-delta observations. The window
// displaces observations FIFO once full; median is recomputed by
// sorting on every read rather than maintained incrementally, which is
// cheap enough at the window sizes this package is built for (tens of
// samples) and far simpler to get right.
package aggregator

import (
	"container/ring"
	"math"
	"sort"

	"github.com/eclesh/welford"
)

// DefaultSize is the window length used for bark's round-trip and
// clock-delta aggregators (§3: "a fixed window (≈64 samples)").
const DefaultSize = 64

// Window is a fixed-capacity ring of float64 observations.
type Window struct {
	size        int
	currentSize int
	samples     *ring.Ring
}

// New creates a Window with room for size observations. size<1 is
// treated as 1.
func New(size int) *Window {
	if size < 1 {
		size = 1
	}
	w := &Window{
		size:    size,
		samples: ring.New(size),
	}
	for i := 0; i < w.size; i++ {
		w.samples.Value = math.NaN()
		w.samples = w.samples.Next()
	}
	return w
}

// Add records a new observation, displacing the oldest once the window
// is full.
func (w *Window) Add(sample float64) {
	w.samples = w.samples.Next()
	v := w.samples.Value.(float64)
	if math.IsNaN(v) && w.currentSize < w.size {
		w.currentSize++
	}
	w.samples.Value = sample
}

// LastSample returns the most recently added observation, or NaN if
// none have been added yet.
func (w *Window) LastSample() float64 {
	return w.samples.Value.(float64)
}

// AllSamples returns every live observation currently in the window, in
// most-recent-first order.
func (w *Window) AllSamples() []float64 {
	s := make([]float64, 0, w.currentSize)
	r := w.samples
	for j := 0; j < w.size; j++ {
		v := r.Value.(float64)
		if !math.IsNaN(v) {
			s = append(s, v)
		}
		r = r.Prev()
	}
	return s
}

// Len reports how many live observations the window currently holds.
func (w *Window) Len() int { return w.currentSize }

// Full reports whether the window has accumulated a full complement of
// observations.
func (w *Window) Full() bool { return w.currentSize == w.size }

// Median returns the median of the live observations, or NaN if empty.
// An even live count averages its two middle observations rather than
// picking either one, so the estimate doesn't jump depending on which
// side of the pair a new sample displaces.
func (w *Window) Median() float64 {
	live := w.AllSamples()
	sort.Float64s(live)
	n := len(live)
	switch {
	case n == 0:
		return math.NaN()
	case n%2 == 1:
		return live[n/2]
	default:
		lo, hi := live[n/2-1], live[n/2]
		return (lo + hi) / 2
	}
}

// Mean returns the arithmetic mean of the live observations, computed
// with a single-pass Welford accumulator rather than a running sum,
// since Median already requires a full pass over AllSamples on every
// read.
func (w *Window) Mean() float64 {
	acc := welford.New()
	for _, v := range w.AllSamples() {
		acc.Add(v)
	}
	return acc.Mean()
}

// StdDev returns the standard deviation of the live observations.
func (w *Window) StdDev() float64 {
	acc := welford.New()
	for _, v := range w.AllSamples() {
		acc.Add(v)
	}
	return acc.Stddev()
}
