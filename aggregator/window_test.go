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

package aggregator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowEmpty(t *testing.T) {
	w := New(5)
	require.Equal(t, 0, w.Len())
	require.False(t, w.Full())
	require.True(t, math.IsNaN(w.Median()))
}

func TestWindowOne(t *testing.T) {
	w := New(5)
	w.Add(10)
	require.Equal(t, 1, w.Len())
	require.False(t, w.Full())
	require.Equal(t, 10.0, w.LastSample())
	require.Equal(t, 10.0, w.Median())
	require.Equal(t, 10.0, w.Mean())
}

func TestWindowMultiple(t *testing.T) {
	w := New(5)
	for _, v := range []float64{1, 2, 3, 4} {
		w.Add(v)
	}
	require.Equal(t, 4, w.Len())
	require.False(t, w.Full())
	require.Equal(t, 4.0, w.LastSample())
	require.Equal(t, 2.5, w.Median())
	require.Equal(t, 2.5, w.Mean())
}

func TestWindowFull(t *testing.T) {
	w := New(5)
	for _, v := range []float64{1, 2, 3, 4, 5, 6, 7} {
		w.Add(v)
	}
	require.True(t, w.Full())
	require.Equal(t, 5, w.Len())
	require.Equal(t, 7.0, w.LastSample())

	// window now holds 3,4,5,6,7 after evicting 1 and 2.
	require.Equal(t, 5.0, w.Median())
	require.Equal(t, 5.0, w.Mean())
}

func TestWindowMinSizeClamped(t *testing.T) {
	w := New(0)
	w.Add(1)
	w.Add(2)
	require.True(t, w.Full())
	require.Equal(t, 1, w.Len())
	require.Equal(t, 2.0, w.LastSample())
}
