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

package sampleclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimestampAddSub(t *testing.T) {
	a := Timestamp(1000)
	b := a.Add(PacketDuration)
	require.Equal(t, Timestamp(1160), b)
	require.Equal(t, TimestampDelta(160), b.Sub(a))
	require.Equal(t, TimestampDelta(-160), a.Sub(b))
}

func TestTimestampAddDeltaNegative(t *testing.T) {
	a := Timestamp(1000)
	got := a.AddDelta(TimestampDelta(-500))
	require.Equal(t, Timestamp(500), got)
}

func TestMicrosRoundTripIsLossy(t *testing.T) {
	ts := Timestamp(48000) // exactly one second
	us := ts.ToMicros()
	require.Equal(t, uint64(1_000_000), us)
	require.Equal(t, ts, TimestampFromMicros(us))

	// a value not evenly divisible loses precision on the round trip.
	odd := Timestamp(1)
	oddUs := odd.ToMicros()
	require.Equal(t, Timestamp(0), TimestampFromMicros(oddUs))
}

func TestSampleDurationSub(t *testing.T) {
	d, err := SampleDuration(100).Sub(SampleDuration(40))
	require.NoError(t, err)
	require.Equal(t, SampleDuration(60), d)

	_, err = SampleDuration(40).Sub(SampleDuration(100))
	require.Error(t, err)
}

func TestMicrosDelta(t *testing.T) {
	require.Equal(t, ClockDelta(7000), MicrosDelta(107000, 100000))
	require.Equal(t, ClockDelta(-7000), MicrosDelta(100000, 107000))
}
