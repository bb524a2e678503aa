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

package takeover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGreaterByPriority(t *testing.T) {
	require.True(t, Greater(Candidate{Priority: 5, SID: 1}, Candidate{Priority: 1, SID: 99}))
	require.False(t, Greater(Candidate{Priority: 1, SID: 99}, Candidate{Priority: 5, SID: 1}))
}

func TestGreaterTiebreaksOnSID(t *testing.T) {
	require.True(t, Greater(Candidate{Priority: 3, SID: 200}, Candidate{Priority: 3, SID: 100}))
	require.False(t, Greater(Candidate{Priority: 3, SID: 100}, Candidate{Priority: 3, SID: 100}))
}

func TestEvaluateAcceptsWhenIdle(t *testing.T) {
	d := Evaluate(nil, time.Time{}, time.Now(), Candidate{Priority: 0, SID: 1})
	require.Equal(t, Accept, d)
}

func TestEvaluateReplacesOnSilence(t *testing.T) {
	active := Candidate{Priority: 10, SID: 1}
	now := time.Now()
	lastSeen := now.Add(-SilenceTimeout)
	d := Evaluate(&active, lastSeen, now, Candidate{Priority: 0, SID: 2})
	require.Equal(t, Replace, d)
}

func TestEvaluateDropsLowerPriorityWhileLive(t *testing.T) {
	active := Candidate{Priority: 10, SID: 1}
	now := time.Now()
	d := Evaluate(&active, now, now, Candidate{Priority: 5, SID: 999})
	require.Equal(t, Drop, d)
}

func TestEvaluateReplacesOnStrictlyGreater(t *testing.T) {
	active := Candidate{Priority: 1, SID: 1}
	now := time.Now()
	d := Evaluate(&active, now, now, Candidate{Priority: 1, SID: 2})
	require.Equal(t, Replace, d)
}

func TestEvaluateDropsOnEqual(t *testing.T) {
	active := Candidate{Priority: 1, SID: 1}
	now := time.Now()
	d := Evaluate(&active, now, now, Candidate{Priority: 1, SID: 1})
	require.Equal(t, Drop, d)
}
