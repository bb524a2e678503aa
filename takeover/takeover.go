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

// Package takeover implements the receiver's stream-selection policy: a
// simplified, single-criterion relative of the best-master-clock
// comparator the source protocol this was grounded on uses to choose
// among announcing clocks. bark has no domain/clock-class hierarchy to
// compare, only (priority, session id), so the comparison collapses to
// a lexicographic pair compare.
package takeover

import "time"

// SilenceTimeout is how long an active stream may go without producing
// an AUDIO packet before it is considered dead and replaceable by any
// contender, regardless of priority.
const SilenceTimeout = 100 * time.Millisecond

// Candidate identifies a stream for takeover comparison.
type Candidate struct {
	Priority int8
	SID      int64
}

// Greater reports whether a strictly outranks b: higher priority wins,
// session id (later start time) breaks ties.
func Greater(a, b Candidate) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.SID > b.SID
}

// Decision is the outcome of evaluating an incoming AUDIO packet's
// header against the receiver's current active stream.
type Decision int

const (
	// Drop means the incoming packet belongs to a stream that does not
	// outrank the active one; ignore it.
	Drop Decision = iota
	// Accept means there is no active stream; adopt the incoming one.
	Accept
	// Replace means the active stream is silent or outranked; tear it
	// down and adopt the incoming one.
	Replace
)

// Evaluate applies the three-step rule from the component design:
// accept if idle, replace if the active stream has gone silent, else
// replace only if the incoming candidate strictly outranks the active
// one.
func Evaluate(active *Candidate, lastSeen, now time.Time, incoming Candidate) Decision {
	if active == nil {
		return Accept
	}
	if now.Sub(lastSeen) >= SilenceTimeout {
		return Replace
	}
	if Greater(incoming, *active) {
		return Replace
	}
	return Drop
}
