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
	"time"

	"github.com/barksync/bark/sampleclock"
)

// wallClock maps wall-clock time to the sample-rate domain, anchored at
// the moment the pipeline started. It stands in for the monotonic clock
// reading the component design calls now() at DTS-freeze and TIME
// broadcast time.
type wallClock struct {
	start time.Time
}

func newWallClock() wallClock {
	return wallClock{start: time.Now()}
}

// Now returns the current time as a Timestamp in the sample-rate domain.
func (c wallClock) Now() sampleclock.Timestamp {
	elapsed := time.Since(c.start)
	return sampleclock.Timestamp(elapsed.Microseconds() * sampleclock.Rate / 1_000_000)
}
