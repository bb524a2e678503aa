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

package node

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// RuntimeStats is a snapshot of process/runtime health, exported to
// Prometheus by cmd/bark-exporter and logged at startup by the CLI.
type RuntimeStats struct {
	UptimeSeconds uint64
	Goroutines    uint64
	RSSBytes      uint64
	CPUPercent    float64
	HeapAlloc     uint64
	NumGC         uint64
}

// CollectRuntimeStats gathers process and Go-runtime health metrics for
// the current process (gopsutil for process-level stats, runtime for
// Go heap/goroutine stats), trimmed to what bark's exporter surfaces.
func CollectRuntimeStats() (RuntimeStats, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := RuntimeStats{
		UptimeSeconds: uint64(time.Since(procStartTime).Seconds()),
		Goroutines:    uint64(runtime.NumGoroutine()),
		HeapAlloc:     m.HeapAlloc,
		NumGC:         uint64(m.NumGC),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s, err
	}
	if cpu, err := proc.Percent(0); err == nil {
		s.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		s.RSSBytes = uint64(mem.RSS)
	}
	return s, nil
}
