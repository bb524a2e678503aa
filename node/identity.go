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

// Package node provides the identity and runtime-health information a
// bark source or receiver reports of itself, both on the wire (via
// protocol.NodeStats) and over the Prometheus exporter.
package node

import (
	"os"
	"os/user"

	"github.com/barksync/bark/protocol"
)

// Identity names the process answering a stats request.
type Identity struct {
	Username string
	Hostname string
}

// CurrentIdentity reads the running process's username and hostname,
// truncated to fit protocol.NodeStatsFieldLen if necessary.
func CurrentIdentity() Identity {
	username := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	hostname := "unknown"
	if h, err := os.Hostname(); err == nil && h != "" {
		hostname = h
	}
	return Identity{
		Username: truncate(username, protocol.NodeStatsFieldLen),
		Hostname: truncate(hostname, protocol.NodeStatsFieldLen),
	}
}

// NodeStats converts the identity to its wire representation.
func (i Identity) NodeStats() protocol.NodeStats {
	return protocol.NodeStats{Username: i.Username, Hostname: i.Hostname}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
