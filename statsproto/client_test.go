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

package statsproto

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barksync/bark/protocol"
)

type fakeMux struct {
	mu        sync.Mutex
	multicast int
	block     chan struct{}
}

func newFakeMux() *fakeMux { return &fakeMux{block: make(chan struct{})} }

func (m *fakeMux) SendMulticast(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.multicast++
	return nil
}

func (m *fakeMux) RecvUnicast(buf []byte) (int, *net.UDPAddr, error) {
	<-m.block
	return 0, nil, nil
}

func (m *fakeMux) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.multicast
}

func TestBroadcastSendsStatsReq(t *testing.T) {
	mux := newFakeMux()
	c := NewClient(mux)
	require.NoError(t, c.broadcast())
	require.Equal(t, 1, mux.sendCount())
}

func TestRecordAndSnapshot(t *testing.T) {
	c := NewClient(newFakeMux())
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9100}
	reply := protocol.StatsReplyPacket{SID: 42, IsReceiver: true}

	c.record(addr, reply)

	peers := c.Snapshot()
	require.Len(t, peers, 1)
	require.Equal(t, addr.String(), peers[0].Addr)
	require.Equal(t, protocol.SessionID(42), peers[0].Reply.SID)
}

func TestSnapshotEvictsExpiredPeers(t *testing.T) {
	c := NewClient(newFakeMux())
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 9100}
	c.mu.Lock()
	c.peers[addr.String()] = Peer{Addr: addr.String(), LastSeen: time.Now().Add(-2 * PeerTTL)}
	c.mu.Unlock()

	peers := c.Snapshot()
	require.Empty(t, peers)

	c.mu.Lock()
	_, stillThere := c.peers[addr.String()]
	c.mu.Unlock()
	require.False(t, stillThere)
}

func TestSnapshotKeepsFreshPeers(t *testing.T) {
	c := NewClient(newFakeMux())
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 3), Port: 9100}
	c.record(addr, protocol.StatsReplyPacket{})

	peers := c.Snapshot()
	require.Len(t, peers, 1)
}
