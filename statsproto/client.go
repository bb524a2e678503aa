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

// Package statsproto implements the client side of the stats protocol:
// broadcast a STATS-REQ every 100ms, aggregate STATS-REPLYs keyed by
// peer address, and expire entries that have gone quiet. The
// source/receiver RX handlers answer STATS-REQ directly against
// protocol.StatsReplyPacket; this package is the requester half.
package statsproto

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/barksync/bark/protocol"
)

// BroadcastInterval is how often the client re-sends STATS-REQ.
const BroadcastInterval = 100 * time.Millisecond

// PeerTTL is how long a peer's last reply is kept before it is
// considered gone and dropped from the aggregate.
const PeerTTL = 1 * time.Second

// Mux is the subset of *netmux.Mux the client needs.
type Mux interface {
	SendMulticast(b []byte) error
	RecvUnicast(buf []byte) (int, *net.UDPAddr, error)
}

// Peer is one aggregated STATS-REPLY, timestamped by arrival.
type Peer struct {
	Addr     string
	Reply    protocol.StatsReplyPacket
	LastSeen time.Time
}

// Client broadcasts STATS-REQ and aggregates replies keyed by the
// sender's address, a single map protected by one mutex.
type Client struct {
	mux Mux

	mu    sync.Mutex
	peers map[string]Peer
}

// NewClient creates a Client bound to mux.
func NewClient(mux Mux) *Client {
	return &Client{mux: mux, peers: map[string]Peer{}}
}

// Run drives the broadcast loop and the reply reader until ctx is
// canceled.
func (c *Client) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return c.broadcastLoop(ctx) })
	eg.Go(func() error { return c.readLoop(ctx) })
	return eg.Wait()
}

func (c *Client) broadcastLoop(ctx context.Context) error {
	ticker := time.NewTicker(BroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.broadcast(); err != nil {
				log.Warnf("statsproto: broadcast failed: %v", err)
			}
		}
	}
}

func (c *Client) broadcast() error {
	buf := protocol.NewPacketBuffer(protocol.FormatPCMF32LE)
	if err := protocol.MarshalStatsReq(buf); err != nil {
		return err
	}
	return c.mux.SendMulticast(buf.Bytes())
}

func (c *Client) readLoop(ctx context.Context) error {
	recvBuf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, addr, err := c.mux.RecvUnicast(recvBuf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		parsed, ok := protocol.Parse(recvBuf[:n])
		if !ok {
			continue
		}
		reply, ok := parsed.(protocol.StatsReplyPacket)
		if !ok {
			continue
		}
		c.record(addr, reply)
	}
}

func (c *Client) record(addr *net.UDPAddr, reply protocol.StatsReplyPacket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := addr.String()
	c.peers[key] = Peer{Addr: key, Reply: reply, LastSeen: time.Now()}
}

// Snapshot returns the currently-live peers (LastSeen within PeerTTL),
// sorted by address for stable rendering.
func (c *Client) Snapshot() []Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	out := make([]Peer, 0, len(c.peers))
	for key, p := range c.peers {
		if now.Sub(p.LastSeen) >= PeerTTL {
			delete(c.peers, key)
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}
