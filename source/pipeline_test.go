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
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/sampleclock"
)

// fakeMux records every multicast/unicast send and never yields
// incoming datagrams, which is enough to exercise captureLoop/emit.
type fakeMux struct {
	mu        sync.Mutex
	multicast [][]byte
	unicast   [][]byte
	block     chan struct{}
}

func newFakeMux() *fakeMux {
	return &fakeMux{block: make(chan struct{})}
}

func (m *fakeMux) SendMulticast(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte{}, b...)
	m.multicast = append(m.multicast, cp)
	return nil
}

func (m *fakeMux) SendUnicast(b []byte, _ *net.UDPAddr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unicast = append(m.unicast, append([]byte{}, b...))
	return nil
}

func (m *fakeMux) RecvMulticast(buf []byte) (int, *net.UDPAddr, error) {
	<-m.block
	return 0, nil, context.Canceled
}

func (m *fakeMux) RecvUnicast(buf []byte) (int, *net.UDPAddr, error) {
	<-m.block
	return 0, nil, context.Canceled
}

// fakeCapture yields a fixed number of full-packet batches, each one
// sample-clock tick apart, then blocks until ctx is canceled.
type fakeCapture struct {
	batches int
	sent    int
}

func (f *fakeCapture) Capture(ctx context.Context) ([]float32, sampleclock.Timestamp, error) {
	if f.sent >= f.batches {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	n := protocol.FramesPerPacket * protocol.Channels
	frames := make([]float32, n)
	ts := sampleclock.Timestamp(f.sent) * sampleclock.PacketDuration
	f.sent++
	return frames, ts, nil
}

func TestPipelineEmitsOnePacketPerFullBatch(t *testing.T) {
	mux := newFakeMux()
	p, err := New(Config{
		Mux:     mux,
		Capture: &fakeCapture{batches: 3},
		Format:  protocol.FormatPCMF32LE,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			mux.mu.Lock()
			n := len(mux.multicast)
			mux.mu.Unlock()
			if n >= 3 {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	err = p.captureLoop(ctx)
	require.Error(t, err)

	mux.mu.Lock()
	defer mux.mu.Unlock()
	require.GreaterOrEqual(t, len(mux.multicast), 3)

	first, ok := protocol.Parse(mux.multicast[0])
	require.True(t, ok)
	ap, ok := first.(protocol.AudioPacket)
	require.True(t, ok)
	require.Equal(t, uint64(0), ap.Header.Seq)

	second, ok := protocol.Parse(mux.multicast[1])
	require.True(t, ok)
	ap2 := second.(protocol.AudioPacket)
	require.Equal(t, uint64(1), ap2.Header.Seq)
	require.Greater(t, ap2.Header.PTS, ap.Header.PTS)
}

func TestNewMintsDistinctSessionIDs(t *testing.T) {
	mux := newFakeMux()
	p1, err := New(Config{Mux: mux, Capture: &fakeCapture{}, Format: protocol.FormatPCMF32LE})
	require.NoError(t, err)
	p2, err := New(Config{Mux: mux, Capture: &fakeCapture{}, Format: protocol.FormatPCMF32LE})
	require.NoError(t, err)
	// session ids are microsecond timestamps; they may collide only if
	// minted within the same microsecond, vanishingly unlikely here.
	require.NotEqual(t, p1.SessionID(), p2.SessionID())
}
