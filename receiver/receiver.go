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

// Package receiver implements the takeover-aware AUDIO ingestion,
// jitter buffering, clock estimation and rate-adjusted playback loop
// that turns one active source's packet stream into sound. Only one
// stream plays at a time; a higher-priority or fresher contender
// displaces whatever is currently active via the sink slot's
// drop-propagation: the old goroutine's next read sees it has been
// superseded and exits, rather than being torn down explicitly.
package receiver

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/barksync/bark/codec"
	"github.com/barksync/bark/node"
	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/takeover"
	"github.com/barksync/bark/timesync"
)

// silenceFrames is how many interleaved samples (one packet's frames
// across all channels) a playback tick writes when the queue has
// nothing due, or the clock estimator has no sample yet.
const silenceFrames = protocol.FramesPerPacket * protocol.Channels

// Mux is the subset of *netmux.Mux the receiver needs, narrowed to an
// interface so RX/TX can be exercised with a fake in tests.
type Mux interface {
	SendUnicast(b []byte, addr *net.UDPAddr) error
	RecvMulticast(buf []byte) (int, *net.UDPAddr, error)
	RecvUnicast(buf []byte) (int, *net.UDPAddr, error)
}

// Config configures one Receiver instance.
type Config struct {
	Mux          Mux
	Sink         PlaybackSink
	NewResampler func() Resampler
}

// streamHandle wraps a stream with identity distinct from any other
// handle, so a superseded decode goroutine can tell its stream is no
// longer the one installed in the sink slot.
type streamHandle struct {
	stream *stream
}

// sinkSlot holds the single active stream handle. Replacing it is the
// entire cancellation mechanism for the outgoing decode goroutine: it
// notices on its next tick that slot.current() no longer returns its
// own handle and exits.
type sinkSlot struct {
	mu  sync.Mutex
	cur *streamHandle
}

func (s *sinkSlot) current() *streamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *sinkSlot) set(h *streamHandle) {
	s.mu.Lock()
	s.cur = h
	s.mu.Unlock()
}

// Receiver owns the active stream slot and answers RX traffic: AUDIO
// (takeover + queue insert), TIME (broadcast/stream-reply handling),
// and STATS-REQ.
type Receiver struct {
	cfg      Config
	rid      protocol.ReceiverID
	identity node.Identity
	slot     sinkSlot
}

// New creates a Receiver with a freshly-minted receiver id.
func New(cfg Config) (*Receiver, error) {
	rid, err := protocol.NewReceiverID()
	if err != nil {
		return nil, err
	}
	return &Receiver{
		cfg:      cfg,
		rid:      rid,
		identity: node.CurrentIdentity(),
	}, nil
}

// Run drives the RX handler and the active stream's playback loop
// until ctx is canceled.
func (r *Receiver) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return r.rxLoop(ctx) })
	return eg.Wait()
}

func (r *Receiver) rxLoop(ctx context.Context) error {
	type datagram struct {
		data []byte
		addr *net.UDPAddr
	}
	out := make(chan datagram, 32)

	read := func(recv func([]byte) (int, *net.UDPAddr, error)) error {
		buf := make([]byte, 2048)
		for {
			n, addr, err := recv(buf)
			if err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					return err
				}
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case out <- datagram{data: cp, addr: addr}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return read(r.cfg.Mux.RecvMulticast) })
	eg.Go(func() error { return read(r.cfg.Mux.RecvUnicast) })
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dg := <-out:
				r.handlePacket(ctx, dg.data, dg.addr)
			}
		}
	})
	return eg.Wait()
}

func (r *Receiver) handlePacket(ctx context.Context, data []byte, addr *net.UDPAddr) {
	parsed, ok := protocol.Parse(data)
	if !ok {
		return
	}
	switch pkt := parsed.(type) {
	case protocol.AudioPacket:
		r.handleAudio(ctx, pkt)
	case protocol.TimePacket:
		r.handleTime(pkt, addr)
	case protocol.StatsReqPacket:
		if err := r.replyStats(addr); err != nil {
			log.Warnf("receiver: stats reply failed: %v", err)
		}
	}
}

// handleAudio applies the takeover rule, then either folds the packet
// into the already-active stream or, on Accept/Replace, spins up a new
// stream and its decode goroutine.
func (r *Receiver) handleAudio(ctx context.Context, pkt protocol.AudioPacket) {
	now := time.Now()
	h := r.slot.current()

	if h != nil && h.stream.sid == pkt.Header.SID {
		h.stream.insert(pkt, now)
		return
	}

	var active *takeover.Candidate
	var lastSeen time.Time
	if h != nil {
		active = &takeover.Candidate{Priority: int8(h.stream.priority), SID: int64(h.stream.sid)}
		lastSeen = h.stream.LastSeen()
	}
	incoming := takeover.Candidate{Priority: int8(pkt.Header.Priority), SID: int64(pkt.Header.SID)}

	switch takeover.Evaluate(active, lastSeen, now, incoming) {
	case takeover.Drop:
		return
	case takeover.Accept:
		log.Infof("receiver: adopting stream %s (priority %d)", pkt.Header.SID, pkt.Header.Priority)
	case takeover.Replace:
		log.Infof("receiver: stream %s (priority %d) replaces %s", pkt.Header.SID, pkt.Header.Priority, h.stream.sid)
	}
	r.adopt(ctx, pkt, now)
}

func (r *Receiver) adopt(ctx context.Context, pkt protocol.AudioPacket, now time.Time) {
	_, dec, err := codec.New(pkt.Header.Format)
	if err != nil {
		log.Warnf("receiver: cannot adopt stream %s: %v", pkt.Header.SID, err)
		return
	}
	st := newStream(pkt.Header, dec, r.cfg.NewResampler(), now)
	st.insert(pkt, now)

	h := &streamHandle{stream: st}
	r.slot.set(h)
	go r.runStream(ctx, h)
}

func (r *Receiver) runStream(ctx context.Context, h *streamHandle) {
	ticker := time.NewTicker(time.Duration(packetDurationMicros) * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if r.slot.current() != h {
			return // superseded; this goroutine's work is done
		}
		if err := h.stream.tick(ctx, r.cfg.Sink); err != nil {
			log.Warnf("receiver: playback tick failed for stream %s: %v", h.stream.sid, err)
			return
		}
	}
}

func (r *Receiver) handleTime(pkt protocol.TimePacket, addr *net.UDPAddr) {
	switch pkt.Phase() {
	case protocol.TimePhaseBroadcast:
		reply, ok := timesync.HandleBroadcast(pkt, r.rid, uint64(time.Now().UnixMicro()))
		if !ok {
			return
		}
		buf := protocol.NewPacketBuffer(protocol.FormatPCMF32LE)
		if err := protocol.MarshalTime(reply, protocol.FormatPCMF32LE, buf); err != nil {
			log.Warnf("receiver: marshaling time reply: %v", err)
			return
		}
		if err := r.cfg.Mux.SendUnicast(buf.Bytes(), addr); err != nil {
			log.Warnf("receiver: sending time reply: %v", err)
		}
	case protocol.TimePhaseStreamReply:
		h := r.slot.current()
		if h == nil || h.stream.sid != pkt.SID {
			return
		}
		rtt, delta, ok := timesync.HandleStreamReply(pkt, uint64(time.Now().UnixMicro()))
		if !ok {
			return
		}
		h.stream.recordTimeSample(rtt, delta)
	}
}

func (r *Receiver) replyStats(addr *net.UDPAddr) error {
	reply := protocol.StatsReplyPacket{
		IsReceiver: true,
		Node:       r.identity.NodeStats(),
	}
	if h := r.slot.current(); h != nil {
		reply.SID = h.stream.sid
		reply.Receiver = h.stream.snapshotStats()
	}
	buf := protocol.NewPacketBuffer(protocol.FormatPCMF32LE)
	if err := protocol.MarshalStatsReply(reply, buf); err != nil {
		return err
	}
	return r.cfg.Mux.SendUnicast(buf.Bytes(), addr)
}
