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

// Package source implements the capture-to-packetize pipeline: the
// collaborator that turns batches of captured frames into a monotonic
// sequence of stamped AUDIO packets, broadcasts TIME phase-1 handshake
// packets, and answers the RX path for takeover/time-reply/stats
// traffic. Three concurrent activities share one TX socket, run under
// one errgroup so any one failing tears down the others.
package source

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/barksync/bark/codec"
	"github.com/barksync/bark/node"
	"github.com/barksync/bark/protocol"
	"github.com/barksync/bark/sampleclock"
	"github.com/barksync/bark/timesync"
)

// defaultPTSDelay is the presentation delay added to a fresh packet's
// capture timestamp.
const defaultPTSDelay = 20 * time.Millisecond

// timeBroadcastInterval is how often phase-1 TIME packets are sent.
const timeBroadcastInterval = 200 * time.Millisecond

// Mux is the subset of *netmux.Mux the pipeline needs; narrowed to an
// interface so the RX/TX paths can be exercised with a fake in tests.
type Mux interface {
	SendMulticast(b []byte) error
	SendUnicast(b []byte, addr *net.UDPAddr) error
	RecvMulticast(buf []byte) (int, *net.UDPAddr, error)
	RecvUnicast(buf []byte) (int, *net.UDPAddr, error)
}

// Config configures one Pipeline instance.
type Config struct {
	Mux      Mux
	Capture  CaptureSource
	Format   protocol.Format
	Priority protocol.Priority
	PTSDelay time.Duration // zero means defaultPTSDelay
}

// Pipeline is one running source: capture, TIME broadcaster, and RX
// handler, all sharing sid and the TX socket.
type Pipeline struct {
	cfg   Config
	sid   protocol.SessionID
	clock wallClock
	enc   codec.Encoder

	ptsDelay sampleclock.SampleDuration

	seq uint64

	// in-flight packet under construction
	ptsSet  bool
	pts     sampleclock.Timestamp
	pending []float32

	identity node.Identity
}

// New creates a Pipeline with a freshly-minted session id.
func New(cfg Config) (*Pipeline, error) {
	enc, _, err := codec.New(cfg.Format)
	if err != nil {
		return nil, err
	}
	delay := cfg.PTSDelay
	if delay == 0 {
		delay = defaultPTSDelay
	}
	return &Pipeline{
		cfg:      cfg,
		sid:      protocol.NewSessionID(),
		clock:    newWallClock(),
		enc:      enc,
		ptsDelay: sampleclock.SampleDuration(delay.Microseconds() * sampleclock.Rate / 1_000_000),
		identity: node.CurrentIdentity(),
	}, nil
}

// SessionID returns the session id this pipeline broadcasts under.
func (p *Pipeline) SessionID() protocol.SessionID { return p.sid }

// Run drives the three concurrent activities until ctx is canceled or
// one of them returns an error (e.g. this source lost a takeover).
func (p *Pipeline) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return p.captureLoop(ctx) })
	eg.Go(func() error { return p.timeBroadcastLoop(ctx) })
	eg.Go(func() error { return p.rxLoop(ctx) })
	return eg.Wait()
}

func (p *Pipeline) captureLoop(ctx context.Context) error {
	samplesPerPacket := protocol.FramesPerPacket * protocol.Channels
	for {
		frames, capturedAt, err := p.cfg.Capture.Capture(ctx)
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			continue
		}

		if !p.ptsSet {
			p.pts = capturedAt.Add(p.ptsDelay)
			p.ptsSet = true
		}

		p.pending = append(p.pending, frames...)
		for len(p.pending) >= samplesPerPacket {
			batch := p.pending[:samplesPerPacket]
			p.pending = append([]float32{}, p.pending[samplesPerPacket:]...)

			if err := p.emit(batch); err != nil {
				return err
			}

			if len(p.pending) == 0 {
				p.ptsSet = false
			}
		}
	}
}

func (p *Pipeline) emit(frames []float32) error {
	payload, err := p.enc.Encode(frames)
	if err != nil {
		return err
	}

	pkt := protocol.AudioPacket{
		Header: protocol.AudioPacketHeader{
			SID:      p.sid,
			Seq:      p.seq,
			PTS:      p.pts.ToMicros(),
			DTS:      p.clock.Now().ToMicros(),
			Format:   p.cfg.Format,
			Priority: p.cfg.Priority,
		},
		Payload: payload,
	}

	buf := protocol.NewPacketBuffer(p.cfg.Format)
	if err := protocol.MarshalAudio(pkt, buf); err != nil {
		return err
	}
	if err := p.cfg.Mux.SendMulticast(buf.Bytes()); err != nil {
		return err
	}

	p.seq++
	p.pts = p.pts.Add(sampleclock.PacketDuration)
	return nil
}

func (p *Pipeline) timeBroadcastLoop(ctx context.Context) error {
	ticker := time.NewTicker(timeBroadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.broadcastTime(); err != nil {
				log.Warnf("source: time broadcast failed: %v", err)
			}
		}
	}
}

func (p *Pipeline) broadcastTime() error {
	pkt := protocol.TimePacket{
		SID: p.sid,
		RID: protocol.BroadcastReceiver,
		T1:  p.clock.Now().ToMicros(),
	}
	buf := protocol.NewPacketBuffer(p.cfg.Format)
	if err := protocol.MarshalTime(pkt, p.cfg.Format, buf); err != nil {
		return err
	}
	return p.cfg.Mux.SendMulticast(buf.Bytes())
}

func (p *Pipeline) rxLoop(ctx context.Context) error {
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
	eg.Go(func() error { return read(p.cfg.Mux.RecvMulticast) })
	eg.Go(func() error { return read(p.cfg.Mux.RecvUnicast) })
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case dg := <-out:
				if err := p.handlePacket(dg.data, dg.addr); err != nil {
					return err
				}
			}
		}
	})
	return eg.Wait()
}

func (p *Pipeline) handlePacket(data []byte, addr *net.UDPAddr) error {
	parsed, ok := protocol.Parse(data)
	if !ok {
		return nil
	}

	switch pkt := parsed.(type) {
	case protocol.AudioPacket:
		if pkt.Header.SID > p.sid {
			log.Infof("source: taken over by higher-sid session %s, stepping down", pkt.Header.SID)
			return errTakenOver
		}
	case protocol.TimePacket:
		if pkt.SID != p.sid {
			return nil
		}
		reply, ok := timesync.HandleReceiverReply(pkt, p.clock.Now().ToMicros())
		if !ok {
			return nil
		}
		buf := protocol.NewPacketBuffer(p.cfg.Format)
		if err := protocol.MarshalTime(reply, p.cfg.Format, buf); err != nil {
			return err
		}
		return p.cfg.Mux.SendUnicast(buf.Bytes(), addr)
	case protocol.StatsReqPacket:
		return p.replyStats(addr)
	}
	return nil
}

func (p *Pipeline) replyStats(addr *net.UDPAddr) error {
	reply := protocol.StatsReplyPacket{
		SID:     p.sid,
		IsStream: true,
		Node:    p.identity.NodeStats(),
	}
	buf := protocol.NewPacketBuffer(p.cfg.Format)
	if err := protocol.MarshalStatsReply(reply, buf); err != nil {
		return err
	}
	return p.cfg.Mux.SendUnicast(buf.Bytes(), addr)
}
