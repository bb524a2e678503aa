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

package protocol

import (
	"encoding/binary"
	"fmt"
)

// receiverStatsSize is the fixed on-wire size of a marshaled ReceiverStats.
const receiverStatsSize = 1 + 1 + 8 + 8 + 8 + 8 + 4 + 4 + 4

// nodeStatsSize is the fixed on-wire size of a marshaled NodeStats.
const nodeStatsSize = NodeStatsFieldLen * 2

// statsReplyBodySize is the fixed on-wire size of a StatsReplyPacket
// body, following the common Header.
const statsReplyBodySize = 8 + receiverStatsSize + nodeStatsSize

// PacketBuffer owns one fixed-capacity byte region sized to the largest
// packet the active audio format can produce, and a settable active
// length. It is the single allocation point for packets moving through
// the socket layer.
type PacketBuffer struct {
	buf    []byte
	length int
}

// maxPacketSize returns the capacity needed to hold the largest packet
// (an AUDIO packet at the given format, which TIME packets are padded
// to match).
func maxPacketSize(f Format) int {
	return HeaderSize + AudioPacketHeaderSize + f.MaxEncodedPayload()
}

// NewPacketBuffer allocates a PacketBuffer sized for the given active
// audio format.
func NewPacketBuffer(f Format) *PacketBuffer {
	return &PacketBuffer{buf: make([]byte, maxPacketSize(f))}
}

// Bytes returns the active portion of the buffer.
func (b *PacketBuffer) Bytes() []byte { return b.buf[:b.length] }

// Raw returns the full underlying capacity, for use as a recv target.
func (b *PacketBuffer) Raw() []byte { return b.buf }

// SetLength marks n bytes of the underlying capacity as active,
// e.g. after a socket read returns n.
func (b *PacketBuffer) SetLength(n int) error {
	if n < 0 || n > len(b.buf) {
		return fmt.Errorf("protocol: length %d out of range [0,%d]", n, len(b.buf))
	}
	b.length = n
	return nil
}

// Len returns the active length.
func (b *PacketBuffer) Len() int { return b.length }

func putHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Flags)
}

func getHeader(b []byte) Header {
	return Header{
		Magic: binary.LittleEndian.Uint32(b[0:4]),
		Flags: binary.LittleEndian.Uint32(b[4:8]),
	}
}

func putAudioHeader(b []byte, h AudioPacketHeader) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(h.SID))
	binary.LittleEndian.PutUint64(b[8:16], h.Seq)
	binary.LittleEndian.PutUint64(b[16:24], h.PTS)
	binary.LittleEndian.PutUint64(b[24:32], h.DTS)
	b[32] = byte(h.Format)
	b[33] = byte(h.Priority)
	for i := 34; i < AudioPacketHeaderSize; i++ {
		b[i] = 0
	}
}

func getAudioHeader(b []byte) AudioPacketHeader {
	return AudioPacketHeader{
		SID:      SessionID(binary.LittleEndian.Uint64(b[0:8])),
		Seq:      binary.LittleEndian.Uint64(b[8:16]),
		PTS:      binary.LittleEndian.Uint64(b[16:24]),
		DTS:      binary.LittleEndian.Uint64(b[24:32]),
		Format:   Format(b[32]),
		Priority: Priority(int8(b[33])),
	}
}

// MarshalAudio encodes an AUDIO packet (header, audio header, and
// payload) into buf, sizing buf's active length to match.
func MarshalAudio(p AudioPacket, buf *PacketBuffer) error {
	total := HeaderSize + AudioPacketHeaderSize + len(p.Payload)
	if total > len(buf.buf) {
		return fmt.Errorf("protocol: audio packet of %d bytes exceeds buffer capacity %d", total, len(buf.buf))
	}
	raw := buf.buf[:total]
	putHeader(raw, Header{Magic: MagicFor(KindAudio), Flags: 0})
	putAudioHeader(raw[HeaderSize:], p.Header)
	copy(raw[HeaderSize+AudioPacketHeaderSize:], p.Payload)
	return buf.SetLength(total)
}

// parseAudio decodes an AUDIO packet body, returning ok=false on any
// length mismatch (payload length is bounded only, not exact).
func parseAudio(b []byte) (AudioPacket, bool) {
	if len(b) < AudioPacketHeaderSize {
		return AudioPacket{}, false
	}
	hdr := getAudioHeader(b)
	payload := b[AudioPacketHeaderSize:]
	if len(payload) > hdr.Format.MaxEncodedPayload() {
		return AudioPacket{}, false
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return AudioPacket{Header: hdr, Payload: cp}, true
}

func putTimeBody(b []byte, p TimePacket) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(p.SID))
	binary.LittleEndian.PutUint64(b[8:16], uint64(p.RID))
	binary.LittleEndian.PutUint64(b[16:24], p.T1)
	binary.LittleEndian.PutUint64(b[24:32], p.T2)
	binary.LittleEndian.PutUint64(b[32:40], p.T3)
}

func getTimeBody(b []byte) TimePacket {
	return TimePacket{
		SID: SessionID(binary.LittleEndian.Uint64(b[0:8])),
		RID: ReceiverID(binary.LittleEndian.Uint64(b[8:16])),
		T1:  binary.LittleEndian.Uint64(b[16:24]),
		T2:  binary.LittleEndian.Uint64(b[24:32]),
		T3:  binary.LittleEndian.Uint64(b[32:40]),
	}
}

// TimePacketSize returns the wire length a TIME packet must have so it
// matches the size of an AUDIO packet at the given format - the pad
// the component design calls for, computed once from the format
// instead of guessed at runtime.
func TimePacketSize(f Format) int {
	return maxPacketSize(f)
}

// MarshalTime encodes a TIME packet, padded with zero bytes so its
// total length equals an AUDIO packet's length for padFormat.
func MarshalTime(p TimePacket, padFormat Format, buf *PacketBuffer) error {
	total := TimePacketSize(padFormat)
	if total > len(buf.buf) {
		return fmt.Errorf("protocol: time packet of %d bytes exceeds buffer capacity %d", total, len(buf.buf))
	}
	if total < HeaderSize+TimePacketBodySize {
		return fmt.Errorf("protocol: pad format yields time packet smaller than the body it must hold")
	}
	raw := buf.buf[:total]
	putHeader(raw, Header{Magic: MagicFor(KindTime), Flags: 0})
	body := raw[HeaderSize:]
	putTimeBody(body, p)
	for i := TimePacketBodySize; i < len(body); i++ {
		body[i] = 0
	}
	return buf.SetLength(total)
}

// parseTime decodes a TIME packet body. The length must be exact for
// some configured pad format; since the receiver doesn't necessarily
// know the sender's active format up front, the padded size of any
// supported format is accepted.
func parseTime(b []byte) (TimePacket, bool) {
	if len(b) < TimePacketBodySize {
		return TimePacket{}, false
	}
	for _, f := range []Format{FormatPCMF32LE, FormatPCMS16LE, FormatOpus} {
		if HeaderSize+len(b) == TimePacketSize(f) {
			return getTimeBody(b), true
		}
	}
	return TimePacket{}, false
}

func putReceiverStats(b []byte, r ReceiverStats) {
	b[0] = r.PresenceBits()
	b[1] = byte(r.Status)
	binary.LittleEndian.PutUint64(b[2:10], uint64(r.AudioOffsetUs))
	binary.LittleEndian.PutUint64(b[10:18], r.BufferLength)
	binary.LittleEndian.PutUint64(b[18:26], r.NetworkLatency)
	binary.LittleEndian.PutUint64(b[26:34], uint64(r.PredictOffsetUs))
	binary.LittleEndian.PutUint32(b[34:38], r.PacketsDropped)
	binary.LittleEndian.PutUint32(b[38:42], r.StreamResets)
	binary.LittleEndian.PutUint32(b[42:46], r.Misses)
}

func getReceiverStats(b []byte) ReceiverStats {
	var r ReceiverStats
	r.SetPresenceBits(b[0])
	r.Status = StreamStatus(b[1])
	r.AudioOffsetUs = int64(binary.LittleEndian.Uint64(b[2:10]))
	r.BufferLength = binary.LittleEndian.Uint64(b[10:18])
	r.NetworkLatency = binary.LittleEndian.Uint64(b[18:26])
	r.PredictOffsetUs = int64(binary.LittleEndian.Uint64(b[26:34]))
	r.PacketsDropped = binary.LittleEndian.Uint32(b[34:38])
	r.StreamResets = binary.LittleEndian.Uint32(b[38:42])
	r.Misses = binary.LittleEndian.Uint32(b[42:46])
	return r
}

func putFixedASCII(b []byte, s string) {
	for i := range b {
		b[i] = 0
	}
	copy(b, s)
}

func getFixedASCII(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func putNodeStats(b []byte, n NodeStats) {
	putFixedASCII(b[0:NodeStatsFieldLen], n.Username)
	putFixedASCII(b[NodeStatsFieldLen:2*NodeStatsFieldLen], n.Hostname)
}

func getNodeStats(b []byte) NodeStats {
	return NodeStats{
		Username: getFixedASCII(b[0:NodeStatsFieldLen]),
		Hostname: getFixedASCII(b[NodeStatsFieldLen : 2*NodeStatsFieldLen]),
	}
}

// StatsReplyPacket is a node's answer to a STATS-REQ: its identity plus
// whichever of receiver/stream stats apply to it.
type StatsReplyPacket struct {
	SID        SessionID
	IsReceiver bool
	IsStream   bool
	Receiver   ReceiverStats
	Node       NodeStats
}

// MarshalStatsReply encodes a StatsReplyPacket. Its wire length is
// always exact (statsReplyBodySize), never payload-bounded.
func MarshalStatsReply(p StatsReplyPacket, buf *PacketBuffer) error {
	total := HeaderSize + statsReplyBodySize
	if total > len(buf.buf) {
		return fmt.Errorf("protocol: stats reply of %d bytes exceeds buffer capacity %d", total, len(buf.buf))
	}
	var flags uint32
	if p.IsReceiver {
		flags |= StatsReplyFlagReceiver
	}
	if p.IsStream {
		flags |= StatsReplyFlagStream
	}
	raw := buf.buf[:total]
	putHeader(raw, Header{Magic: MagicFor(KindStatsReply), Flags: flags})
	body := raw[HeaderSize:]
	binary.LittleEndian.PutUint64(body[0:8], uint64(p.SID))
	putReceiverStats(body[8:8+receiverStatsSize], p.Receiver)
	putNodeStats(body[8+receiverStatsSize:], p.Node)
	return buf.SetLength(total)
}

func parseStatsReply(b []byte, flags uint32) (StatsReplyPacket, bool) {
	if len(b) != statsReplyBodySize {
		return StatsReplyPacket{}, false
	}
	return StatsReplyPacket{
		SID:        SessionID(binary.LittleEndian.Uint64(b[0:8])),
		IsReceiver: flags&StatsReplyFlagReceiver != 0,
		IsStream:   flags&StatsReplyFlagStream != 0,
		Receiver:   getReceiverStats(b[8 : 8+receiverStatsSize]),
		Node:       getNodeStats(b[8+receiverStatsSize:]),
	}, true
}

// StatsReqPacket is an empty-bodied broadcast request for stats.
type StatsReqPacket struct{}

// MarshalStatsReq encodes a STATS-REQ packet (header only).
func MarshalStatsReq(buf *PacketBuffer) error {
	if HeaderSize > len(buf.buf) {
		return fmt.Errorf("protocol: buffer too small for a header")
	}
	raw := buf.buf[:HeaderSize]
	putHeader(raw, Header{Magic: MagicFor(KindStatsReq), Flags: 0})
	return buf.SetLength(HeaderSize)
}

// Parse dispatches on the wire magic and decodes one of the four
// packet kinds. Malformed, wrong-length, unrecognized-magic, or
// (for the kinds that require it) nonzero-flags packets return
// ok=false rather than an error: ingress parse failures are dropped,
// not propagated, per the error-handling design.
func Parse(b []byte) (packet any, ok bool) {
	if len(b) < HeaderSize {
		return nil, false
	}
	h := getHeader(b[:HeaderSize])
	kind, validMagic := h.Kind()
	if !validMagic {
		return nil, false
	}
	body := b[HeaderSize:]
	switch kind {
	case KindAudio:
		if h.Flags != 0 {
			return nil, false
		}
		p, ok := parseAudio(body)
		return p, ok
	case KindTime:
		if h.Flags != 0 {
			return nil, false
		}
		p, ok := parseTime(body)
		return p, ok
	case KindStatsReq:
		if h.Flags != 0 {
			return nil, false
		}
		if len(body) != 0 {
			return nil, false
		}
		return StatsReqPacket{}, true
	case KindStatsReply:
		p, ok := parseStatsReply(body, h.Flags)
		return p, ok
	default:
		return nil, false
	}
}
