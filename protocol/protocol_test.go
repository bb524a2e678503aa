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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAudioRoundTrip(t *testing.T) {
	buf := NewPacketBuffer(FormatPCMF32LE)
	in := AudioPacket{
		Header: AudioPacketHeader{
			SID:      SessionID(1234),
			Seq:      7,
			PTS:      1000,
			DTS:      1010,
			Format:   FormatPCMF32LE,
			Priority: 2,
		},
		Payload: make([]byte, FormatPCMF32LE.MaxEncodedPayload()),
	}
	for i := range in.Payload {
		in.Payload[i] = byte(i)
	}
	require.NoError(t, MarshalAudio(in, buf))

	got, ok := Parse(buf.Bytes())
	require.True(t, ok)
	ap, ok := got.(AudioPacket)
	require.True(t, ok)
	require.Equal(t, in.Header, ap.Header)
	require.Equal(t, in.Payload, ap.Payload)
}

func TestAudioRejectsNonzeroFlags(t *testing.T) {
	buf := NewPacketBuffer(FormatPCMF32LE)
	require.NoError(t, MarshalAudio(AudioPacket{Header: AudioPacketHeader{Format: FormatPCMF32LE}}, buf))
	raw := buf.Bytes()
	// corrupt the flags field
	raw[4] = 1
	_, ok := Parse(raw)
	require.False(t, ok)
}

func TestAudioRejectsOversizedPayload(t *testing.T) {
	buf := NewPacketBuffer(FormatPCMF32LE)
	p := AudioPacket{
		Header:  AudioPacketHeader{Format: FormatPCMS16LE},
		Payload: make([]byte, FormatPCMS16LE.MaxEncodedPayload()+2),
	}
	err := MarshalAudio(p, buf)
	require.NoError(t, err) // marshal doesn't know the format bound, only capacity
	_, ok := Parse(buf.Bytes())
	require.False(t, ok)
}

func TestTimePacketPhases(t *testing.T) {
	cases := []struct {
		name string
		pkt  TimePacket
		want TimePhase
	}{
		{"broadcast", TimePacket{T1: 1}, TimePhaseBroadcast},
		{"receiverReply", TimePacket{T1: 1, T2: 2}, TimePhaseReceiverReply},
		{"streamReply", TimePacket{T1: 1, T2: 2, T3: 3}, TimePhaseStreamReply},
		{"invalid-t2-only", TimePacket{T2: 2}, TimePhaseInvalid},
		{"invalid-empty", TimePacket{}, TimePhaseInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.pkt.Phase())
		})
	}
}

func TestTimeRoundTrip(t *testing.T) {
	buf := NewPacketBuffer(FormatOpus)
	in := TimePacket{SID: 99, RID: 42, T1: 111, T2: 222, T3: 333}
	require.NoError(t, MarshalTime(in, FormatOpus, buf))

	got, ok := Parse(buf.Bytes())
	require.True(t, ok)
	tp, ok := got.(TimePacket)
	require.True(t, ok)
	require.Equal(t, in, tp)
}

func TestTimePacketByteLengthMatchesAudio(t *testing.T) {
	for _, f := range []Format{FormatPCMF32LE, FormatPCMS16LE, FormatOpus} {
		audioBuf := NewPacketBuffer(f)
		require.NoError(t, MarshalAudio(AudioPacket{
			Header:  AudioPacketHeader{Format: f},
			Payload: make([]byte, f.MaxEncodedPayload()),
		}, audioBuf))

		timeBuf := NewPacketBuffer(f)
		require.NoError(t, MarshalTime(TimePacket{T1: 1}, f, timeBuf))

		require.Equal(t, audioBuf.Len(), timeBuf.Len(), "format %s", f)
	}
}

func TestStatsReplyRoundTrip(t *testing.T) {
	buf := NewPacketBuffer(FormatPCMF32LE)
	var rs ReceiverStats
	rs.SetAudioOffset(-1234)
	rs.SetBufferLength(512)
	rs.Status = StatusSlew
	rs.PacketsDropped = 3
	rs.StreamResets = 1
	rs.Misses = 7
	in := StatsReplyPacket{
		SID:        77,
		IsReceiver: true,
		Receiver:   rs,
		Node:       NodeStats{Username: "alice", Hostname: "box1"},
	}
	require.NoError(t, MarshalStatsReply(in, buf))

	got, ok := Parse(buf.Bytes())
	require.True(t, ok)
	sr, ok := got.(StatsReplyPacket)
	require.True(t, ok)
	require.Equal(t, in.SID, sr.SID)
	require.True(t, sr.IsReceiver)
	require.False(t, sr.IsStream)
	require.True(t, sr.Receiver.HasAudioOffset())
	require.Equal(t, int64(-1234), sr.Receiver.AudioOffsetUs)
	require.True(t, sr.Receiver.HasBufferLength())
	require.False(t, sr.Receiver.HasNetworkLatency())
	require.Equal(t, StatusSlew, sr.Receiver.Status)
	require.Equal(t, uint32(3), sr.Receiver.PacketsDropped)
	require.Equal(t, uint32(1), sr.Receiver.StreamResets)
	require.Equal(t, uint32(7), sr.Receiver.Misses)
	require.Equal(t, "alice", sr.Node.Username)
	require.Equal(t, "box1", sr.Node.Hostname)
}

func TestStatsReqRoundTrip(t *testing.T) {
	buf := NewPacketBuffer(FormatPCMF32LE)
	require.NoError(t, MarshalStatsReq(buf))
	got, ok := Parse(buf.Bytes())
	require.True(t, ok)
	_, ok = got.(StatsReqPacket)
	require.True(t, ok)
}

func TestParseRejectsUnrecognizedMagic(t *testing.T) {
	b := make([]byte, HeaderSize)
	putHeader(b, Header{Magic: 0xdeadbeef, Flags: 0})
	_, ok := Parse(b)
	require.False(t, ok)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, ok := Parse([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestMagicForRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindAudio, KindTime, KindStatsReq, KindStatsReply} {
		h := Header{Magic: MagicFor(k)}
		got, ok := h.Kind()
		require.True(t, ok)
		require.Equal(t, k, got)
	}
}
