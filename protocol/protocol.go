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

// Package protocol implements the bark wire format: packet headers,
// the four packet kinds (AUDIO, TIME, STATS-REQ, STATS-REPLY) and the
// fixed-size buffer they are read into and written from.
package protocol

import (
	"fmt"
	"strings"
)

// ProjectTag occupies the low 24 bits of Header.Magic and identifies
// the protocol family on the wire, independent of packet kind.
const ProjectTag uint32 = 0x00a79ae2

// Kind is the high 8 bits of Header.Magic.
type Kind uint8

// Packet kinds, as per the magic value layout in Header.Magic.
const (
	KindAudio      Kind = 0x00
	KindTime       Kind = 0x01
	KindStatsReq   Kind = 0x02
	KindStatsReply Kind = 0x03
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "AUDIO"
	case KindTime:
		return "TIME"
	case KindStatsReq:
		return "STATS-REQ"
	case KindStatsReply:
		return "STATS-REPLY"
	default:
		return fmt.Sprintf("KIND(%#x)", uint8(k))
	}
}

// Header is the 8-byte common prefix of every packet on the wire.
type Header struct {
	Magic uint32
	Flags uint32
}

// HeaderSize is the on-wire size of Header.
const HeaderSize = 8

// MagicFor builds the Magic value for a given Kind.
func MagicFor(k Kind) uint32 {
	return ProjectTag | uint32(k)<<24
}

// Kind extracts the packet Kind encoded in Magic.
func (h Header) Kind() (Kind, bool) {
	if h.Magic&0x00ffffff != ProjectTag {
		return 0, false
	}
	return Kind(h.Magic >> 24), true
}

// Channels is the fixed interleaved-stereo channel count.
const Channels = 2

// SampleRateHz is the fixed audio sample rate.
const SampleRateHz = 48000

// FramesPerPacket is the fixed frame count carried by one AUDIO packet
// (~3.333ms at 48kHz).
const FramesPerPacket = 160

// Format identifies the codec used for one AUDIO packet's payload.
type Format uint8

// Supported audio formats, as per AudioPacketHeader.Format.
const (
	FormatPCMF32LE Format = 0
	FormatPCMS16LE Format = 1
	FormatOpus     Format = 2
)

func (f Format) String() string {
	switch f {
	case FormatPCMF32LE:
		return "F32LE"
	case FormatPCMS16LE:
		return "S16LE"
	case FormatOpus:
		return "OPUS"
	default:
		return fmt.Sprintf("FORMAT(%d)", uint8(f))
	}
}

// ParseFormat maps a config/CLI format name onto its Format value,
// accepting the same names String returns (case-insensitively).
func ParseFormat(name string) (Format, error) {
	switch strings.ToUpper(name) {
	case "F32LE", "PCM_F32LE", "":
		return FormatPCMF32LE, nil
	case "S16LE", "PCM_S16LE":
		return FormatPCMS16LE, nil
	case "OPUS":
		return FormatOpus, nil
	default:
		return 0, fmt.Errorf("protocol: unknown format %q", name)
	}
}

// MaxEncodedPayload returns the maximum number of payload bytes a single
// AUDIO packet can carry for the given format. PCM formats are exact
// (one packet's worth of samples); Opus is bounded by a generous
// per-packet ceiling since its output size varies with content.
func (f Format) MaxEncodedPayload() int {
	switch f {
	case FormatPCMF32LE:
		return FramesPerPacket * Channels * 4
	case FormatPCMS16LE:
		return FramesPerPacket * Channels * 2
	case FormatOpus:
		return 1276 // RFC 6716 recommended max Opus packet size
	default:
		return FramesPerPacket * Channels * 4
	}
}

// AudioPacketHeaderSize is the on-wire size of AudioPacketHeader.
const AudioPacketHeaderSize = 8 + 8 + 8 + 8 + 1 + 1 + 6

// StatsReplyFlagReceiver and StatsReplyFlagStream are the bits a
// StatsReplyPacket's outer Header.Flags sets to mark the replying node
// as a receiver (IS_RECEIVER) or a stream source (IS_STREAM).
const (
	StatsReplyFlagReceiver uint32 = 1 << 0
	StatsReplyFlagStream   uint32 = 1 << 1
)
