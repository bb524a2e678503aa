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

// Package codec implements payload-only encode/decode of exactly one
// AUDIO packet's worth of interleaved stereo frames, for each format
// protocol.Format names. Device I/O, resampling and the rest of the
// pipeline are out of scope; a codec here only ever sees one packet at
// a time.
package codec

import (
	"fmt"

	"github.com/barksync/bark/protocol"
)

// Encoder turns one packet's worth of interleaved float32 frames
// (FramesPerPacket*Channels samples) into wire payload bytes.
type Encoder interface {
	Encode(frames []float32) ([]byte, error)
}

// Decoder turns wire payload bytes back into interleaved float32
// frames. A nil payload requests packet-loss concealment: the decoder
// should synthesize a plausible continuation rather than silence,
// where the underlying codec supports it (Opus does; PCM formats fall
// back to silence since they carry no redundancy to conceal from).
type Decoder interface {
	Decode(payload []byte, out []float32) (int, error)
}

// New returns the Encoder/Decoder pair for the given wire format.
func New(format protocol.Format) (Encoder, Decoder, error) {
	switch format {
	case protocol.FormatPCMF32LE:
		return pcmF32LE{}, pcmF32LE{}, nil
	case protocol.FormatPCMS16LE:
		return pcmS16LE{}, pcmS16LE{}, nil
	case protocol.FormatOpus:
		return newOpusCodec()
	default:
		return nil, nil, fmt.Errorf("codec: unsupported format %s", format)
	}
}
