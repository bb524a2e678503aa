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

package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/barksync/bark/protocol"
)

const samplesPerPacket = protocol.FramesPerPacket * protocol.Channels

// pcmF32LE is both the Encoder and Decoder for uncompressed 32-bit
// little-endian float PCM: a direct byte reinterpretation, no loss.
type pcmF32LE struct{}

func (pcmF32LE) Encode(frames []float32) ([]byte, error) {
	if len(frames) != samplesPerPacket {
		return nil, fmt.Errorf("codec: pcm/f32le expected %d samples, got %d", samplesPerPacket, len(frames))
	}
	buf := make([]byte, samplesPerPacket*4)
	for i, s := range frames {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf, nil
}

func (pcmF32LE) Decode(payload []byte, out []float32) (int, error) {
	if payload == nil {
		// PCM carries no redundancy to conceal loss with; emit silence.
		for i := range out {
			out[i] = 0
		}
		return len(out), nil
	}
	if len(payload) != samplesPerPacket*4 {
		return 0, fmt.Errorf("codec: pcm/f32le expected %d bytes, got %d", samplesPerPacket*4, len(payload))
	}
	n := samplesPerPacket
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return n, nil
}

// pcmS16LE is both the Encoder and Decoder for 16-bit little-endian
// signed integer PCM: samples are scaled to/from the [-1,1] float
// domain the rest of the pipeline uses.
type pcmS16LE struct{}

func (pcmS16LE) Encode(frames []float32) ([]byte, error) {
	if len(frames) != samplesPerPacket {
		return nil, fmt.Errorf("codec: pcm/s16le expected %d samples, got %d", samplesPerPacket, len(frames))
	}
	buf := make([]byte, samplesPerPacket*2)
	for i, s := range frames {
		v := clampFloat(s) * 32768
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
	}
	return buf, nil
}

func (pcmS16LE) Decode(payload []byte, out []float32) (int, error) {
	if payload == nil {
		for i := range out {
			out[i] = 0
		}
		return len(out), nil
	}
	if len(payload) != samplesPerPacket*2 {
		return 0, fmt.Errorf("codec: pcm/s16le expected %d bytes, got %d", samplesPerPacket*2, len(payload))
	}
	n := samplesPerPacket
	if n > len(out) {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = float32(int16(binary.LittleEndian.Uint16(payload[i*2:]))) / 32768
	}
	return n, nil
}

func clampFloat(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
