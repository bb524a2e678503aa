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
	"fmt"

	"github.com/thesyncim/gopus"

	"github.com/barksync/bark/protocol"
)

// opusCodec wraps a pure-Go Opus encoder/decoder pair sized for one
// bark packet (stereo, 160 frames, 48kHz). The decoder's nil-payload
// path is Opus's native packet-loss concealment, which is why codec's
// Decoder interface threads a nil payload straight through to it rather
// than synthesizing silence itself.
type opusCodec struct {
	enc *gopus.Encoder
	dec *gopus.Decoder
}

func newOpusCodec() (Encoder, Decoder, error) {
	enc, err := gopus.NewEncoder(protocol.SampleRateHz, protocol.Channels, gopus.ApplicationAudio)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: creating opus encoder: %w", err)
	}
	dec, err := gopus.NewDecoder(gopus.DefaultDecoderConfig(protocol.SampleRateHz, protocol.Channels))
	if err != nil {
		return nil, nil, fmt.Errorf("codec: creating opus decoder: %w", err)
	}
	c := &opusCodec{enc: enc, dec: dec}
	return c, c, nil
}

func (c *opusCodec) Encode(frames []float32) ([]byte, error) {
	if len(frames) != samplesPerPacket {
		return nil, fmt.Errorf("codec: opus expected %d samples, got %d", samplesPerPacket, len(frames))
	}
	packet := make([]byte, protocol.FormatOpus.MaxEncodedPayload())
	n, err := c.enc.Encode(frames, packet)
	if err != nil {
		return nil, fmt.Errorf("codec: opus encode: %w", err)
	}
	return packet[:n], nil
}

func (c *opusCodec) Decode(payload []byte, out []float32) (int, error) {
	n, err := c.dec.Decode(payload, out)
	if err != nil {
		return 0, fmt.Errorf("codec: opus decode: %w", err)
	}
	return n, nil
}
