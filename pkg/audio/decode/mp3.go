// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 streams to float32 PCM using go-mp3
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes a complete MP3 stream. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.ReadSeeker) (*audio.PCM, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(raw) / 2
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	return &audio.PCM{
		Format:  audio.Format{SampleRate: decoder.SampleRate(), Channels: 2},
		Samples: samples,
	}, nil
}
