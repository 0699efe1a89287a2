// ABOUTME: WAV audio decoder
// ABOUTME: Decodes RIFF/WAVE PCM files using go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

var ErrNotWAV = errors.New("decode: not a wav file")

// DecodeWAV decodes an integer PCM WAV file
func DecodeWAV(r io.ReadSeeker) (*audio.PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav pcm: %w", err)
	}

	return intBufferToPCM(buf, int(dec.BitDepth), true)
}

func intBufferToPCM(buf *goaudio.IntBuffer, bitDepth int, unsigned8 bool) (*audio.PCM, error) {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, fmt.Errorf("missing pcm format")
	}
	if buf.SourceBitDepth != 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth == 0 {
		bitDepth = 16
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 && unsigned8 {
			v -= 128
		}
		samples[i] = audio.SampleFromInt(v, bitDepth)
	}

	return &audio.PCM{
		Format: audio.Format{
			SampleRate: buf.Format.SampleRate,
			Channels:   buf.Format.NumChannels,
		},
		Samples: samples,
	}, nil
}
