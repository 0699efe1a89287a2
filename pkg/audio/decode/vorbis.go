// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes Ogg Vorbis streams to float32 PCM using oggvorbis
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

// DecodeVorbis decodes a complete Ogg Vorbis stream
func DecodeVorbis(r io.ReadSeeker) (*audio.PCM, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vorbis decode error: %w", err)
	}

	return &audio.PCM{
		Format:  audio.Format{SampleRate: format.SampleRate, Channels: format.Channels},
		Samples: samples,
	}, nil
}
