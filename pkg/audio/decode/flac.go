// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC streams frame by frame using mewkiz/flac
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

// DecodeFLAC decodes every frame of a FLAC stream into interleaved PCM
func DecodeFLAC(r io.ReadSeeker) (*audio.PCM, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	samples := make([]float32, 0, int(stream.Info.NSamples)*channels)

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("flac frame error: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromInt(int(frame.Subframes[ch].Samples[i]), bitDepth))
			}
		}
	}

	return &audio.PCM{
		Format:  audio.Format{SampleRate: int(stream.Info.SampleRate), Channels: channels},
		Samples: samples,
	}, nil
}
