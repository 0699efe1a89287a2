//go:build opus

// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Reads .opus files through libopusfile and returns 48 kHz float32 PCM
package decode

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

// opusfile always decodes at 48 kHz regardless of the input rate in OpusHead
const opusSampleRate = 48000

// Max frame size per channel
const opusFrameSize = 5760

// DecodeOpus decodes a complete Ogg Opus stream
func DecodeOpus(r io.ReadSeeker) (*audio.PCM, error) {
	channels, err := opusChannels(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("opus rewind: %w", err)
	}

	stream, err := opus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	buf := make([]float32, opusFrameSize*channels)
	var samples []float32
	for {
		n, err := stream.ReadFloat32(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}
		samples = append(samples, buf[:n*channels]...)
	}

	return &audio.PCM{
		Format:  audio.Format{SampleRate: opusSampleRate, Channels: channels},
		Samples: samples,
	}, nil
}

// opusChannels reads the channel count from the OpusHead packet on the first page
func opusChannels(r io.Reader) (int, error) {
	head := make([]byte, opusHeadOffset+10)
	if _, err := io.ReadFull(r, head); err != nil {
		return 0, fmt.Errorf("opus header: %w", err)
	}
	if Detect(head) != "opus" {
		return 0, errors.New("opus header: missing OpusHead")
	}
	channels := int(head[opusHeadOffset+9])
	if channels == 0 {
		return 0, errors.New("opus header: zero channels")
	}
	return channels, nil
}
