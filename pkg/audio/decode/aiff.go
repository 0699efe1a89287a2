// ABOUTME: AIFF audio decoder
// ABOUTME: Decodes AIFF/AIFC PCM files using go-audio/aiff
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

var ErrNotAIFF = errors.New("decode: not an aiff file")

// DecodeAIFF decodes an integer PCM AIFF file
func DecodeAIFF(r io.ReadSeeker) (*audio.PCM, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAIFF
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read aiff pcm: %w", err)
	}

	return intBufferToPCM(buf, int(dec.BitDepth), false)
}
