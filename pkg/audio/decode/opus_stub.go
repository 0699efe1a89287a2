//go:build !opus

// ABOUTME: Opus decoder stub when libopusfile is not available
// ABOUTME: Keeps .opus resources recognised but failing with a clear error
package decode

import (
	"io"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

// DecodeOpus is unavailable without the opus build tag
func DecodeOpus(io.ReadSeeker) (*audio.PCM, error) {
	return nil, ErrOpusDisabled
}
