// ABOUTME: Decoder registry for fully decoding encoded audio to PCM
// ABOUTME: Picks a decoder by file extension, falling back to magic-byte sniffing
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

var (
	// ErrUnknownFormat is returned when no registered decoder accepts the data
	ErrUnknownFormat = errors.New("decode: unknown audio format")
	// ErrEmpty is returned for zero-length input
	ErrEmpty = errors.New("decode: empty input")
	// ErrOpusDisabled is returned for Opus input in builds without the opus tag
	ErrOpusDisabled = errors.New("decode: Opus support not enabled (build with -tags opus)")
)

// OpusHead follows the 27-byte page header and a one-entry segment table
const opusHeadOffset = 28

// Decoder converts a complete encoded stream into an in-memory PCM buffer
type Decoder interface {
	Decode(r io.ReadSeeker) (*audio.PCM, error)
}

// DecoderFunc adapts a function into a Decoder
type DecoderFunc func(r io.ReadSeeker) (*audio.PCM, error)

func (f DecoderFunc) Decode(r io.ReadSeeker) (*audio.PCM, error) { return f(r) }

// Registry maps format names (file extensions without the dot) to decoders
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register associates format with d, replacing any previous decoder
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[strings.ToLower(format)] = d
}

// Get looks up a decoder by format name
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[strings.ToLower(format)]
	return d, ok
}

// Formats returns the registered format names
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		names = append(names, name)
	}
	return names
}

// Decode reads all of src and decodes it. The format is taken from the
// extension of name; when that is missing or unregistered the header is sniffed.
func (r *Registry) Decode(name string, src io.Reader) (*audio.PCM, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil, ErrEmpty
	}

	format := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	d, ok := r.Get(format)
	if !ok {
		format = Detect(data)
		d, ok = r.Get(format)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}

	pcm, err := d.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s as %s: %w", name, format, err)
	}
	return pcm, nil
}

// Detect guesses a format name from the leading bytes of an encoded stream
func Detect(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "wav"
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC"))):
		return "aiff"
	case bytes.HasPrefix(header, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(header, []byte("OggS")) && len(header) >= opusHeadOffset+8 &&
		bytes.Equal(header[opusHeadOffset:opusHeadOffset+8], []byte("OpusHead")):
		return "opus"
	case bytes.HasPrefix(header, []byte("OggS")):
		return "ogg"
	case bytes.HasPrefix(header, []byte("ID3")):
		return "mp3"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns a registry with every built-in decoder registered
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.Register("mp3", DecoderFunc(DecodeMP3))
		r.Register("wav", DecoderFunc(DecodeWAV))
		r.Register("aiff", DecoderFunc(DecodeAIFF))
		r.Register("aif", DecoderFunc(DecodeAIFF))
		r.Register("ogg", DecoderFunc(DecodeVorbis))
		r.Register("flac", DecoderFunc(DecodeFLAC))
		r.Register("opus", DecoderFunc(DecodeOpus))
		defaultRegistry = r
	})
	return defaultRegistry
}
