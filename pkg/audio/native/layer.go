// ABOUTME: Native audio layer boundary used by the mixgraph engine
// ABOUTME: Handles, attributes and the Layer interface over buffers, voices and buses
package native

import (
	"errors"
	"time"

	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/effect"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
)

var (
	// ErrInvalidHandle is returned for handles that were freed or belong to a previous device
	ErrInvalidHandle = errors.New("native: invalid handle")
	// ErrNotInitialized is returned before Init succeeds
	ErrNotInitialized = errors.New("native: device not initialized")
)

// Handle identifies a buffer, voice or bus. Zero is never a valid handle and
// handles are never reused, including across device re-initialization.
type Handle uint64

// Attribute selects a per-handle playback parameter
type Attribute int

const (
	AttrVolume Attribute = iota
	AttrBalance
	AttrFrequency
)

func (a Attribute) String() string {
	switch a {
	case AttrVolume:
		return "volume"
	case AttrBalance:
		return "balance"
	case AttrFrequency:
		return "frequency"
	default:
		return "unknown"
	}
}

// Level is a peak meter reading for one handle
type Level struct {
	Left  float32
	Right float32
}

// Layer is the playback library the engine drives. It is not required to be
// safe for use by more than one goroutine at a time.
type Layer interface {
	// LoadPCM uploads decoded audio and returns a buffer handle
	LoadPCM(pcm *audio.PCM) (Handle, error)
	// FreeBuffer releases a buffer. Voices already playing it keep their data.
	FreeBuffer(h Handle) error
	// CreateVoice creates a stopped playback handle over a buffer. Its
	// frequency attribute starts at the buffer's sample rate.
	CreateVoice(buffer Handle) (Handle, error)
	// CreateBus creates a submix bus
	CreateBus() (Handle, error)
	// Master returns the bus that feeds the device
	Master() Handle
	// Route connects a voice or bus to a parent bus
	Route(h, bus Handle) error
	// Unroute disconnects h from its bus
	Unroute(h Handle) error

	SetAttribute(h Handle, attr Attribute, value float64) error
	Attribute(h Handle, attr Attribute) (float64, error)
	SetLoop(h Handle, loop bool) error

	Play(h Handle, restart bool) error
	Pause(h Handle) error
	// Stop halts and frees a voice
	Stop(h Handle) error
	// Free releases a voice or bus without stopping it first
	Free(h Handle) error
	// IsActive reports whether h is currently producing samples
	IsActive(h Handle) bool
	Position(h Handle) (time.Duration, error)
	SetPosition(h Handle, pos time.Duration) error
	// Level returns the most recent peak reading for a voice or bus
	Level(h Handle) Level
	// SetEffects replaces the ordered effect chain of a bus
	SetEffects(bus Handle, effects []effect.Effect) error

	// Devices lists the outputs the layer can open
	Devices() ([]output.Device, error)
	// Init (re)opens a device. Every existing handle becomes invalid.
	Init(device string) error
	// Device returns the name of the open device
	Device() string
	// Lost reports that the open device stopped accepting audio
	Lost() bool
	Close() error
}
