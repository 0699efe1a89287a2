// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams PCM to the system device through a pipe-fed oto player
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/pkg/audio"
)

// oto allows one context per process, shared by every Oto output
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
)

// OtoDriver exposes the system default device through oto
type OtoDriver struct{}

// NewOtoDriver creates the oto driver
func NewOtoDriver() *OtoDriver { return &OtoDriver{} }

func (d *OtoDriver) Name() string { return "oto" }

// Devices returns the single default device; oto does not enumerate hardware
func (d *OtoDriver) Devices() ([]Device, error) {
	return []Device{{Name: "default", Default: true}}, nil
}

func (d *OtoDriver) New(device string) (Output, error) {
	if device != DefaultDevice && device != "default" {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	}
	return NewOto(), nil
}

// Oto output implementation using oto library
type Oto struct {
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	scratch    []byte
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx == nil {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		otoCtx = ctx
		otoSampleRate = sampleRate
		otoChannels = channels
	} else {
		if otoSampleRate != sampleRate || otoChannels != channels {
			// oto cannot be reinitialized with a new format
			logging.Warnf("Format change (%dHz %dch -> %dHz %dch) ignored, oto keeps its first context",
				otoSampleRate, otoChannels, sampleRate, channels)
		}
		if err := otoCtx.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
	}

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	logging.Infof("Audio output initialized: %dHz, %d channels", sampleRate, channels)
	return nil
}

// Write outputs audio samples (blocks until written)
func (o *Oto) Write(samples []float32) error {
	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	if cap(o.scratch) < len(samples)*2 {
		o.scratch = make([]byte, len(samples)*2)
	}
	out := o.scratch[:len(samples)*2]
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(audio.SampleToInt16(s)))
	}

	if _, err := o.pipeWriter.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	if err := otoCtx.Err(); err != nil {
		return fmt.Errorf("oto device error: %w", err)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.ready {
		otoMu.Lock()
		if otoCtx != nil {
			_ = otoCtx.Suspend()
		}
		otoMu.Unlock()
		o.ready = false
	}
	return nil
}
