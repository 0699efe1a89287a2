// ABOUTME: WAV file output driver
// ABOUTME: Captures the rendered mix to disk with go-audio/wav
package output

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Sendspin/mixgraph/pkg/audio"
)

const wavBitDepth = 16

// WAVDriver records output into a single file
type WAVDriver struct {
	path     string
	realtime bool
}

// NewWAVDriver creates a driver writing to path
func NewWAVDriver(path string) *WAVDriver {
	return &WAVDriver{path: path, realtime: true}
}

// SetRealtime controls whether writes are paced to the sample clock
func (d *WAVDriver) SetRealtime(realtime bool) { d.realtime = realtime }

func (d *WAVDriver) Name() string { return "wav" }

func (d *WAVDriver) Devices() ([]Device, error) {
	return []Device{{Name: d.path, Default: true}}, nil
}

func (d *WAVDriver) New(device string) (Output, error) {
	if device != DefaultDevice && device != d.path {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	}
	return &WAVFile{path: d.path, realtime: d.realtime}, nil
}

// WAVFile encodes written samples as 16-bit PCM
type WAVFile struct {
	path     string
	realtime bool
	file     *os.File
	encoder  *wav.Encoder
	buf      *goaudio.IntBuffer
	pace     pacer
}

func (w *WAVFile) Open(sampleRate, channels int) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}
	w.file = f
	w.encoder = wav.NewEncoder(f, sampleRate, wavBitDepth, channels, 1)
	w.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: wavBitDepth,
	}
	w.pace = newPacer(sampleRate)
	return nil
}

func (w *WAVFile) Write(samples []float32) error {
	if w.encoder == nil {
		return fmt.Errorf("output not opened")
	}
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(audio.SampleToInt16(s))
	}
	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	if w.realtime && w.buf.Format.NumChannels > 0 {
		w.pace.wait(len(samples) / w.buf.Format.NumChannels)
	}
	return nil
}

func (w *WAVFile) Close() error {
	if w.encoder == nil {
		return nil
	}
	err := w.encoder.Close()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.encoder = nil
	return err
}
