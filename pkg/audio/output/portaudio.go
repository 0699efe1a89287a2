//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Enumerates devices and writes to a blocking PortAudio stream
package output

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/Sendspin/mixgraph/internal/logging"
)

const portAudioFramesPerBuffer = 512

var (
	paOnce sync.Once
	paErr  error
)

func initPortAudio() error {
	paOnce.Do(func() {
		paErr = portaudio.Initialize()
	})
	return paErr
}

// PortAudioDriver opens named PortAudio output devices
type PortAudioDriver struct{}

// NewPortAudioDriver creates the PortAudio driver
func NewPortAudioDriver() *PortAudioDriver { return &PortAudioDriver{} }

func (d *PortAudioDriver) Name() string { return "portaudio" }

// Devices lists devices with at least one output channel
func (d *PortAudioDriver) Devices() ([]Device, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	def, _ := portaudio.DefaultOutputDevice()

	var devices []Device
	for _, info := range infos {
		if info.MaxOutputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			Name:    info.Name,
			Default: def != nil && def.Name == info.Name,
		})
	}
	return devices, nil
}

func (d *PortAudioDriver) New(device string) (Output, error) {
	if err := initPortAudio(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	var info *portaudio.DeviceInfo
	var err error
	if device == DefaultDevice {
		info, err = portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default output device: %w", err)
		}
	} else {
		infos, err := portaudio.Devices()
		if err != nil {
			return nil, fmt.Errorf("failed to list devices: %w", err)
		}
		for _, candidate := range infos {
			if candidate.MaxOutputChannels > 0 && candidate.Name == device {
				info = candidate
				break
			}
		}
		if info == nil {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
		}
	}
	return &PortAudio{device: info}, nil
}

// PortAudio output implementation
type PortAudio struct {
	device   *portaudio.DeviceInfo
	stream   *portaudio.Stream
	buffer   []float32
	channels int
}

// Open initializes the stream on the selected device
func (p *PortAudio) Open(sampleRate, channels int) error {
	p.channels = channels
	p.buffer = make([]float32, portAudioFramesPerBuffer*channels)

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   p.device,
			Channels: channels,
			Latency:  p.device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: portAudioFramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, &p.buffer)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	p.stream = stream

	logging.Infof("PortAudio output opened on %s: %dHz, %d channels", p.device.Name, sampleRate, channels)
	return stream.Start()
}

// Write outputs audio samples in stream-sized chunks
func (p *PortAudio) Write(samples []float32) error {
	if p.stream == nil {
		return fmt.Errorf("output not opened")
	}

	for len(samples) > 0 {
		n := copy(p.buffer, samples)
		for i := n; i < len(p.buffer); i++ {
			p.buffer[i] = 0
		}
		samples = samples[n:]
		if err := p.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("stream write failed: %w", err)
		}
	}
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	err := p.stream.Close()
	p.stream = nil
	return err
}
