//go:build malgo

// ABOUTME: Malgo (miniaudio) output implementation
// ABOUTME: Feeds a callback-driven device from a blocking float32 ring buffer
package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/Sendspin/mixgraph/internal/logging"
)

var errMalgoStopped = errors.New("malgo: device stopped")

// MalgoDriver opens miniaudio playback devices by name
type MalgoDriver struct{}

// NewMalgoDriver creates the malgo driver
func NewMalgoDriver() *MalgoDriver { return &MalgoDriver{} }

func (d *MalgoDriver) Name() string { return "malgo" }

func (d *MalgoDriver) Devices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{Name: info.Name(), Default: info.IsDefault != 0})
	}
	return devices, nil
}

func (d *MalgoDriver) New(device string) (Output, error) {
	m := &Malgo{device: device}
	m.cond = sync.NewCond(&m.mu)
	return m, nil
}

// Malgo plays through a miniaudio device. Write blocks while the ring is full.
type Malgo struct {
	device string
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device

	mu       sync.Mutex
	cond     *sync.Cond
	ring     []float32
	readPos  int
	count    int
	channels int
	stopped  bool
}

// Open initializes and starts the device
func (m *Malgo) Open(sampleRate, channels int) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	if m.device != DefaultDevice {
		infos, err := ctx.Devices(malgo.Playback)
		if err != nil {
			m.freeContext(ctx)
			return fmt.Errorf("failed to list devices: %w", err)
		}
		found := false
		for _, info := range infos {
			if strings.EqualFold(info.Name(), m.device) {
				cfg.Playback.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			m.freeContext(ctx)
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, m.device)
		}
	}

	// 250ms of headroom between the render goroutine and the callback
	m.ring = make([]float32, sampleRate*channels/4)
	m.channels = channels

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) { m.fill(out, frames) },
		Stop: m.onStop,
	})
	if err != nil {
		m.freeContext(ctx)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		m.freeContext(ctx)
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.ctx = ctx
	m.dev = dev
	logging.Infof("Malgo output opened: %dHz, %d channels", sampleRate, channels)
	return nil
}

func (m *Malgo) Write(samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ring == nil {
		return fmt.Errorf("output not opened")
	}
	for len(samples) > 0 {
		for m.count == len(m.ring) && !m.stopped {
			m.cond.Wait()
		}
		if m.stopped {
			return errMalgoStopped
		}
		writePos := (m.readPos + m.count) % len(m.ring)
		n := min(len(samples), len(m.ring)-m.count, len(m.ring)-writePos)
		copy(m.ring[writePos:writePos+n], samples[:n])
		m.count += n
		samples = samples[n:]
	}
	return nil
}

// fill runs on the miniaudio thread; underruns are zero-filled
func (m *Malgo) fill(out []byte, frames uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int(frames) * m.channels
	for i := 0; i < n && (i+1)*4 <= len(out); i++ {
		var v float32
		if m.count > 0 {
			v = m.ring[m.readPos]
			m.readPos = (m.readPos + 1) % len(m.ring)
			m.count--
		}
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	m.cond.Broadcast()
}

// onStop fires when the device stops, including when it is unplugged
func (m *Malgo) onStop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *Malgo) freeContext(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		logging.Warnf("Malgo context uninit error: %v", err)
	}
	ctx.Free()
}

func (m *Malgo) Close() error {
	m.onStop()
	if m.dev != nil {
		m.dev.Uninit()
		m.dev = nil
	}
	if m.ctx != nil {
		m.freeContext(m.ctx)
		m.ctx = nil
	}
	return nil
}
