// ABOUTME: Headless output driver that discards audio
// ABOUTME: Configurable device list and failure injection for device-loss handling
package output

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrDeviceGone is returned by writes to a device that has been removed
var ErrDeviceGone = errors.New("output: device removed")

// NullDriver discards audio. Devices can be added, removed or failed at
// runtime so callers can exercise device migration without hardware.
type NullDriver struct {
	mu       sync.Mutex
	devices  []Device
	failed   map[string]bool
	realtime bool
}

// NewNullDriver creates a driver exposing one default device named "null"
func NewNullDriver() *NullDriver {
	return &NullDriver{
		devices:  []Device{{Name: "null", Default: true}},
		failed:   make(map[string]bool),
		realtime: true,
	}
}

func (d *NullDriver) Name() string { return "null" }

// SetRealtime controls whether writes are paced to the sample clock
func (d *NullDriver) SetRealtime(realtime bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.realtime = realtime
}

// SetDevices replaces the device list
func (d *NullDriver) SetDevices(devices ...Device) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.devices = append([]Device(nil), devices...)
}

// Fail makes every write to the named device return ErrDeviceGone
func (d *NullDriver) Fail(device string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed[device] = true
}

func (d *NullDriver) Devices() ([]Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Device(nil), d.devices...), nil
}

func (d *NullDriver) New(device string) (Output, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev, ok := FindDevice(d.devices, device)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	}
	delete(d.failed, dev.Name)
	return &Null{driver: d, device: dev.Name, realtime: d.realtime}, nil
}

func (d *NullDriver) isFailed(device string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failed[device]
}

// Null is an output that counts and discards samples
type Null struct {
	driver   *NullDriver
	device   string
	realtime bool
	pace     pacer
	channels int

	mu      sync.Mutex
	written int
}

func (n *Null) Open(sampleRate, channels int) error {
	n.channels = channels
	n.pace = newPacer(sampleRate)
	return nil
}

func (n *Null) Write(samples []float32) error {
	if n.driver.isFailed(n.device) {
		return fmt.Errorf("%w: %s", ErrDeviceGone, n.device)
	}
	frames := 0
	if n.channels > 0 {
		frames = len(samples) / n.channels
	}
	n.mu.Lock()
	n.written += frames
	n.mu.Unlock()
	if n.realtime {
		n.pace.wait(frames)
	}
	return nil
}

// Frames returns the number of frames written so far
func (n *Null) Frames() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written
}

func (n *Null) Close() error { return nil }

// pacer sleeps so that writes proceed no faster than the sample clock
type pacer struct {
	sampleRate int
	start      time.Time
	frames     int
}

func newPacer(sampleRate int) pacer {
	return pacer{sampleRate: sampleRate, start: time.Now()}
}

func (p *pacer) wait(frames int) {
	if p.sampleRate <= 0 {
		return
	}
	p.frames += frames
	due := p.start.Add(time.Duration(float64(p.frames) / float64(p.sampleRate) * float64(time.Second)))
	if d := time.Until(due); d > 0 {
		time.Sleep(d)
	}
}
