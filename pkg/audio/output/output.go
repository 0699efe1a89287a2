// ABOUTME: Audio output interface definition
// ABOUTME: Common interfaces for playback devices and the drivers that open them
package output

import (
	"errors"
	"strings"
)

// ErrDeviceNotFound is returned when a driver cannot find the requested device
var ErrDeviceNotFound = errors.New("output: device not found")

// DefaultDevice selects the driver's default output
const DefaultDevice = ""

// Output represents an opened audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Write outputs interleaved float32 samples (blocks until written)
	Write(samples []float32) error

	// Close releases output resources
	Close() error
}

// Device describes an output device a driver can open
type Device struct {
	Name    string
	Default bool
}

// Driver enumerates devices and creates outputs bound to one of them
type Driver interface {
	Name() string
	Devices() ([]Device, error)
	New(device string) (Output, error)
}

// FindDevice returns the device whose name matches, case-insensitively.
// An empty name matches the default device.
func FindDevice(devices []Device, name string) (Device, bool) {
	for _, d := range devices {
		if name == DefaultDevice && d.Default {
			return d, true
		}
		if name != DefaultDevice && strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Device{}, false
}

// ByName returns a driver by its configuration name
func ByName(name string) (Driver, error) {
	switch strings.ToLower(name) {
	case "", "oto":
		return NewOtoDriver(), nil
	case "portaudio":
		return NewPortAudioDriver(), nil
	case "malgo":
		return NewMalgoDriver(), nil
	case "null":
		return NewNullDriver(), nil
	default:
		if strings.HasPrefix(name, "wav:") {
			return NewWAVDriver(strings.TrimPrefix(name, "wav:")), nil
		}
		return nil, errors.New("output: unknown driver " + name)
	}
}
