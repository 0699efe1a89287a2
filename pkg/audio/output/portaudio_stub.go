//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudioDriver is unavailable without the portaudio build tag
type PortAudioDriver struct{}

// NewPortAudioDriver creates the PortAudio driver
func NewPortAudioDriver() *PortAudioDriver { return &PortAudioDriver{} }

func (d *PortAudioDriver) Name() string { return "portaudio" }

func (d *PortAudioDriver) Devices() ([]Device, error) {
	return nil, errPortAudioDisabled
}

func (d *PortAudioDriver) New(device string) (Output, error) {
	return nil, errPortAudioDisabled
}
