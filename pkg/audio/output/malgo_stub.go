//go:build !malgo

// ABOUTME: Malgo stub when miniaudio support is not compiled in
// ABOUTME: Keeps the driver selectable by name with a clear error
package output

import "errors"

var errMalgoDisabled = errors.New("malgo support not enabled (build with -tags malgo)")

// MalgoDriver is unavailable without the malgo build tag
type MalgoDriver struct{}

// NewMalgoDriver creates the malgo driver
func NewMalgoDriver() *MalgoDriver { return &MalgoDriver{} }

func (d *MalgoDriver) Name() string { return "malgo" }

func (d *MalgoDriver) Devices() ([]Device, error) {
	return nil, errMalgoDisabled
}

func (d *MalgoDriver) New(device string) (Output, error) {
	return nil, errMalgoDisabled
}
