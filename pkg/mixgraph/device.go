// ABOUTME: Device manager detecting output loss and migrating the graph
// ABOUTME: Invalidates native handles, re-initializes the layer and replays state
package mixgraph

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
)

// DeviceState is the device manager's lifecycle state
type DeviceState int32

const (
	DeviceActive DeviceState = iota
	DeviceLost
	DeviceReinitializing
)

func (s DeviceState) String() string {
	switch s {
	case DeviceActive:
		return "active"
	case DeviceLost:
		return "lost"
	case DeviceReinitializing:
		return "reinitializing"
	default:
		return "unknown"
	}
}

// DeviceManager owns the output device. All transitions happen on the audio goroutine.
type DeviceManager struct {
	engine   *Engine
	interval time.Duration
	log      *zap.SugaredLogger

	state     atomic.Int32
	preferred atomic.Pointer[string]
	requested atomic.Bool
	current   atomic.Pointer[string]

	// audio goroutine only
	lastPoll    time.Time
	lastAttempt time.Time
}

func newDeviceManager(e *Engine, preferred string, interval time.Duration) *DeviceManager {
	d := &DeviceManager{engine: e, interval: interval, log: logging.With("component", "device")}
	d.preferred.Store(&preferred)
	empty := ""
	d.current.Store(&empty)
	d.state.Store(int32(DeviceLost))
	return d
}

func (d *DeviceManager) State() DeviceState { return DeviceState(d.state.Load()) }

// Preferred returns the requested device name, "" for the system default
func (d *DeviceManager) Preferred() string { return *d.preferred.Load() }

// Current returns the name of the open device, "" while lost
func (d *DeviceManager) Current() string { return *d.current.Load() }

// SetDevice requests migration to name on the next tick
func (d *DeviceManager) SetDevice(name string) {
	d.preferred.Store(&name)
	d.requested.Store(true)
}

// Devices lists the outputs available to the native layer
func (d *DeviceManager) Devices() ([]output.Device, error) {
	return d.engine.layer.Devices()
}

// target resolves the preferred device against the current device list,
// falling back to the default device when the preferred one is missing.
func (d *DeviceManager) target() (string, bool) {
	devices, err := d.engine.layer.Devices()
	if err != nil || len(devices) == 0 {
		return "", false
	}
	if pref := d.Preferred(); pref != "" {
		if dev, ok := output.FindDevice(devices, pref); ok {
			return dev.Name, true
		}
	}
	if dev, ok := output.FindDevice(devices, output.DefaultDevice); ok {
		return dev.Name, true
	}
	return devices[0].Name, true
}

// check runs once per tick
func (d *DeviceManager) check(now time.Time) {
	switch d.State() {
	case DeviceActive:
		lost := d.engine.layer.Lost()
		migrate := d.requested.Swap(false)
		if !lost && !migrate && now.Sub(d.lastPoll) >= d.interval {
			d.lastPoll = now
			if target, ok := d.target(); ok && target != d.engine.layer.Device() {
				d.log.Infof("Output device changed: %q -> %q", d.engine.layer.Device(), target)
				migrate = true
			}
		}
		if lost {
			d.log.Warnf("Output device %q lost", d.engine.layer.Device())
		}
		if lost || migrate {
			d.invalidate()
			d.reinit(now)
		}
	case DeviceLost:
		if d.requested.Swap(false) || now.Sub(d.lastAttempt) >= d.interval {
			d.reinit(now)
		}
	}
}

func (d *DeviceManager) invalidate() {
	d.state.Store(int32(DeviceLost))
	empty := ""
	d.current.Store(&empty)
	d.engine.deviceLost()
}

func (d *DeviceManager) reinit(now time.Time) {
	d.lastAttempt = now
	d.state.Store(int32(DeviceReinitializing))

	target, ok := d.target()
	if !ok {
		target = d.Preferred()
	}
	if err := d.engine.layer.Init(target); err != nil {
		d.log.Warnf("Failed to open output device %q: %v", target, err)
		d.state.Store(int32(DeviceLost))
		return
	}

	name := d.engine.layer.Device()
	d.current.Store(&name)
	d.lastPoll = now
	d.state.Store(int32(DeviceActive))
	d.log.Infof("Output device %q active", name)
	d.engine.deviceRestored()
}
