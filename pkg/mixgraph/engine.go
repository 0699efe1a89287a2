// ABOUTME: Engine owning the command queue, the audio goroutine and the mixer tree
// ABOUTME: Each tick drains commands, checks the device and updates components
package mixgraph

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/pkg/audio/decode"
	"github.com/Sendspin/mixgraph/pkg/audio/native"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
	"github.com/Sendspin/mixgraph/pkg/audio/queue"
	"github.com/Sendspin/mixgraph/pkg/resources"
)

// Defaults applied by NewEngine
const (
	DefaultTickInterval       = 2 * time.Millisecond
	DefaultDevicePollInterval = time.Second
)

// Config configures an Engine
type Config struct {
	// Layer is the native playback layer. Nil selects a software layer over Driver.
	Layer native.Layer
	// Driver feeds the default software layer. Nil selects the null driver.
	Driver       output.Driver
	SampleRate   int
	BufferFrames int

	// Device is the preferred output device, "" for the system default
	Device             string
	TickInterval       time.Duration
	DevicePollInterval time.Duration

	Decoders *decode.Registry
	// Clock drives virtual tracks and device polling; defaults to time.Now
	Clock func() time.Time
}

type store interface {
	Dispose() error
}

// Engine is the root of a mixer graph. Callers on any goroutine mutate the
// graph through components; the changes are applied by Tick.
type Engine struct {
	cfg      Config
	layer    native.Layer
	cmds     *queue.Commands
	decoders *decode.Registry
	clock    func() time.Time
	master   *Mixer
	device   *DeviceManager

	// audio goroutine only
	components []tickable
	mixers     []*Mixer

	storesMu sync.Mutex
	stores   []store

	running   atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEngine creates an engine and opens the configured device. A device that
// cannot be opened leaves the engine in DeviceLost, retried on later ticks.
func NewEngine(cfg Config) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DevicePollInterval <= 0 {
		cfg.DevicePollInterval = DefaultDevicePollInterval
	}
	if cfg.Decoders == nil {
		cfg.Decoders = decode.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Layer == nil {
		driver := cfg.Driver
		if driver == nil {
			driver = output.NewNullDriver()
		}
		cfg.Layer = native.NewSoftware(native.Config{
			Driver:       driver,
			SampleRate:   cfg.SampleRate,
			BufferFrames: cfg.BufferFrames,
		})
	}

	e := &Engine{
		cfg:      cfg,
		layer:    cfg.Layer,
		cmds:     queue.NewCommands(),
		decoders: cfg.Decoders,
		clock:    cfg.Clock,
	}
	e.device = newDeviceManager(e, cfg.Device, cfg.DevicePollInterval)
	e.master = newMixer(e, "master", true)
	e.components = append(e.components, e.master)
	e.mixers = append(e.mixers, e.master)

	e.device.reinit(e.now())
	return e
}

func (e *Engine) now() time.Time { return e.clock() }

// Start runs the audio goroutine until ctx is cancelled or Close is called
func (e *Engine) Start(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick()
			}
		}
	}()
	logging.Infof("Audio engine started (tick %v)", e.cfg.TickInterval)
}

// Tick runs one iteration of the audio goroutine. Tests call it directly
// instead of Start.
func (e *Engine) Tick() {
	e.cmds.Drain()
	e.device.check(e.now())

	live := e.components[:0]
	for _, c := range e.components {
		if c.IsDisposed() {
			continue
		}
		c.update()
		live = append(live, c)
	}
	clear(e.components[len(live):])
	e.components = live
}

// Enqueue schedules a on the audio goroutine
func (e *Engine) Enqueue(a queue.Action) { e.cmds.Enqueue(a) }

// RunSync schedules a and waits for it to run. It needs a running engine or
// another goroutine calling Tick.
func (e *Engine) RunSync(ctx context.Context, a queue.Action) error {
	return e.cmds.RunSync(ctx, a)
}

func (e *Engine) Commands() *queue.Commands { return e.cmds }

func (e *Engine) Layer() native.Layer { return e.layer }

func (e *Engine) Master() *Mixer { return e.master }

func (e *Engine) Devices() *DeviceManager { return e.device }

// NewMixer creates a mixer nested in the master mixer
func (e *Engine) NewMixer(name string) *Mixer {
	mx := newMixer(e, name, false)
	e.cmds.Enqueue(func() {
		e.components = append(e.components, mx)
		e.mixers = append(e.mixers, mx)
		if e.device.State() == DeviceActive {
			mx.createBus()
		}
		e.master.addMember(mx)
	})
	return mx
}

// NewTrackStore creates a store whose tracks join mixer, or the master mixer when nil
func (e *Engine) NewTrackStore(p resources.Provider, mixer *Mixer) *TrackStore {
	if mixer == nil {
		mixer = e.master
	}
	s := &TrackStore{loader: newLoader(e, "tracks", p, mixer)}
	e.addStore(s)
	return s
}

// NewSampleStore creates a store whose samples play into mixer, or the master mixer when nil
func (e *Engine) NewSampleStore(p resources.Provider, mixer *Mixer) *SampleStore {
	if mixer == nil {
		mixer = e.master
	}
	s := &SampleStore{loader: newLoader(e, "samples", p, mixer), samples: make(map[string]*Sample)}
	s.concurrency.Store(DefaultPlaybackConcurrency)
	e.addStore(s)
	return s
}

func (e *Engine) addStore(s store) {
	e.storesMu.Lock()
	e.stores = append(e.stores, s)
	e.storesMu.Unlock()
}

func (e *Engine) forgetStore(s store) {
	e.storesMu.Lock()
	defer e.storesMu.Unlock()
	for i, x := range e.stores {
		if x == s {
			e.stores = append(e.stores[:i], e.stores[i+1:]...)
			return
		}
	}
}

// register adds a component to the per-tick update list
func (e *Engine) register(t tickable) {
	e.cmds.Enqueue(func() {
		if !t.IsDisposed() {
			e.components = append(e.components, t)
		}
	})
}

func (e *Engine) deviceLost() {
	for _, c := range e.components {
		c.deviceLost()
	}
}

// deviceRestored rebuilds buses top-down before channels replay
func (e *Engine) deviceRestored() {
	live := e.mixers[:0]
	for _, mx := range e.mixers {
		if !mx.IsDisposed() {
			live = append(live, mx)
		}
	}
	clear(e.mixers[len(live):])
	e.mixers = live

	e.master.rebuild(0)
	for _, mx := range e.mixers {
		if mx.Mixer() == nil && !mx.master {
			mx.rebuild(0)
		}
	}
	for _, c := range e.components {
		if !c.IsDisposed() {
			c.deviceRestored()
		}
	}
}

// Close disposes every store, stops the audio goroutine and closes the layer
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.storesMu.Lock()
		stores := append([]store(nil), e.stores...)
		e.storesMu.Unlock()

		var g errgroup.Group
		for _, s := range stores {
			g.Go(s.Dispose)
		}
		_ = g.Wait()

		if e.cancel != nil {
			e.cancel()
		}
		e.wg.Wait()

		_ = e.master.dispose()
		e.cmds.Drain()
		err = e.layer.Close()
		logging.Infof("Audio engine closed")
	})
	return err
}
