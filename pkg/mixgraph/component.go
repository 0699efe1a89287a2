// ABOUTME: Shared lifecycle and parameter state for engine components
// ABOUTME: Atomic own/aggregate volume, balance and frequency with lifecycle flags
package mixgraph

import (
	"math"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/pkg/audio/native"
	"github.com/Sendspin/mixgraph/pkg/audio/queue"
)

type atomicFloat struct{ bits atomic.Uint64 }

func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// component carries identity and lifecycle flags. Every mutation is enqueued
// on the engine's command queue.
type component struct {
	id       string
	kind     string
	engine   *Engine
	loaded   atomic.Bool
	disposed atomic.Bool
	log      *zap.SugaredLogger
}

func newComponent(e *Engine, kind string) component {
	id := uuid.NewString()
	return component{
		id:     id,
		kind:   kind,
		engine: e,
		log:    logging.With("component", kind, "id", id[:8]),
	}
}

// ID returns the component's unique identifier
func (c *component) ID() string { return c.id }

func (c *component) IsLoaded() bool { return c.loaded.Load() }

func (c *component) IsDisposed() bool { return c.disposed.Load() }

func (c *component) enqueue(a queue.Action) {
	c.engine.cmds.Enqueue(a)
}

func (c *component) layer() native.Layer {
	return c.engine.layer
}

func (c *component) checkDisposed() error {
	if c.disposed.Load() {
		return disposedError(c.kind, c.id)
	}
	return nil
}

// adjustments holds own and aggregate parameters. Own values are written by
// actions on the audio goroutine; all fields may be read from anywhere.
type adjustments struct {
	volume    atomicFloat
	balance   atomicFloat
	frequency atomicFloat
	looping   atomic.Bool

	aggVolume    atomicFloat
	aggBalance   atomicFloat
	aggFrequency atomicFloat
}

func (a *adjustments) init() {
	a.volume.Store(1)
	a.frequency.Store(1)
	a.aggVolume.Store(1)
	a.aggFrequency.Store(1)
}

func (a *adjustments) Volume() float64    { return a.volume.Load() }
func (a *adjustments) Balance() float64   { return a.balance.Load() }
func (a *adjustments) Frequency() float64 { return a.frequency.Load() }

// AggregateVolume is the own volume multiplied through every ancestor mixer
func (a *adjustments) AggregateVolume() float64 { return a.aggVolume.Load() }

// AggregateBalance is the own balance summed with every ancestor's, clamped to [-1, 1]
func (a *adjustments) AggregateBalance() float64 { return a.aggBalance.Load() }

// AggregateFrequency is the own frequency multiplied through every ancestor mixer
func (a *adjustments) AggregateFrequency() float64 { return a.aggFrequency.Load() }

// recompute derives the aggregates from the parent's, or from identity when detached
func (a *adjustments) recompute(parent *Mixer) {
	pv, pb, pf := 1.0, 0.0, 1.0
	if parent != nil {
		pv = parent.AggregateVolume()
		pb = parent.AggregateBalance()
		pf = parent.AggregateFrequency()
	}
	a.aggVolume.Store(a.volume.Load() * pv)
	a.aggBalance.Store(clamp(a.balance.Load()+pb, -1, 1))
	a.aggFrequency.Store(a.frequency.Load() * pf)
}

// Member is anything a Mixer can contain: playable channels and nested mixers
type Member interface {
	ID() string
	// Handle returns the native handle, 0 when none exists
	Handle() native.Handle
	Mixer() *Mixer
	IsDisposed() bool
	AggregateVolume() float64
	AggregateBalance() float64
	AggregateFrequency() float64

	// audio goroutine only
	setMixer(m *Mixer)
	parentChanged()
	routeTo(bus native.Handle)
	unroute()
}

// tickable components are updated once per engine tick and notified of device changes
type tickable interface {
	IsDisposed() bool
	update()
	deviceLost()
	deviceRestored()
}
