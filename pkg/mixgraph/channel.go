// ABOUTME: Shared channel state machine for tracks and sample instances
// ABOUTME: Eager Playing flag, deferred native commands and zero-frequency pausing
package mixgraph

import (
	"sync/atomic"

	"github.com/Sendspin/mixgraph/pkg/audio/native"
)

// Native frequency limits in Hz
const (
	MinFrequencyHz = 100
	MaxFrequencyHz = 100000
)

// PlaybackState is the logical state of a channel
type PlaybackState int32

const (
	StateUnloaded PlaybackState = iota
	StateLoaded
	StatePlaying
	StatePaused
	StateStopped
)

func (s PlaybackState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Channel is one playable or time-tracked unit of audio
type Channel interface {
	Member
	Play(restart bool) error
	Stop() error
	Pause() error
	// Playing is true from the moment Play returns until the audio goroutine
	// observes that playback has ended or been stopped
	Playing() bool
	State() PlaybackState
	IsLoaded() bool

	Volume() float64
	Balance() float64
	Frequency() float64
	Looping() bool
	SetVolume(v float64) error
	SetBalance(v float64) error
	SetFrequency(v float64) error
	SetLooping(loop bool) error

	Dispose() error
}

// voiceOpener is the variant-specific part of the state machine: it creates
// a fresh native voice and retires the previous one.
type voiceOpener interface {
	openVoice(prev native.Handle, restart bool) (native.Handle, error)
}

// variantReleaser lets a variant free extra native resources on disposal
type variantReleaser interface {
	releaseVariant()
}

type channel struct {
	component
	adjustments

	self   Channel
	opener voiceOpener
	mixer  atomic.Pointer[Mixer]
	handle atomic.Uint64

	// written on the audio goroutine only
	initialFrequency float64

	pausedZero atomic.Bool
	playing    atomic.Bool
	pending    atomic.Int32
	state      atomic.Int32
}

func (c *channel) initChannel(e *Engine, kind string, self Channel, opener voiceOpener) {
	c.component = newComponent(e, kind)
	c.adjustments.init()
	c.self = self
	c.opener = opener
}

func (c *channel) Handle() native.Handle { return native.Handle(c.handle.Load()) }

func (c *channel) Mixer() *Mixer { return c.mixer.Load() }

func (c *channel) Playing() bool { return c.playing.Load() }

func (c *channel) State() PlaybackState { return PlaybackState(c.state.Load()) }

func (c *channel) Looping() bool { return c.looping.Load() }

// Play opens a new native voice and starts it. On an unloaded channel it does
// nothing and Playing stays false.
func (c *channel) Play(restart bool) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	if !c.IsLoaded() {
		c.playing.Store(false)
		return nil
	}

	start := c.AggregateFrequency() != 0
	c.pausedZero.Store(!start)
	c.playing.Store(true)
	c.state.Store(int32(StatePlaying))

	// set before enqueue so a failed startVoice has the last word
	c.pending.Add(1)
	c.enqueue(func() {
		defer c.pending.Add(-1)
		c.startVoice(restart, start)
	})
	return nil
}

// startVoice runs on the audio goroutine
func (c *channel) startVoice(restart, start bool) {
	if c.IsDisposed() {
		return
	}
	l := c.layer()

	prev := c.Handle()
	if prev != 0 {
		// the replaced voice must not loop forever
		_ = l.SetLoop(prev, false)
	}

	h, err := c.opener.openVoice(prev, restart)
	if err != nil {
		c.log.Warnf("Failed to open voice: %v", err)
		c.handle.Store(0)
		return
	}
	c.handle.Store(uint64(h))

	if m := c.Mixer(); m != nil && m.Handle() != 0 {
		if err := l.Route(h, m.Handle()); err != nil {
			c.log.Warnf("Failed to route voice: %v", err)
		}
	}
	if f, err := l.Attribute(h, native.AttrFrequency); err == nil {
		c.initialFrequency = f
	}
	_ = l.SetLoop(h, c.Looping())
	c.onStateChanged()

	if start && !c.pausedZero.Load() {
		if err := l.Play(h, restart); err != nil {
			c.log.Warnf("Failed to start voice: %v", err)
		}
	}
}

// onStateChanged pushes aggregates to the native voice and applies the
// zero-frequency pause. Runs on the audio goroutine.
func (c *channel) onStateChanged() {
	c.recompute(c.Mixer())

	h := c.Handle()
	if h == 0 {
		return
	}
	l := c.layer()
	_ = l.SetAttribute(h, native.AttrVolume, c.AggregateVolume())
	_ = l.SetAttribute(h, native.AttrBalance, c.AggregateBalance())
	_ = l.SetAttribute(h, native.AttrFrequency, c.nativeFrequency())

	if c.State() != StatePlaying {
		return
	}
	agg := c.AggregateFrequency()
	if agg == 0 && !c.pausedZero.Load() {
		c.pausedZero.Store(true)
		_ = l.Pause(h)
	} else if agg > 0 && c.pausedZero.Load() {
		c.pausedZero.Store(false)
		_ = l.Play(h, false)
	}
}

func (c *channel) nativeFrequency() float64 {
	return clamp(c.initialFrequency*c.AggregateFrequency(), MinFrequencyHz, MaxFrequencyHz)
}

// Stop halts playback and releases the native voice
func (c *channel) Stop() error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	if c.Handle() == 0 && c.pending.Load() == 0 {
		return nil
	}
	c.playing.Store(false)
	c.enqueue(c.stopVoice)
	return nil
}

func (c *channel) stopVoice() {
	c.pausedZero.Store(false)
	if h := c.Handle(); h != 0 {
		if s, ok := c.opener.(interface{ saveVoice(native.Handle) }); ok {
			s.saveVoice(h)
		}
		_ = c.layer().Stop(h)
		c.handle.Store(0)
	}
	c.state.Store(int32(StateStopped))
	c.playing.Store(false)
}

// Pause suspends playback, keeping the native voice
func (c *channel) Pause() error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	if c.Handle() == 0 && c.pending.Load() == 0 {
		return nil
	}
	c.playing.Store(false)
	c.enqueue(func() {
		c.pausedZero.Store(false)
		if h := c.Handle(); h != 0 {
			_ = c.layer().Pause(h)
		}
		c.state.Store(int32(StatePaused))
	})
	return nil
}

func (c *channel) SetVolume(v float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	v = clamp(v, 0, 1)
	c.enqueue(func() {
		c.volume.Store(v)
		c.onStateChanged()
	})
	return nil
}

func (c *channel) SetBalance(v float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	v = clamp(v, -1, 1)
	c.enqueue(func() {
		c.balance.Store(v)
		c.onStateChanged()
	})
	return nil
}

func (c *channel) SetFrequency(v float64) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	if v < 0 {
		v = 0
	}
	c.enqueue(func() {
		c.frequency.Store(v)
		c.onStateChanged()
	})
	return nil
}

func (c *channel) SetLooping(loop bool) error {
	if err := c.checkDisposed(); err != nil {
		return err
	}
	c.enqueue(func() {
		c.looping.Store(loop)
		if h := c.Handle(); h != 0 {
			_ = c.layer().SetLoop(h, loop)
		}
	})
	return nil
}

// Dispose removes the channel from its mixer and releases its voice. Further
// calls return ErrDisposed.
func (c *channel) Dispose() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	c.playing.Store(false)
	c.enqueue(c.release)
	return nil
}

func (c *channel) release() {
	if m := c.Mixer(); m != nil {
		m.removeMember(c.self)
	}
	if h := c.Handle(); h != 0 {
		_ = c.layer().Stop(h)
		c.handle.Store(0)
	}
	if r, ok := c.self.(variantReleaser); ok {
		r.releaseVariant()
	}
	c.state.Store(int32(StateStopped))
}

// update reconciles the eager Playing flag with the native layer
func (c *channel) update() {
	if c.pending.Load() > 0 {
		return
	}
	h := c.Handle()
	active := h != 0 && c.layer().IsActive(h)
	c.playing.Store(h != 0 && (active || c.pausedZero.Load()))
	if h != 0 && !active && !c.pausedZero.Load() && c.State() == StatePlaying {
		c.state.Store(int32(StateStopped))
	}
}

func (c *channel) deviceLost() {
	c.handle.Store(0)
}

func (c *channel) deviceRestored() {}

// Member plumbing, audio goroutine only

func (c *channel) setMixer(m *Mixer) { c.mixer.Store(m) }

func (c *channel) parentChanged() { c.onStateChanged() }

func (c *channel) routeTo(bus native.Handle) {
	if h := c.Handle(); h != 0 {
		_ = c.layer().Route(h, bus)
	}
}

func (c *channel) unroute() {
	if h := c.Handle(); h != 0 {
		_ = c.layer().Unroute(h)
	}
}
