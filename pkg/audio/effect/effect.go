// ABOUTME: Effect processors applied to a mixer's summed signal
// ABOUTME: Gain, one-pole low-pass and feedback echo
package effect

import (
	"math"
	"sync"
	"sync/atomic"
)

// Effect processes interleaved float32 audio in place.
// Process is only called from the render goroutine; parameter setters may be
// called from anywhere.
type Effect interface {
	Name() string
	Process(buf []float32, channels, sampleRate int)
	Reset()
}

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

// Gain scales the signal by a linear factor
type Gain struct {
	gain atomicFloat
}

// NewGain creates a gain stage. Negative factors are clamped to 0.
func NewGain(factor float64) *Gain {
	g := &Gain{}
	g.SetGain(factor)
	return g
}

func (g *Gain) Name() string { return "gain" }

func (g *Gain) SetGain(factor float64) { g.gain.Store(math.Max(0, factor)) }

func (g *Gain) Gain() float64 { return g.gain.Load() }

func (g *Gain) Process(buf []float32, channels, sampleRate int) {
	factor := float32(g.gain.Load())
	for i := range buf {
		buf[i] *= factor
	}
}

func (g *Gain) Reset() {}

// LowPass is a one-pole low-pass filter
type LowPass struct {
	cutoff atomicFloat
	mu     sync.Mutex
	state  []float32
}

// NewLowPass creates a filter with the given cutoff in Hz
func NewLowPass(cutoffHz float64) *LowPass {
	lp := &LowPass{}
	lp.SetCutoff(cutoffHz)
	return lp
}

func (lp *LowPass) Name() string { return "lowpass" }

func (lp *LowPass) SetCutoff(hz float64) { lp.cutoff.Store(clamp(hz, 10, 22000)) }

func (lp *LowPass) Cutoff() float64 { return lp.cutoff.Load() }

func (lp *LowPass) Process(buf []float32, channels, sampleRate int) {
	if channels <= 0 || sampleRate <= 0 {
		return
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if len(lp.state) != channels {
		lp.state = make([]float32, channels)
	}
	alpha := float32(1 - math.Exp(-2*math.Pi*lp.cutoff.Load()/float64(sampleRate)))
	for i := 0; i+channels <= len(buf); i += channels {
		for ch := 0; ch < channels; ch++ {
			lp.state[ch] += alpha * (buf[i+ch] - lp.state[ch])
			buf[i+ch] = lp.state[ch]
		}
	}
}

func (lp *LowPass) Reset() {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	for i := range lp.state {
		lp.state[i] = 0
	}
}

// Echo mixes a delayed copy of the signal back with feedback
type Echo struct {
	delay    atomicFloat // seconds
	feedback atomicFloat
	mix      atomicFloat

	mu   sync.Mutex
	line []float32
	pos  int
}

// NewEcho creates an echo with delay in seconds, feedback and wet mix in [0, 1)
func NewEcho(delay, feedback, mix float64) *Echo {
	e := &Echo{}
	e.delay.Store(clamp(delay, 0.001, 5))
	e.feedback.Store(clamp(feedback, 0, 0.95))
	e.mix.Store(clamp(mix, 0, 1))
	return e
}

func (e *Echo) Name() string { return "echo" }

func (e *Echo) SetFeedback(v float64) { e.feedback.Store(clamp(v, 0, 0.95)) }

func (e *Echo) SetMix(v float64) { e.mix.Store(clamp(v, 0, 1)) }

func (e *Echo) Process(buf []float32, channels, sampleRate int) {
	if channels <= 0 || sampleRate <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	size := int(e.delay.Load()*float64(sampleRate)) * channels
	if size <= 0 {
		return
	}
	if len(e.line) != size {
		e.line = make([]float32, size)
		e.pos = 0
	}

	feedback := float32(e.feedback.Load())
	mix := float32(e.mix.Load())
	for i := range buf {
		delayed := e.line[e.pos]
		dry := buf[i]
		e.line[e.pos] = dry + delayed*feedback
		buf[i] = dry*(1-mix) + delayed*mix
		e.pos++
		if e.pos == len(e.line) {
			e.pos = 0
		}
	}
}

func (e *Echo) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.line {
		e.line[i] = 0
	}
	e.pos = 0
}
