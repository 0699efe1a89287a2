// ABOUTME: Software implementation of the native audio layer
// ABOUTME: Mixes voices through a bus tree on a render goroutine feeding an output driver
package native

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/effect"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
	"github.com/Sendspin/mixgraph/pkg/audio/resample"
)

// outputChannels is fixed; mono buffers are duplicated and wider ones use their first two channels
const outputChannels = 2

// Config configures the software layer
type Config struct {
	Driver       output.Driver
	SampleRate   int
	BufferFrames int
	// Manual disables the render goroutine; the caller drives Render instead
	Manual bool
}

type voice struct {
	pcm     *audio.PCM
	rs      *resample.Resampler
	bus     Handle
	volume  float64
	balance float64
	freq    float64
	loop    bool
	playing bool
	scratch []float32
}

type bus struct {
	parent   Handle
	volume   float64
	balance  float64
	freq     float64
	effects  []effect.Effect
	voices   map[Handle]struct{}
	children map[Handle]struct{}
	mix      []float32
}

func newBus() *bus {
	return &bus{
		volume:   1,
		freq:     1,
		voices:   make(map[Handle]struct{}),
		children: make(map[Handle]struct{}),
	}
}

// Software is a Layer that mixes in Go
type Software struct {
	cfg Config

	mu          sync.Mutex
	next        Handle
	buffers     map[Handle]*audio.PCM
	voices      map[Handle]*voice
	buses       map[Handle]*bus
	levels      map[Handle]Level
	master      Handle
	device      string
	initialized bool

	lost   atomic.Bool
	out    output.Output
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSoftware creates an uninitialized software layer; call Init to open a device
func NewSoftware(cfg Config) *Software {
	if cfg.Driver == nil {
		cfg.Driver = output.NewNullDriver()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = 512
	}
	s := &Software{cfg: cfg}
	s.reset()
	return s
}

func (s *Software) reset() {
	s.buffers = make(map[Handle]*audio.PCM)
	s.voices = make(map[Handle]*voice)
	s.buses = make(map[Handle]*bus)
	s.levels = make(map[Handle]Level)
	s.master = 0
}

func (s *Software) allocate() Handle {
	s.next++
	return s.next
}

// SampleRate returns the mix rate
func (s *Software) SampleRate() int {
	return s.cfg.SampleRate
}

func (s *Software) Devices() ([]output.Device, error) {
	return s.cfg.Driver.Devices()
}

// Init closes the current device, invalidates every handle and opens device
func (s *Software) Init(device string) error {
	s.stopRender()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out != nil {
		if err := s.out.Close(); err != nil {
			logging.Warnf("Closing output %s: %v", s.device, err)
		}
		s.out = nil
	}
	s.reset()
	s.initialized = false

	name := device
	if devices, err := s.cfg.Driver.Devices(); err == nil {
		if d, ok := output.FindDevice(devices, device); ok {
			name = d.Name
		}
	}

	out, err := s.cfg.Driver.New(device)
	if err != nil {
		return fmt.Errorf("open device %q: %w", device, err)
	}
	if err := out.Open(s.cfg.SampleRate, outputChannels); err != nil {
		return fmt.Errorf("open device %q: %w", device, err)
	}

	s.out = out
	s.device = name
	s.master = s.allocate()
	s.buses[s.master] = newBus()
	s.lost.Store(false)
	s.initialized = true

	if !s.cfg.Manual {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go s.run(ctx, out)
	}

	logging.Infof("Audio device %q initialized (%d Hz, %d frames per buffer)", name, s.cfg.SampleRate, s.cfg.BufferFrames)
	return nil
}

func (s *Software) stopRender() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
}

func (s *Software) run(ctx context.Context, out output.Output) {
	defer s.wg.Done()

	buf := make([]float32, s.cfg.BufferFrames*outputChannels)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.Render(buf)
		if err := out.Write(buf); err != nil {
			logging.Warnf("Audio device write failed, marking device lost: %v", err)
			s.lost.Store(true)
			return
		}
	}
}

func (s *Software) Device() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func (s *Software) Lost() bool {
	return s.lost.Load()
}

func (s *Software) Close() error {
	s.stopRender()

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.out != nil {
		err = s.out.Close()
		s.out = nil
	}
	s.reset()
	s.initialized = false
	return err
}

func (s *Software) Master() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.master
}

func (s *Software) LoadPCM(pcm *audio.PCM) (Handle, error) {
	if pcm == nil || pcm.Format.Channels <= 0 || pcm.Format.SampleRate <= 0 {
		return 0, errors.New("native: invalid pcm buffer")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	h := s.allocate()
	s.buffers[h] = pcm
	return h, nil
}

func (s *Software) FreeBuffer(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buffers[h]; !ok {
		return ErrInvalidHandle
	}
	delete(s.buffers, h)
	return nil
}

func (s *Software) CreateVoice(buffer Handle) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	pcm, ok := s.buffers[buffer]
	if !ok {
		return 0, ErrInvalidHandle
	}

	h := s.allocate()
	s.voices[h] = &voice{
		pcm:    pcm,
		rs:     resample.New(pcm.Format.SampleRate, s.cfg.SampleRate, pcm.Format.Channels),
		volume: 1,
		freq:   float64(pcm.Format.SampleRate),
	}
	return h, nil
}

func (s *Software) CreateBus() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0, ErrNotInitialized
	}
	h := s.allocate()
	s.buses[h] = newBus()
	return h, nil
}

func (s *Software) Route(h, parent Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.buses[parent]
	if !ok {
		return ErrInvalidHandle
	}

	if v, ok := s.voices[h]; ok {
		s.unrouteLocked(h)
		v.bus = parent
		p.voices[h] = struct{}{}
		return nil
	}

	b, ok := s.buses[h]
	if !ok || h == s.master {
		return ErrInvalidHandle
	}
	for anc := parent; anc != 0; anc = s.buses[anc].parent {
		if anc == h {
			return fmt.Errorf("native: routing bus %d into %d would create a cycle", h, parent)
		}
	}
	s.unrouteLocked(h)
	b.parent = parent
	p.children[h] = struct{}{}
	return nil
}

func (s *Software) Unroute(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.voices[h]; !ok {
		if _, ok := s.buses[h]; !ok {
			return ErrInvalidHandle
		}
	}
	s.unrouteLocked(h)
	return nil
}

func (s *Software) unrouteLocked(h Handle) {
	if v, ok := s.voices[h]; ok {
		if p, ok := s.buses[v.bus]; ok {
			delete(p.voices, h)
		}
		v.bus = 0
		return
	}
	if b, ok := s.buses[h]; ok {
		if p, ok := s.buses[b.parent]; ok {
			delete(p.children, h)
		}
		b.parent = 0
	}
}

func (s *Software) SetAttribute(h Handle, attr Attribute, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.voices[h]; ok {
		switch attr {
		case AttrVolume:
			v.volume = value
		case AttrBalance:
			v.balance = value
		case AttrFrequency:
			v.freq = value
			v.rs.SetRates(value, s.cfg.SampleRate)
		}
		return nil
	}
	if b, ok := s.buses[h]; ok {
		switch attr {
		case AttrVolume:
			b.volume = value
		case AttrBalance:
			b.balance = value
		case AttrFrequency:
			b.freq = value
		}
		return nil
	}
	return ErrInvalidHandle
}

func (s *Software) Attribute(h Handle, attr Attribute) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.voices[h]; ok {
		switch attr {
		case AttrVolume:
			return v.volume, nil
		case AttrBalance:
			return v.balance, nil
		case AttrFrequency:
			return v.freq, nil
		}
	}
	if b, ok := s.buses[h]; ok {
		switch attr {
		case AttrVolume:
			return b.volume, nil
		case AttrBalance:
			return b.balance, nil
		case AttrFrequency:
			return b.freq, nil
		}
	}
	return 0, ErrInvalidHandle
}

func (s *Software) SetLoop(h Handle, loop bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.voices[h]
	if !ok {
		return ErrInvalidHandle
	}
	v.loop = loop
	return nil
}

func (s *Software) Play(h Handle, restart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buses[h]; ok {
		return nil
	}
	v, ok := s.voices[h]
	if !ok {
		return ErrInvalidHandle
	}
	if restart || v.rs.Position() >= float64(v.pcm.Frames()) {
		v.rs.Reset()
	}
	v.playing = true
	return nil
}

func (s *Software) Pause(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buses[h]; ok {
		return nil
	}
	v, ok := s.voices[h]
	if !ok {
		return ErrInvalidHandle
	}
	v.playing = false
	return nil
}

func (s *Software) Stop(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buses[h]; ok {
		return nil
	}
	if _, ok := s.voices[h]; !ok {
		return ErrInvalidHandle
	}
	s.freeLocked(h)
	return nil
}

func (s *Software) Free(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h == s.master {
		return fmt.Errorf("native: cannot free the master bus")
	}
	if _, ok := s.buffers[h]; ok {
		delete(s.buffers, h)
		return nil
	}
	if _, ok := s.voices[h]; !ok {
		if _, ok := s.buses[h]; !ok {
			return ErrInvalidHandle
		}
	}
	s.freeLocked(h)
	return nil
}

func (s *Software) freeLocked(h Handle) {
	s.unrouteLocked(h)
	if b, ok := s.buses[h]; ok {
		for vh := range b.voices {
			if v, ok := s.voices[vh]; ok {
				v.bus = 0
			}
		}
		for ch := range b.children {
			if c, ok := s.buses[ch]; ok {
				c.parent = 0
			}
		}
		delete(s.buses, h)
	}
	delete(s.voices, h)
	delete(s.levels, h)
}

func (s *Software) IsActive(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.voices[h]; ok {
		return v.playing
	}
	_, ok := s.buses[h]
	return ok
}

func (s *Software) Position(h Handle) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.voices[h]
	if !ok {
		return 0, ErrInvalidHandle
	}
	frames := v.rs.Position()
	if max := float64(v.pcm.Frames()); frames > max {
		frames = max
	}
	return time.Duration(frames * float64(time.Second) / float64(v.pcm.Format.SampleRate)), nil
}

func (s *Software) SetPosition(h Handle, pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.voices[h]
	if !ok {
		return ErrInvalidHandle
	}
	frames := pos.Seconds() * float64(v.pcm.Format.SampleRate)
	if max := float64(v.pcm.Frames()); frames > max {
		frames = max
	}
	v.rs.SetPosition(frames)
	return nil
}

func (s *Software) Level(h Handle) Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels[h]
}

func (s *Software) SetEffects(h Handle, effects []effect.Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buses[h]
	if !ok {
		return ErrInvalidHandle
	}
	b.effects = append([]effect.Effect(nil), effects...)
	return nil
}

// Render mixes the next len(dst)/2 stereo frames into dst
func (s *Software) Render(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(dst) / outputChannels
	if !s.initialized || s.master == 0 {
		clear(dst)
		return
	}

	mix := s.renderBus(s.master, frames)
	for i := range dst {
		dst[i] = audio.Clip(mix[i])
	}
}

func (s *Software) renderBus(h Handle, frames int) []float32 {
	b := s.buses[h]
	n := frames * outputChannels
	if cap(b.mix) < n {
		b.mix = make([]float32, n)
	}
	mix := b.mix[:n]
	clear(mix)

	for vh := range b.voices {
		if v, ok := s.voices[vh]; ok && v.playing {
			s.renderVoice(vh, v, frames, mix)
		}
	}

	for ch := range b.children {
		child, ok := s.buses[ch]
		if !ok {
			continue
		}
		sub := s.renderBus(ch, frames)
		lg, rg := gains(child.volume, child.balance)
		for i := 0; i < frames; i++ {
			mix[2*i] += sub[2*i] * lg
			mix[2*i+1] += sub[2*i+1] * rg
		}
	}

	for _, e := range b.effects {
		e.Process(mix, outputChannels, s.cfg.SampleRate)
	}

	s.levels[h] = peak(mix)
	return mix
}

func (s *Software) renderVoice(h Handle, v *voice, frames int, mix []float32) {
	srcCh := v.pcm.Format.Channels
	need := frames * srcCh
	if cap(v.scratch) < need {
		v.scratch = make([]float32, need)
	}
	buf := v.scratch[:need]

	n, ended := v.rs.Read(v.pcm.Samples, buf, v.loop)
	read := n / srcCh

	lg, rg := gains(v.volume, v.balance)
	var lvl Level
	for i := 0; i < read; i++ {
		l := buf[i*srcCh]
		r := l
		if srcCh > 1 {
			r = buf[i*srcCh+1]
		}
		l *= lg
		r *= rg
		mix[2*i] += l
		mix[2*i+1] += r
		lvl.Left = max(lvl.Left, abs32(l))
		lvl.Right = max(lvl.Right, abs32(r))
	}
	s.levels[h] = lvl

	if ended {
		v.playing = false
	}
}

// gains maps volume and balance to left/right factors with a linear pan law
func gains(volume, balance float64) (float32, float32) {
	l := min(1, 1-balance)
	r := min(1, 1+balance)
	return float32(volume * l), float32(volume * r)
}

func peak(buf []float32) Level {
	var lvl Level
	for i := 0; i+1 < len(buf); i += 2 {
		lvl.Left = max(lvl.Left, abs32(buf[i]))
		lvl.Right = max(lvl.Right, abs32(buf[i+1]))
	}
	return lvl
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
