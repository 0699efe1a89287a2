// ABOUTME: Recording fake of the native layer for engine tests
// ABOUTME: Tracks voices, buses, attributes and device state without rendering audio
package mixgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/effect"
	"github.com/Sendspin/mixgraph/pkg/audio/native"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
)

type fakeVoice struct {
	buffer native.Handle
	pcm    *audio.PCM
	bus    native.Handle
	attrs  map[native.Attribute]float64
	loop   bool
	active bool
	pos    time.Duration
}

type fakeBus struct {
	parent  native.Handle
	effects []effect.Effect
}

type fakeLayer struct {
	mu sync.Mutex

	next    native.Handle
	buffers map[native.Handle]*audio.PCM
	voices  map[native.Handle]*fakeVoice
	buses   map[native.Handle]*fakeBus
	master  native.Handle

	devices  []output.Device
	device   string
	lost     bool
	failInit map[string]bool
	inits    int
	created  int
}

func newFakeLayer() *fakeLayer {
	return &fakeLayer{
		devices:  []output.Device{{Name: "speakers", Default: true}, {Name: "headphones"}},
		failInit: make(map[string]bool),
	}
}

func (f *fakeLayer) alloc() native.Handle {
	f.next++
	return f.next
}

func (f *fakeLayer) LoadPCM(pcm *audio.PCM) (native.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buffers == nil {
		return 0, native.ErrNotInitialized
	}
	h := f.alloc()
	f.buffers[h] = pcm
	return h, nil
}

func (f *fakeLayer) FreeBuffer(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buffers[h]; !ok {
		return native.ErrInvalidHandle
	}
	delete(f.buffers, h)
	return nil
}

func (f *fakeLayer) CreateVoice(buffer native.Handle) (native.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pcm, ok := f.buffers[buffer]
	if !ok {
		return 0, native.ErrInvalidHandle
	}
	h := f.alloc()
	f.created++
	f.voices[h] = &fakeVoice{
		buffer: buffer,
		pcm:    pcm,
		attrs: map[native.Attribute]float64{
			native.AttrVolume:    1,
			native.AttrFrequency: float64(pcm.Format.SampleRate),
		},
	}
	return h, nil
}

func (f *fakeLayer) CreateBus() (native.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buses == nil {
		return 0, native.ErrNotInitialized
	}
	h := f.alloc()
	f.buses[h] = &fakeBus{}
	return h, nil
}

func (f *fakeLayer) Master() native.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.master
}

func (f *fakeLayer) Route(h, bus native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.buses[bus]; !ok {
		return native.ErrInvalidHandle
	}
	if v, ok := f.voices[h]; ok {
		v.bus = bus
		return nil
	}
	if b, ok := f.buses[h]; ok {
		b.parent = bus
		return nil
	}
	return native.ErrInvalidHandle
}

func (f *fakeLayer) Unroute(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.voices[h]; ok {
		v.bus = 0
		return nil
	}
	if b, ok := f.buses[h]; ok {
		b.parent = 0
		return nil
	}
	return native.ErrInvalidHandle
}

func (f *fakeLayer) SetAttribute(h native.Handle, attr native.Attribute, value float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return native.ErrInvalidHandle
	}
	v.attrs[attr] = value
	return nil
}

func (f *fakeLayer) Attribute(h native.Handle, attr native.Attribute) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return 0, native.ErrInvalidHandle
	}
	return v.attrs[attr], nil
}

func (f *fakeLayer) SetLoop(h native.Handle, loop bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return native.ErrInvalidHandle
	}
	v.loop = loop
	return nil
}

func (f *fakeLayer) Play(h native.Handle, restart bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return native.ErrInvalidHandle
	}
	if restart {
		v.pos = 0
	}
	v.active = true
	return nil
}

func (f *fakeLayer) Pause(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return native.ErrInvalidHandle
	}
	v.active = false
	return nil
}

func (f *fakeLayer) Stop(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.voices[h]; !ok {
		return native.ErrInvalidHandle
	}
	delete(f.voices, h)
	return nil
}

func (f *fakeLayer) Free(h native.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.voices[h]; ok {
		delete(f.voices, h)
		return nil
	}
	if _, ok := f.buses[h]; ok && h != f.master {
		delete(f.buses, h)
		return nil
	}
	return native.ErrInvalidHandle
}

func (f *fakeLayer) IsActive(h native.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.voices[h]; ok {
		return v.active
	}
	_, ok := f.buses[h]
	return ok
}

func (f *fakeLayer) Position(h native.Handle) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return 0, native.ErrInvalidHandle
	}
	return v.pos, nil
}

func (f *fakeLayer) SetPosition(h native.Handle, pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.voices[h]
	if !ok {
		return native.ErrInvalidHandle
	}
	v.pos = pos
	return nil
}

func (f *fakeLayer) Level(native.Handle) native.Level { return native.Level{} }

func (f *fakeLayer) SetEffects(bus native.Handle, effects []effect.Effect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[bus]
	if !ok {
		return native.ErrInvalidHandle
	}
	b.effects = append([]effect.Effect(nil), effects...)
	return nil
}

func (f *fakeLayer) Devices() ([]output.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]output.Device(nil), f.devices...), nil
}

func (f *fakeLayer) Init(device string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	f.buffers, f.voices, f.buses, f.master = nil, nil, nil, 0
	if f.failInit[device] {
		return fmt.Errorf("open %q: %w", device, output.ErrDeviceNotFound)
	}
	f.buffers = make(map[native.Handle]*audio.PCM)
	f.voices = make(map[native.Handle]*fakeVoice)
	f.buses = make(map[native.Handle]*fakeBus)
	f.master = f.alloc()
	f.buses[f.master] = &fakeBus{}
	f.device = device
	f.lost = false
	return nil
}

func (f *fakeLayer) Device() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.device
}

func (f *fakeLayer) Lost() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lost
}

func (f *fakeLayer) Close() error { return nil }

// test controls

func (f *fakeLayer) voice(h native.Handle) *fakeVoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voices[h]
}

func (f *fakeLayer) bus(h native.Handle) *fakeBus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buses[h]
}

// finish plays h to its end
func (f *fakeLayer) finish(h native.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.voices[h]; ok {
		v.active = false
		v.pos = v.pcm.Duration()
	}
}

func (f *fakeLayer) setLost() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost = true
}

func (f *fakeLayer) setDevices(devices ...output.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

func (f *fakeLayer) voiceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.voices)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeLayer, *fakeClock) {
	t.Helper()
	layer := newFakeLayer()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	e := NewEngine(Config{Layer: layer, Clock: clock.Now, DevicePollInterval: time.Second})
	t.Cleanup(func() { e.Close() })
	return e, layer, clock
}

// pcmOf builds a mono buffer of the given length at 1 kHz
func pcmOf(length time.Duration) *audio.PCM {
	frames := int(length / time.Millisecond)
	return &audio.PCM{
		Format:  audio.Format{SampleRate: 1000, Channels: 1},
		Samples: make([]float32, frames),
	}
}

func wavBytes(t *testing.T, sampleRate, frames int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, frames)
	for i := range data {
		data[i] = (i % 64) * 256
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return raw
}
