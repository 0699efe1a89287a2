// ABOUTME: Tests for the software native layer
// ABOUTME: Renders manually to check routing, attributes, looping and device loss
package native

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/effect"
	"github.com/Sendspin/mixgraph/pkg/audio/output"
)

const testRate = 1000

func newManual(t *testing.T) *Software {
	t.Helper()
	s := NewSoftware(Config{SampleRate: testRate, BufferFrames: 8, Manual: true})
	if err := s.Init(output.DefaultDevice); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func constPCM(value float32, frames, channels int) *audio.PCM {
	samples := make([]float32, frames*channels)
	for i := range samples {
		samples[i] = value
	}
	return &audio.PCM{Format: audio.Format{SampleRate: testRate, Channels: channels}, Samples: samples}
}

func playVoice(t *testing.T, s *Software, pcm *audio.PCM, bus Handle) Handle {
	t.Helper()
	buf, err := s.LoadPCM(pcm)
	if err != nil {
		t.Fatalf("LoadPCM: %v", err)
	}
	v, err := s.CreateVoice(buf)
	if err != nil {
		t.Fatalf("CreateVoice: %v", err)
	}
	if err := s.Route(v, bus); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := s.Play(v, false); err != nil {
		t.Fatalf("Play: %v", err)
	}
	return v
}

func almost(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestRenderVolumeAndBalance(t *testing.T) {
	s := newManual(t)
	v := playVoice(t, s, constPCM(0.5, 100, 1), s.Master())

	s.SetAttribute(v, AttrVolume, 0.5)
	s.SetAttribute(v, AttrBalance, 1)

	dst := make([]float32, 8)
	s.Render(dst)
	if !almost(dst[0], 0) || !almost(dst[1], 0.25) {
		t.Fatalf("expected hard-right 0.25, got L=%v R=%v", dst[0], dst[1])
	}

	lvl := s.Level(v)
	if !almost(lvl.Right, 0.25) || lvl.Left != 0 {
		t.Fatalf("unexpected level %+v", lvl)
	}
}

func TestNestedBusAndEffects(t *testing.T) {
	s := newManual(t)
	sub, err := s.CreateBus()
	if err != nil {
		t.Fatalf("CreateBus: %v", err)
	}
	if err := s.Route(sub, s.Master()); err != nil {
		t.Fatalf("Route bus: %v", err)
	}
	playVoice(t, s, constPCM(0.4, 100, 2), sub)

	s.SetEffects(sub, []effect.Effect{effect.NewGain(0.5)})

	dst := make([]float32, 4)
	s.Render(dst)
	if !almost(dst[0], 0.2) || !almost(dst[1], 0.2) {
		t.Fatalf("expected 0.2 after gain effect, got %v", dst)
	}
	if lvl := s.Level(sub); !almost(lvl.Left, 0.2) {
		t.Fatalf("bus level %+v", lvl)
	}
}

func TestRouteRejectsCycle(t *testing.T) {
	s := newManual(t)
	a, _ := s.CreateBus()
	b, _ := s.CreateBus()
	if err := s.Route(a, s.Master()); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := s.Route(b, a); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if err := s.Route(a, b); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestVoiceEndsWithoutLoop(t *testing.T) {
	s := newManual(t)
	v := playVoice(t, s, constPCM(0.1, 4, 1), s.Master())

	dst := make([]float32, 16)
	s.Render(dst)
	if s.IsActive(v) {
		t.Fatal("voice should stop at the end of its buffer")
	}
	if dst[2*4] != 0 {
		t.Fatalf("expected silence after end, got %v", dst[2*4])
	}
	pos, err := s.Position(v)
	if err != nil || pos != 4*time.Millisecond {
		t.Fatalf("expected position 4ms, got %v %v", pos, err)
	}
}

func TestVoiceLoops(t *testing.T) {
	s := newManual(t)
	v := playVoice(t, s, constPCM(0.1, 4, 1), s.Master())
	s.SetLoop(v, true)

	dst := make([]float32, 32)
	s.Render(dst)
	if !s.IsActive(v) {
		t.Fatal("looping voice should keep playing")
	}
	if !almost(dst[30], 0.1) {
		t.Fatalf("expected audio at end of looped block, got %v", dst[30])
	}
}

func TestFrequencyControlsSpeed(t *testing.T) {
	s := newManual(t)
	v := playVoice(t, s, constPCM(0.1, 100, 1), s.Master())

	freq, err := s.Attribute(v, AttrFrequency)
	if err != nil || freq != testRate {
		t.Fatalf("initial frequency %v %v", freq, err)
	}
	s.SetAttribute(v, AttrFrequency, 2*testRate)

	s.Render(make([]float32, 20))
	pos, _ := s.Position(v)
	if pos != 20*time.Millisecond {
		t.Fatalf("expected double speed position 20ms, got %v", pos)
	}
}

func TestStopFreesVoice(t *testing.T) {
	s := newManual(t)
	v := playVoice(t, s, constPCM(0.1, 100, 1), s.Master())

	if err := s.Stop(v); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.IsActive(v) {
		t.Fatal("stopped voice is active")
	}
	if err := s.Play(v, false); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("expected ErrInvalidHandle, got %v", err)
	}
}

func TestInitInvalidatesHandles(t *testing.T) {
	s := newManual(t)
	oldMaster := s.Master()
	v := playVoice(t, s, constPCM(0.1, 100, 1), oldMaster)

	if err := s.Init(output.DefaultDevice); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	if s.Master() == oldMaster {
		t.Fatal("master handle reused after re-init")
	}
	if s.IsActive(v) {
		t.Fatal("voice survived re-init")
	}
	if _, err := s.LoadPCM(constPCM(0, 1, 1)); err != nil {
		t.Fatalf("LoadPCM after re-init: %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	s := NewSoftware(Config{Manual: true})
	if _, err := s.LoadPCM(constPCM(0, 1, 1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	dst := []float32{1, 1}
	s.Render(dst)
	if dst[0] != 0 || dst[1] != 0 {
		t.Fatal("uninitialized render should be silent")
	}
}

func TestDeviceLossDetected(t *testing.T) {
	drv := output.NewNullDriver()
	drv.SetRealtime(false)
	s := NewSoftware(Config{Driver: drv, SampleRate: testRate, BufferFrames: 8})
	if err := s.Init(output.DefaultDevice); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Close()

	if s.Device() != "null" {
		t.Fatalf("expected device null, got %q", s.Device())
	}

	drv.Fail("null")
	deadline := time.Now().Add(2 * time.Second)
	for !s.Lost() {
		if time.Now().After(deadline) {
			t.Fatal("device loss was not detected")
		}
		time.Sleep(time.Millisecond)
	}
}
