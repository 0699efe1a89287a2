// ABOUTME: Tests for effect processors
// ABOUTME: Checks gain scaling, filter smoothing and echo delay
package effect

import (
	"math"
	"testing"
)

func TestGain(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		want   float32
	}{
		{"unity", 1, 0.5},
		{"half", 0.5, 0.25},
		{"negative clamps to silence", -2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := []float32{0.5, 0.5}
			NewGain(tt.factor).Process(buf, 2, 48000)
			for _, s := range buf {
				if s != tt.want {
					t.Fatalf("got %v want %v", s, tt.want)
				}
			}
		})
	}
}

func TestLowPassSmoothsStep(t *testing.T) {
	lp := NewLowPass(100)
	buf := make([]float32, 64)
	for i := range buf {
		buf[i] = 1
	}
	lp.Process(buf, 1, 48000)

	if buf[0] <= 0 || buf[0] >= 1 {
		t.Fatalf("first output should be between 0 and 1, got %v", buf[0])
	}
	for i := 1; i < len(buf); i++ {
		if buf[i] < buf[i-1] {
			t.Fatalf("step response should rise monotonically, index %d", i)
		}
	}

	lp.Reset()
	again := []float32{1}
	lp.Process(again, 1, 48000)
	if math.Abs(float64(again[0]-buf[0])) > 1e-6 {
		t.Fatalf("reset should restore initial response, got %v want %v", again[0], buf[0])
	}
}

func TestLowPassCutoffClamped(t *testing.T) {
	if got := NewLowPass(1e9).Cutoff(); got != 22000 {
		t.Fatalf("expected cutoff clamp to 22000, got %v", got)
	}
}

func TestEchoDelaysSignal(t *testing.T) {
	// 1 kHz, 2 ms delay -> 2 frames
	e := NewEcho(0.002, 0, 1)
	buf := []float32{1, 0, 0, 0}
	e.Process(buf, 1, 1000)

	want := []float32{0, 0, 1, 0}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("sample %d: got %v want %v (%v)", i, buf[i], want[i], buf)
		}
	}
}

func TestEffectNames(t *testing.T) {
	effects := []Effect{NewGain(1), NewLowPass(1000), NewEcho(0.1, 0.3, 0.3)}
	want := []string{"gain", "lowpass", "echo"}
	for i, e := range effects {
		if e.Name() != want[i] {
			t.Errorf("effect %d: got %q want %q", i, e.Name(), want[i])
		}
	}
}
