// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion functions and PCM helpers
package audio

import (
	"testing"
	"time"
)

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"half", 16384, 0.5},
		{"negative half", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"full scale", 1, 32767},
		{"negative full scale", -1, -32767},
		{"clipped high", 2, 32767},
		{"clipped low", -3, -32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFromInt(t *testing.T) {
	tests := []struct {
		name     string
		sample   int
		bitDepth int
		expected float32
	}{
		{"8-bit half", 64, 8, 0.5},
		{"24-bit min", Min24Bit, 24, -1},
		{"32-bit zero", 0, 32, 0},
		{"invalid depth", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt(tt.sample, tt.bitDepth)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleToIntRoundTrip(t *testing.T) {
	for _, v := range []int{0, 1000, -1000, Max24Bit} {
		got := SampleToInt(SampleFromInt(v, 24), 24)
		if got != v {
			t.Errorf("round trip of %d gave %d", v, got)
		}
	}
}

func TestPCMDuration(t *testing.T) {
	p := &PCM{
		Format:  Format{SampleRate: 1000, Channels: 2},
		Samples: make([]float32, 4000),
	}

	if p.Frames() != 2000 {
		t.Fatalf("expected 2000 frames, got %d", p.Frames())
	}
	if p.Duration() != 2*time.Second {
		t.Errorf("expected 2s, got %v", p.Duration())
	}

	var empty *PCM
	if empty.Frames() != 0 || empty.Duration() != 0 {
		t.Error("nil PCM should report zero length")
	}
}

func TestDurationToFrames(t *testing.T) {
	if got := DurationToFrames(500*time.Millisecond, 48000); got != 24000 {
		t.Errorf("expected 24000, got %d", got)
	}
}
