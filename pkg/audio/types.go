// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats, decoded buffers and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a PCM stream layout
type Format struct {
	SampleRate int
	Channels   int
}

// PCM is a fully decoded, interleaved float32 buffer in [-1, 1]
type PCM struct {
	Format  Format
	Samples []float32
}

// Frames returns the number of sample frames in the buffer
func (p *PCM) Frames() int {
	if p == nil || p.Format.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Format.Channels
}

// Duration returns the playback length at the native rate
func (p *PCM) Duration() time.Duration {
	if p == nil || p.Format.SampleRate == 0 {
		return 0
	}
	return FramesToDuration(p.Frames(), p.Format.SampleRate)
}

// FramesToDuration converts a frame count at sampleRate into a duration
func FramesToDuration(frames, sampleRate int) time.Duration {
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

// DurationToFrames converts a duration into a frame count at sampleRate
func DurationToFrames(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}

// SampleFromInt16 converts a 16-bit sample to float32
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleToInt16 converts a float32 sample to 16-bit with clipping
func SampleToInt16(sample float32) int16 {
	s := Clip(sample) * 32767
	return int16(math.Round(float64(s)))
}

// SampleFromInt converts a signed integer sample of the given bit depth to float32
func SampleFromInt(sample, bitDepth int) float32 {
	if bitDepth <= 0 {
		return 0
	}
	return float32(sample) / float32(int64(1)<<(bitDepth-1))
}

// SampleToInt converts a float32 sample to a signed integer of the given bit depth
func SampleToInt(sample float32, bitDepth int) int {
	scale := float64(int64(1) << (bitDepth - 1))
	v := math.Round(float64(Clip(sample)) * scale)
	if v > scale-1 {
		v = scale - 1
	}
	return int(v)
}

// Clip limits a sample to [-1, 1]
func Clip(sample float32) float32 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}
