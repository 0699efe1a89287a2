// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, PCM types and sample conversion functions
// Package audio provides fundamental audio types shared by the mixgraph engine.
//
// This package defines core types used throughout the library:
//   - Format: Describes a PCM layout (sample rate, channels)
//   - PCM: A fully decoded interleaved float32 buffer
//
// It also provides utilities for converting between integer and float samples.
//
// Example:
//
//	pcm := &audio.PCM{
//	    Format:  audio.Format{SampleRate: 44100, Channels: 2},
//	    Samples: samples,
//	}
//	length := pcm.Duration()
package audio
