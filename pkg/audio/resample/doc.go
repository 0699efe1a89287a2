// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Reads decoded buffers at arbitrary playback rates
// Package resample provides sample rate conversion for voice playback.
//
// A Resampler keeps a fractional read position into a decoded buffer so the
// same buffer can be played at any frequency, looped, or sought.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	n, ended := r.Read(pcm.Samples, out, false)
package resample
