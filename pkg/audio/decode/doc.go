// ABOUTME: Audio decoder package for multiple container formats
// ABOUTME: Provides a decoder registry and MP3, WAV, AIFF, Ogg Vorbis, FLAC, Ogg Opus decoders
// Package decode turns encoded audio resources into in-memory PCM.
//
// Supports: MP3, WAV, AIFF, Ogg Vorbis, FLAC, and Ogg Opus when built with
// -tags opus (needs libopus and libopusfile).
//
// Every decoder reads the whole stream and returns interleaved float32
// samples in [-1, 1], so channels can seek and loop without touching the
// encoded data again.
//
// Example:
//
//	pcm, err := decode.Default().Decode("hit.wav", r)
package decode
