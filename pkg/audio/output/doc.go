// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output and Driver interfaces with oto, PortAudio, malgo, null and WAV drivers
// Package output provides audio playback devices.
//
// Drivers enumerate devices and open outputs:
//   - oto: the system default device (default driver)
//   - portaudio: named devices, requires -tags portaudio
//   - malgo: named miniaudio devices, requires -tags malgo
//   - null: discards audio, supports simulated device removal
//   - wav:<path>: records the mix to a file
//
// Example:
//
//	drv, _ := output.ByName("oto")
//	out, err := drv.New(output.DefaultDevice)
//	err = out.Open(48000, 2)
//	err = out.Write(samples)
package output
