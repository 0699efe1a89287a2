// ABOUTME: Native audio layer package
// ABOUTME: Defines the Layer boundary and a software mixer implementation
// Package native is the playback library under the mixgraph engine.
//
// A Layer manages decoded buffers, voices playing them and buses that submix
// voices and other buses. Handles are opaque, never reused and do not survive
// Init. The Software implementation mixes in Go and writes to an
// output.Driver from its own render goroutine.
//
// Example:
//
//	layer := native.NewSoftware(native.Config{Driver: output.NewOtoDriver()})
//	err := layer.Init(output.DefaultDevice)
//	buf, _ := layer.LoadPCM(pcm)
//	voice, _ := layer.CreateVoice(buf)
//	layer.Route(voice, layer.Master())
//	layer.Play(voice, false)
package native
