// ABOUTME: Package documentation for the mixgraph engine
// ABOUTME: Describes the threading model and shows typical usage
// Package mixgraph is an audio mixing engine with a deferred command model.
//
// Callers on any goroutine create stores, mixers and channels and control
// them through methods that return immediately. Every mutation is queued and
// applied by the engine's audio goroutine, which also polls the native layer
// and handles output device changes. Flags that callers need to see at once,
// such as Playing, are updated eagerly through atomics.
//
// Example:
//
//	engine := mixgraph.NewEngine(mixgraph.Config{Driver: output.NewOtoDriver()})
//	engine.Start(ctx)
//	defer engine.Close()
//
//	music := engine.NewMixer("music")
//	tracks := engine.NewTrackStore(resources.NewDir("assets"), music)
//	track, err := tracks.Get("theme")
//	if err != nil || track == nil {
//		return err
//	}
//	music.AddEffect(effect.NewLowPass(2000), 0)
//	track.Play(false)
package mixgraph
