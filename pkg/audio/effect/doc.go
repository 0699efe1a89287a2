// ABOUTME: Effect package for mixer effect chains
// ABOUTME: Defines the Effect interface and built-in processors
// Package effect provides audio processors that a mixer applies, in priority
// order, to its summed signal before passing it to its parent.
//
// Example:
//
//	m.AddEffect(effect.NewLowPass(800), 1)
//	m.AddEffect(effect.NewEcho(0.25, 0.4, 0.3), 2)
package effect
