// ABOUTME: Command queue package for the audio goroutine
// ABOUTME: Provides a generic MPSC queue and the Commands action queue
// Package queue serializes engine mutations onto one goroutine.
//
// Any goroutine may Enqueue; only the audio goroutine calls Drain, once per
// processing tick. Actions from the same producer run in the order they were
// enqueued. No order is promised between producers.
//
// Example:
//
//	cmds := queue.NewCommands()
//	cmds.Enqueue(func() { layer.Play(handle, false) })
//	cmds.Drain()
package queue
