// ABOUTME: Deferred action queue drained by the audio goroutine
// ABOUTME: Producers enqueue from any goroutine, one consumer drains per tick
package queue

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/Sendspin/mixgraph/internal/logging"
)

// Action is a deferred mutation executed on the audio goroutine
type Action func()

// Commands bridges caller goroutines and the single audio goroutine
type Commands struct {
	q *Queue[Action]
}

// NewCommands creates an empty command queue
func NewCommands() *Commands {
	return &Commands{q: New[Action]()}
}

// Enqueue schedules a for the next drain. Safe from any goroutine.
func (c *Commands) Enqueue(a Action) {
	if a == nil {
		return
	}
	c.q.Push(a)
}

// Pending returns the number of actions waiting to run
func (c *Commands) Pending() int {
	return c.q.Len()
}

// Drain runs the actions that were queued when the drain started, in FIFO
// order. Actions enqueued while draining wait for the next call. A panicking
// action is logged and does not prevent later actions from running.
func (c *Commands) Drain() int {
	budget := c.q.Len()
	ran := 0
	for ran < budget {
		a, ok := c.q.Pop()
		if !ok {
			break
		}
		ran++
		c.run(a)
	}
	return ran
}

func (c *Commands) run(a Action) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Audio command panicked: %v\n%s", r, debug.Stack())
		}
	}()
	a()
}

// RunSync enqueues a and blocks until a drain has executed it or ctx ends.
// It must not be called from inside an action.
func (c *Commands) RunSync(ctx context.Context, a Action) error {
	done := make(chan struct{})
	c.Enqueue(func() {
		defer close(done)
		a()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for audio command: %w", ctx.Err())
	}
}
