// ABOUTME: Membership events delivered to mixer observers
// ABOUTME: Lock-free per-subscriber queues with a wake-up channel
package mixgraph

import (
	"sync/atomic"

	"github.com/Sendspin/mixgraph/pkg/audio/native"
	"github.com/Sendspin/mixgraph/pkg/audio/queue"
)

// EventKind classifies a membership change
type EventKind int

const (
	// EventAdded: Members joined the mixer
	EventAdded EventKind = iota
	// EventRemoved: Members left the mixer
	EventRemoved
	// EventReset: Members is the complete membership
	EventReset
	// EventReplaced: native handles changed after a device switch
	EventReplaced
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventReset:
		return "reset"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// MembershipEvent describes one change. Handles is parallel to Members;
// OldHandles is set for EventReplaced.
type MembershipEvent struct {
	Kind       EventKind
	Members    []Member
	Handles    []native.Handle
	OldHandles []native.Handle
}

// Subscription receives events published on the audio goroutine
type Subscription struct {
	mixer  *Mixer
	events *queue.Queue[MembershipEvent]
	notify chan struct{}
	closed atomic.Bool
}

func newSubscription(mx *Mixer) *Subscription {
	return &Subscription{
		mixer:  mx,
		events: queue.New[MembershipEvent](),
		notify: make(chan struct{}, 1),
	}
}

func (s *Subscription) push(ev MembershipEvent) {
	s.events.Push(ev)
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// C is signalled whenever events are waiting
func (s *Subscription) C() <-chan struct{} { return s.notify }

// Next pops the oldest pending event
func (s *Subscription) Next() (MembershipEvent, bool) {
	return s.events.Pop()
}

// Closed reports whether the subscription or its mixer was closed
func (s *Subscription) Closed() bool { return s.closed.Load() }

// Close stops delivery. Pending events can still be drained with Next.
func (s *Subscription) Close() {
	s.closed.Store(true)
}
