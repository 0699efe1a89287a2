// ABOUTME: Lock-free multi-producer single-consumer queue
// ABOUTME: Intrusive linked list with an atomic head swap on push
package queue

import "sync/atomic"

type node[T any] struct {
	next  atomic.Pointer[node[T]]
	value T
}

// Queue is an unbounded MPSC queue. Push may be called from any goroutine;
// Pop must only be called from a single consumer goroutine.
type Queue[T any] struct {
	head atomic.Pointer[node[T]]
	tail *node[T]
	size atomic.Int64
}

// New creates an empty queue
func New[T any]() *Queue[T] {
	stub := &node[T]{}
	q := &Queue[T]{tail: stub}
	q.head.Store(stub)
	return q
}

// Push appends v. It never blocks.
func (q *Queue[T]) Push(v T) {
	n := &node[T]{value: v}
	q.size.Add(1)
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Pop removes the oldest linked element. A push that has swapped the head
// but not yet linked its node is not visible until it completes.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	next := q.tail.next.Load()
	if next == nil {
		return zero, false
	}
	q.tail = next
	v := next.value
	next.value = zero
	q.size.Add(-1)
	return v, true
}

// Len reports the number of pushed but not yet popped elements
func (q *Queue[T]) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
