// ABOUTME: Tests for the MPSC queue and command drain
// ABOUTME: Covers FIFO order, per-producer ordering and panic isolation
package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	if q.Len() != 5 {
		t.Fatalf("expected len 5, got %d", q.Len())
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
	if q.Len() != 0 {
		t.Fatalf("expected len 0, got %d", q.Len())
	}
}

func TestQueuePerProducerOrder(t *testing.T) {
	const producers = 8
	const perProducer = 1000

	type item struct{ producer, seq int }
	q := New[item]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(item{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	count := 0
	for {
		it, ok := q.Pop()
		if !ok {
			break
		}
		if it.seq != last[it.producer]+1 {
			t.Fatalf("producer %d: got seq %d after %d", it.producer, it.seq, last[it.producer])
		}
		last[it.producer] = it.seq
		count++
	}
	if count != producers*perProducer {
		t.Fatalf("expected %d items, got %d", producers*perProducer, count)
	}
}

func TestDrainRunsInOrder(t *testing.T) {
	c := NewCommands()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		c.Enqueue(func() { got = append(got, i) })
	}

	if n := c.Drain(); n != 3 {
		t.Fatalf("expected 3 actions, ran %d", n)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("unexpected order %v", got)
	}
	if n := c.Drain(); n != 0 {
		t.Fatalf("second drain ran %d actions", n)
	}
}

func TestDrainSurvivesPanic(t *testing.T) {
	c := NewCommands()
	ran := false
	c.Enqueue(func() { panic("boom") })
	c.Enqueue(func() { ran = true })

	if n := c.Drain(); n != 2 {
		t.Fatalf("expected 2 actions, ran %d", n)
	}
	if !ran {
		t.Fatal("action after panic did not run")
	}
}

func TestDrainIsBoundedToSnapshot(t *testing.T) {
	c := NewCommands()
	count := 0
	var requeue Action
	requeue = func() {
		count++
		c.Enqueue(requeue)
	}
	c.Enqueue(requeue)

	c.Drain()
	if count != 1 {
		t.Fatalf("expected one execution per drain, got %d", count)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected re-enqueued action to wait, pending=%d", c.Pending())
	}
}

func TestEnqueueNilIgnored(t *testing.T) {
	c := NewCommands()
	c.Enqueue(nil)
	if c.Pending() != 0 {
		t.Fatal("nil action should not be queued")
	}
}

func TestRunSync(t *testing.T) {
	c := NewCommands()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Drain()
			}
		}
	}()
	defer close(stop)

	value := 0
	if err := c.RunSync(context.Background(), func() { value = 42 }); err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if value != 42 {
		t.Fatalf("expected 42, got %d", value)
	}
}

func TestRunSyncCancelled(t *testing.T) {
	c := NewCommands()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.RunSync(ctx, func() {}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
