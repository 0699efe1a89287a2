// ABOUTME: Sample store caching decoded clips by name
// ABOUTME: Samples share one native buffer across all their instances
package mixgraph

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SampleStore caches decoded samples by name
type SampleStore struct {
	loader

	concurrency atomic.Int32

	mu      sync.Mutex
	samples map[string]*Sample
}

// SetPlaybackConcurrency sets the limit given to samples created afterwards
func (s *SampleStore) SetPlaybackConcurrency(n int) {
	s.concurrency.Store(int32(max(n, 1)))
}

// Get returns the cached sample for name, decoding it on first use. It
// returns nil for an empty name or a missing resource.
func (s *SampleStore) Get(name string) (*Sample, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	s.mu.Lock()
	if smp, ok := s.samples[name]; ok {
		s.mu.Unlock()
		return smp, nil
	}
	s.mu.Unlock()

	pcm, found := s.fetch(name)
	if !found {
		return nil, nil
	}
	smp := newSample(s.engine, name, pcm, s.mixer)
	smp.SetPlaybackConcurrency(int(s.concurrency.Load()))

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil, s.checkDisposed()
	}
	if existing, ok := s.samples[name]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.samples[name] = smp
	s.mu.Unlock()

	s.engine.register(smp)
	return smp, nil
}

// GetAsync runs Get off the calling goroutine
func (s *SampleStore) GetAsync(ctx context.Context, name string) <-chan Result[*Sample] {
	out := make(chan Result[*Sample], 1)
	go func() {
		defer close(out)
		if err := ctx.Err(); err != nil {
			out <- Result[*Sample]{Err: err}
			return
		}
		smp, err := s.Get(name)
		out <- Result[*Sample]{Value: smp, Err: err}
	}()
	return out
}

// Preload decodes and caches names concurrently
func (s *SampleStore) Preload(ctx context.Context, names ...string) error {
	if err := s.checkDisposed(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultPreloadConcurrency)
	for _, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.Get(name)
			return err
		})
	}
	return g.Wait()
}

// Dispose disposes every cached sample
func (s *SampleStore) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	samples := s.samples
	s.samples = nil
	s.mu.Unlock()

	for _, smp := range samples {
		_ = smp.Dispose()
	}
	s.engine.forgetStore(s)
	return nil
}
