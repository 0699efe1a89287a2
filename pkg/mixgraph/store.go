// ABOUTME: Track and sample stores resolving names through a resource provider
// ABOUTME: Synchronous and asynchronous lookup, preloading and bulk disposal
package mixgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/mixgraph/internal/logging"
	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/decode"
	"github.com/Sendspin/mixgraph/pkg/resources"
)

// DefaultPreloadConcurrency bounds parallel decodes during Preload
const DefaultPreloadConcurrency = 4

// Result carries the outcome of an asynchronous lookup
type Result[T any] struct {
	Value T
	Err   error
}

// loader resolves and decodes resources for both store kinds
type loader struct {
	engine   *Engine
	provider resources.Provider
	decoders *decode.Registry
	mixer    *Mixer
	kind     string
	disposed atomic.Bool
	log      *zap.SugaredLogger
}

func newLoader(e *Engine, kind string, p resources.Provider, mixer *Mixer) loader {
	return loader{
		engine:   e,
		provider: p,
		decoders: e.decoders,
		mixer:    mixer,
		kind:     kind,
		log:      logging.With("store", kind),
	}
}

func (l *loader) checkDisposed() error {
	if l.disposed.Load() {
		return fmt.Errorf("%w: %s", ErrDisposed, l.kind)
	}
	return nil
}

// fetch returns the decoded PCM, found=false when the provider has no such
// resource, and pcm=nil when the data could not be decoded.
func (l *loader) fetch(name string) (pcm *audio.PCM, found bool) {
	if name == "" || l.provider == nil {
		return nil, false
	}
	rc, ok := l.provider.GetStream(name)
	if !ok {
		return nil, false
	}
	defer rc.Close()

	start := time.Now()
	pcm, err := l.decoders.Decode(name, rc)
	if err != nil {
		l.log.Warnf("Failed to decode %q: %v", name, err)
		return nil, true
	}
	l.log.Debugf("Decoded %q: %d frames at %d Hz in %v", name, pcm.Frames(), pcm.Format.SampleRate, time.Since(start))
	return pcm, true
}

// Mixer returns the mixer new channels are attached to
func (l *loader) Mixer() *Mixer { return l.mixer }

// GetStream passes through to the provider. It reports absence once disposed.
func (l *loader) GetStream(name string) (io.ReadCloser, bool) {
	if l.disposed.Load() || l.provider == nil || name == "" {
		return nil, false
	}
	return l.provider.GetStream(name)
}

// GetAvailableResources lists names the provider can supply
func (l *loader) GetAvailableResources() []string {
	if l.provider == nil {
		return nil
	}
	return l.provider.GetAvailableResources()
}

// TrackStore creates tracks from a resource provider and attaches them to its mixer
type TrackStore struct {
	loader

	mu     sync.Mutex
	tracks []*Track
}

// Get decodes the named resource into a new Track. It returns nil for an
// empty name or a missing resource, and an unloaded Track when the data
// cannot be decoded.
func (s *TrackStore) Get(name string) (*Track, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}
	pcm, found := s.fetch(name)
	if !found {
		return nil, nil
	}
	return s.adopt(newTrack(s.engine, name, pcm))
}

// GetAsync runs Get off the calling goroutine
func (s *TrackStore) GetAsync(ctx context.Context, name string) <-chan Result[*Track] {
	out := make(chan Result[*Track], 1)
	go func() {
		defer close(out)
		if err := ctx.Err(); err != nil {
			out <- Result[*Track]{Err: err}
			return
		}
		t, err := s.Get(name)
		out <- Result[*Track]{Value: t, Err: err}
	}()
	return out
}

// GetVirtual creates a silent track that reports time up to length
func (s *TrackStore) GetVirtual(length time.Duration) (*Track, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}
	return s.adopt(newVirtualTrack(s.engine, length))
}

// Preload decodes names concurrently and returns the loaded tracks in order.
// Missing names yield nil entries.
func (s *TrackStore) Preload(ctx context.Context, names ...string) ([]*Track, error) {
	if err := s.checkDisposed(); err != nil {
		return nil, err
	}
	tracks := make([]*Track, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultPreloadConcurrency)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := s.Get(name)
			if err != nil {
				return err
			}
			tracks[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return tracks, err
	}
	return tracks, nil
}

// Tracks returns every live track created by this store
func (s *TrackStore) Tracks() []*Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		if !t.IsDisposed() {
			out = append(out, t)
		}
	}
	return out
}

func (s *TrackStore) adopt(t *Track) (*Track, error) {
	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil, s.checkDisposed()
	}
	s.tracks = append(s.tracks, t)
	s.mu.Unlock()

	s.engine.register(t)
	if s.mixer != nil {
		if err := s.mixer.Add(t); err != nil && !errors.Is(err, ErrDisposed) {
			return nil, err
		}
	}
	return t, nil
}

// Dispose disposes every track the store created
func (s *TrackStore) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	tracks := s.tracks
	s.tracks = nil
	s.mu.Unlock()

	for _, t := range tracks {
		_ = t.Dispose()
	}
	s.engine.forgetStore(s)
	return nil
}
