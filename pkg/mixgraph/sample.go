// ABOUTME: Samples are short decoded clips played as many concurrent instances
// ABOUTME: Each instance is a SampleChannel with its own native voice per Play
package mixgraph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/native"
)

// DefaultPlaybackConcurrency caps simultaneous fire-and-forget instances of one sample
const DefaultPlaybackConcurrency = 2

// Sample owns decoded audio shared by every SampleChannel created from it
type Sample struct {
	component

	name   string
	pcm    *audio.PCM
	length time.Duration
	mixer  *Mixer

	concurrency atomic.Int32

	mu       sync.Mutex
	channels []*SampleChannel
	active   []*SampleChannel

	// audio goroutine only
	buffer native.Handle
}

func newSample(e *Engine, name string, pcm *audio.PCM, mixer *Mixer) *Sample {
	s := &Sample{
		component: newComponent(e, "sample"),
		name:      name,
		pcm:       pcm,
		mixer:     mixer,
	}
	s.concurrency.Store(DefaultPlaybackConcurrency)
	if pcm != nil {
		s.length = pcm.Duration()
		s.loaded.Store(true)
	}
	return s
}

func (s *Sample) Name() string { return s.name }

func (s *Sample) Length() time.Duration { return s.length }

func (s *Sample) PlaybackConcurrency() int { return int(s.concurrency.Load()) }

// SetPlaybackConcurrency limits how many instances started by Play may sound at once
func (s *Sample) SetPlaybackConcurrency(n int) {
	s.concurrency.Store(int32(max(n, 1)))
}

// GetChannel creates a new instance attached to the sample's mixer. The
// caller disposes it; disposing the sample disposes it too.
func (s *Sample) GetChannel() (*SampleChannel, error) {
	s.mu.Lock()
	if err := s.checkDisposed(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ch := newSampleChannel(s)
	s.channels = append(s.channels, ch)
	s.mu.Unlock()

	s.engine.register(ch)
	if s.mixer != nil {
		if err := s.mixer.Add(ch); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

// Play starts a fire-and-forget instance. The oldest instance is stopped
// once more than PlaybackConcurrency are sounding.
func (s *Sample) Play() (*SampleChannel, error) {
	ch, err := s.GetChannel()
	if err != nil {
		return nil, err
	}

	if err := ch.Play(true); err != nil {
		return nil, err
	}

	var evicted []*SampleChannel
	s.mu.Lock()
	s.active = append(s.active, ch)
	if over := len(s.active) - s.PlaybackConcurrency(); over > 0 {
		evicted = append(evicted, s.active[:over]...)
		s.active = append(s.active[:0], s.active[over:]...)
	}
	s.mu.Unlock()

	for _, old := range evicted {
		_ = old.Dispose()
	}
	return ch, nil
}

// Dispose releases the native buffer and every instance created from the
// sample, including those handed out by GetChannel
func (s *Sample) Dispose() error {
	s.mu.Lock()
	if !s.disposed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	channels := s.channels
	s.channels = nil
	s.active = nil
	s.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Dispose()
	}
	s.enqueue(func() {
		if s.buffer != 0 {
			_ = s.layer().FreeBuffer(s.buffer)
			s.buffer = 0
		}
	})
	return nil
}

// ensureBuffer uploads the PCM lazily, again after a device change
func (s *Sample) ensureBuffer() (native.Handle, error) {
	if s.buffer != 0 {
		return s.buffer, nil
	}
	b, err := s.layer().LoadPCM(s.pcm)
	if err != nil {
		return 0, err
	}
	s.buffer = b
	return b, nil
}

// update disposes finished fire-and-forget instances and forgets disposed ones
func (s *Sample) update() {
	s.mu.Lock()
	owned := s.channels[:0]
	for _, ch := range s.channels {
		if !ch.IsDisposed() {
			owned = append(owned, ch)
		}
	}
	clear(s.channels[len(owned):])
	s.channels = owned

	var done []*SampleChannel
	live := s.active[:0]
	for _, ch := range s.active {
		if ch.IsDisposed() || (!ch.Playing() && ch.pending.Load() == 0) {
			done = append(done, ch)
			continue
		}
		live = append(live, ch)
	}
	clear(s.active[len(live):])
	s.active = live
	s.mu.Unlock()

	for _, ch := range done {
		_ = ch.Dispose()
	}
}

func (s *Sample) deviceLost()     { s.buffer = 0 }
func (s *Sample) deviceRestored() {}

// SampleChannel is one playback instance of a Sample
type SampleChannel struct {
	channel
	sample *Sample

	// previous voices left to finish naturally, audio goroutine only
	retired []native.Handle
}

func newSampleChannel(s *Sample) *SampleChannel {
	ch := &SampleChannel{sample: s}
	ch.initChannel(s.engine, "sample-channel", ch, ch)
	if s.IsLoaded() {
		ch.loaded.Store(true)
		ch.state.Store(int32(StateLoaded))
	}
	return ch
}

// Sample returns the clip this instance plays
func (ch *SampleChannel) Sample() *Sample { return ch.sample }

func (ch *SampleChannel) openVoice(prev native.Handle, _ bool) (native.Handle, error) {
	if prev != 0 {
		ch.retired = append(ch.retired, prev)
	}
	buf, err := ch.sample.ensureBuffer()
	if err != nil {
		return 0, err
	}
	return ch.layer().CreateVoice(buf)
}

func (ch *SampleChannel) update() {
	ch.channel.update()

	l := ch.layer()
	live := ch.retired[:0]
	for _, h := range ch.retired {
		if l.IsActive(h) {
			live = append(live, h)
			continue
		}
		_ = l.Free(h)
	}
	ch.retired = live
}

func (ch *SampleChannel) releaseVariant() {
	l := ch.layer()
	for _, h := range ch.retired {
		_ = l.Stop(h)
	}
	ch.retired = nil
}

func (ch *SampleChannel) deviceLost() {
	ch.channel.deviceLost()
	ch.retired = nil
}
