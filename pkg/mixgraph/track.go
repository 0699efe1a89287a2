// ABOUTME: Tracks are long-form channels with a seekable position
// ABOUTME: Streamed tracks own a native voice; virtual tracks advance a clock only
package mixgraph

import (
	"sync/atomic"
	"time"

	"github.com/Sendspin/mixgraph/pkg/audio"
	"github.com/Sendspin/mixgraph/pkg/audio/native"
)

// Track is a single long-form stream. A virtual track has no audio and
// reports time against the engine clock.
type Track struct {
	channel

	name    string
	pcm     *audio.PCM
	length  time.Duration
	virtual bool

	current   atomic.Int64
	completed atomic.Bool

	// audio goroutine only
	buffer     native.Handle
	savedPos   time.Duration
	wasPlaying bool
	running    bool
	lastTick   time.Time
}

func newTrack(e *Engine, name string, pcm *audio.PCM) *Track {
	t := &Track{name: name, pcm: pcm}
	t.initChannel(e, "track", t, t)
	if pcm != nil {
		t.length = pcm.Duration()
		t.loaded.Store(true)
		t.state.Store(int32(StateLoaded))
	}
	return t
}

func newVirtualTrack(e *Engine, length time.Duration) *Track {
	t := &Track{name: "virtual", length: max(length, 0), virtual: true}
	t.initChannel(e, "track", t, t)
	t.loaded.Store(true)
	t.state.Store(int32(StateLoaded))
	return t
}

func (t *Track) Name() string { return t.name }

// Length is the decoded duration, or the requested length for virtual tracks
func (t *Track) Length() time.Duration { return t.length }

func (t *Track) IsVirtual() bool { return t.virtual }

// CurrentTime is the playback position as of the last engine tick
func (t *Track) CurrentTime() time.Duration { return time.Duration(t.current.Load()) }

// HasCompleted reports that playback reached the end without looping
func (t *Track) HasCompleted() bool { return t.completed.Load() }

func (t *Track) Play(restart bool) error {
	if t.virtual {
		return t.playVirtual(restart)
	}
	if err := t.checkDisposed(); err != nil {
		return err
	}
	t.completed.Store(false)
	return t.channel.Play(restart)
}

// Start resumes from the current position
func (t *Track) Start() error { return t.Play(false) }

// Restart plays from the beginning
func (t *Track) Restart() error { return t.Play(true) }

func (t *Track) Stop() error {
	if t.virtual {
		return t.haltVirtual(StateStopped)
	}
	return t.channel.Stop()
}

func (t *Track) Pause() error {
	if t.virtual {
		return t.haltVirtual(StatePaused)
	}
	return t.channel.Pause()
}

// Seek moves the position, clamped to [0, Length]
func (t *Track) Seek(pos time.Duration) error {
	if err := t.checkDisposed(); err != nil {
		return err
	}
	pos = min(max(pos, 0), t.length)
	t.enqueue(func() {
		if h := t.Handle(); h != 0 {
			if err := t.layer().SetPosition(h, pos); err != nil {
				t.log.Warnf("Seek failed: %v", err)
				return
			}
		}
		if t.virtual && t.running {
			t.lastTick = t.engine.now()
		}
		t.savedPos = pos
		t.current.Store(int64(pos))
		t.completed.Store(false)
	})
	return nil
}

func (t *Track) playVirtual(restart bool) error {
	if err := t.checkDisposed(); err != nil {
		return err
	}
	t.completed.Store(false)
	t.enqueue(func() {
		if restart || t.savedPos >= t.length {
			t.savedPos = 0
			t.current.Store(0)
		}
		t.running = true
		t.lastTick = t.engine.now()
		t.state.Store(int32(StatePlaying))
	})
	t.playing.Store(true)
	t.state.Store(int32(StatePlaying))
	return nil
}

func (t *Track) haltVirtual(state PlaybackState) error {
	if err := t.checkDisposed(); err != nil {
		return err
	}
	t.playing.Store(false)
	t.enqueue(func() {
		t.advanceVirtual()
		t.running = false
		t.state.Store(int32(state))
	})
	return nil
}

func (t *Track) advanceVirtual() {
	if !t.running {
		return
	}
	now := t.engine.now()
	elapsed := now.Sub(t.lastTick)
	t.lastTick = now
	t.savedPos += time.Duration(float64(elapsed) * t.AggregateFrequency())
	if t.savedPos >= t.length {
		if t.Looping() && t.length > 0 {
			t.savedPos %= t.length
		} else {
			t.savedPos = t.length
			t.running = false
			t.completed.Store(true)
			t.state.Store(int32(StateStopped))
		}
	}
	t.current.Store(int64(t.savedPos))
}

func (t *Track) openVoice(prev native.Handle, restart bool) (native.Handle, error) {
	l := t.layer()
	pos := t.savedPos
	if prev != 0 {
		if p, err := l.Position(prev); err == nil {
			pos = p
		}
		_ = l.Stop(prev)
	}
	if restart || pos >= t.length {
		pos = 0
	}

	if t.buffer == 0 {
		b, err := l.LoadPCM(t.pcm)
		if err != nil {
			return 0, err
		}
		t.buffer = b
	}
	h, err := l.CreateVoice(t.buffer)
	if err != nil {
		return 0, err
	}
	if pos > 0 {
		_ = l.SetPosition(h, pos)
	}
	t.savedPos = pos
	t.current.Store(int64(pos))
	return h, nil
}

// saveVoice keeps the position of a voice about to be stopped
func (t *Track) saveVoice(h native.Handle) {
	if p, err := t.layer().Position(h); err == nil {
		t.savedPos = p
		t.current.Store(int64(p))
	}
}

func (t *Track) releaseVariant() {
	if t.buffer != 0 {
		_ = t.layer().FreeBuffer(t.buffer)
		t.buffer = 0
	}
	t.running = false
}

func (t *Track) update() {
	if t.virtual {
		t.advanceVirtual()
		t.playing.Store(t.running)
		return
	}
	if t.pending.Load() > 0 {
		return
	}

	h := t.Handle()
	if h == 0 {
		t.playing.Store(false)
		return
	}
	l := t.layer()
	if p, err := l.Position(h); err == nil {
		t.savedPos = p
		t.current.Store(int64(p))
	}
	active := l.IsActive(h)
	zero := t.pausedZero.Load()
	t.playing.Store(active || zero)

	if !active && !zero && t.State() == StatePlaying {
		t.completed.Store(true)
		t.current.Store(int64(t.length))
		t.savedPos = t.length
		t.state.Store(int32(StateStopped))
	}
}

func (t *Track) deviceLost() {
	t.wasPlaying = t.State() == StatePlaying && t.Handle() != 0
	t.handle.Store(0)
	t.buffer = 0
}

func (t *Track) deviceRestored() {
	if !t.wasPlaying || t.IsDisposed() {
		return
	}
	t.wasPlaying = false
	start := t.AggregateFrequency() != 0
	t.pausedZero.Store(!start)
	t.startVoice(false, start)
	if t.Handle() == 0 {
		t.playing.Store(false)
	}
}
