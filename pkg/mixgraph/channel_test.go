// ABOUTME: Tests for the channel state machine across track and sample variants
// ABOUTME: Drives the engine tick by tick against the recording fake layer
package mixgraph

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Sendspin/mixgraph/pkg/audio/native"
)

func addTrack(t *testing.T, e *Engine, mx *Mixer, length time.Duration) *Track {
	t.Helper()
	tr := newTrack(e, "track", pcmOf(length))
	e.register(tr)
	if err := mx.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return tr
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPlayUnloadedIsNoop(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := newTrack(e, "broken", nil)
	e.register(tr)
	e.Master().Add(tr)

	if tr.IsLoaded() {
		t.Fatal("track without audio reports loaded")
	}
	if err := tr.Play(false); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if tr.Playing() {
		t.Fatal("unloaded track reports playing")
	}
	e.Tick()
	if tr.Handle() != 0 || layer.voiceCount() != 0 {
		t.Fatalf("unloaded track created a voice: handle=%d voices=%d", tr.Handle(), layer.voiceCount())
	}
	if tr.State() != StateUnloaded {
		t.Errorf("State() = %v, want unloaded", tr.State())
	}
}

func TestPlayingIsEager(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), 2*time.Second)

	if err := tr.Play(false); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !tr.Playing() {
		t.Fatal("Playing() false before the audio goroutine ran")
	}
	if tr.Handle() != 0 {
		t.Fatal("handle created on the caller goroutine")
	}

	e.Tick()
	h := tr.Handle()
	if h == 0 {
		t.Fatal("no voice after tick")
	}
	v := layer.voice(h)
	if v == nil || !v.active {
		t.Fatal("voice not started")
	}
	if v.bus != e.Master().Handle() {
		t.Errorf("voice routed to %d, want master %d", v.bus, e.Master().Handle())
	}
	if !tr.Playing() {
		t.Error("Playing() false while the voice is active")
	}
}

func TestTrackCompletes(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), 2*time.Second)
	tr.Play(false)
	e.Tick()

	layer.finish(tr.Handle())
	e.Tick()

	if tr.Playing() {
		t.Fatal("Playing() true after the stream ended")
	}
	if !tr.HasCompleted() {
		t.Error("HasCompleted() false after the stream ended")
	}
	if tr.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", tr.State())
	}
	if got := tr.CurrentTime(); got != 2*time.Second {
		t.Errorf("CurrentTime() = %v, want 2s", got)
	}
}

func TestTrackReplayResumesPosition(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), 2*time.Second)
	tr.Play(false)
	e.Tick()

	first := tr.Handle()
	layer.SetPosition(first, 500*time.Millisecond)
	tr.Play(false)
	e.Tick()

	second := tr.Handle()
	if second == first {
		t.Fatal("Play reused the previous voice")
	}
	if layer.voice(first) != nil {
		t.Error("previous track voice not stopped")
	}
	if v := layer.voice(second); v == nil || v.pos != 500*time.Millisecond {
		t.Fatalf("new voice position = %+v, want 500ms", v)
	}

	tr.Restart()
	e.Tick()
	if v := layer.voice(tr.Handle()); v == nil || v.pos != 0 {
		t.Fatalf("restarted voice position = %+v, want 0", v)
	}
}

func TestSampleChannelRetiresPreviousVoice(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	smp := newSample(e, "hit", pcmOf(time.Second), e.Master())
	e.register(smp)
	ch, err := smp.GetChannel()
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}

	ch.SetLooping(true)
	ch.Play(true)
	e.Tick()
	first := ch.Handle()
	if v := layer.voice(first); v == nil || !v.loop {
		t.Fatal("looping flag not applied to the first voice")
	}

	ch.Play(true)
	e.Tick()
	second := ch.Handle()
	if second == first || second == 0 {
		t.Fatalf("second Play handle = %d, first = %d", second, first)
	}
	old := layer.voice(first)
	if old == nil {
		t.Fatal("previous sample voice was cut off")
	}
	if old.loop {
		t.Error("previous voice still loops")
	}
	if !old.active {
		t.Error("previous voice stopped before its natural end")
	}
	if v := layer.voice(second); v == nil || !v.loop {
		t.Error("looping flag not applied to the new voice")
	}

	layer.finish(first)
	e.Tick()
	if layer.voice(first) != nil {
		t.Error("finished retired voice not freed")
	}
}

func TestStop(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), 2*time.Second)

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop without a handle: %v", err)
	}
	tr.Play(false)
	e.Tick()
	h := tr.Handle()

	if err := tr.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if tr.Playing() {
		t.Fatal("Playing() true right after Stop")
	}
	e.Tick()
	if tr.Handle() != 0 {
		t.Error("handle kept after Stop")
	}
	if layer.voice(h) != nil {
		t.Error("voice not freed by Stop")
	}
	if tr.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", tr.State())
	}
}

func TestPauseKeepsVoice(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), 2*time.Second)
	tr.Play(false)
	e.Tick()
	h := tr.Handle()

	tr.Pause()
	if tr.Playing() {
		t.Fatal("Playing() true right after Pause")
	}
	e.Tick()
	v := layer.voice(h)
	if v == nil || v.active {
		t.Fatalf("paused voice = %+v, want present and inactive", v)
	}
	if tr.Playing() || tr.State() != StatePaused {
		t.Errorf("after Pause: playing=%v state=%v", tr.Playing(), tr.State())
	}
}

func TestZeroFrequencyPausesAndResumes(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	mx := e.NewMixer("music")
	tr := addTrack(t, e, mx, 2*time.Second)
	mx.SetFrequency(0)
	e.Tick()

	if tr.AggregateFrequency() != 0 {
		t.Fatalf("AggregateFrequency() = %v, want 0", tr.AggregateFrequency())
	}
	tr.Play(false)
	e.Tick()

	v := layer.voice(tr.Handle())
	if v == nil {
		t.Fatal("no voice created at zero frequency")
	}
	if v.active {
		t.Error("voice started at zero frequency")
	}
	if !tr.Playing() {
		t.Error("Playing() false while paused for zero frequency")
	}

	mx.SetFrequency(1)
	e.Tick()
	if !layer.voice(tr.Handle()).active {
		t.Error("voice not resumed when frequency returned")
	}

	mx.SetFrequency(0)
	e.Tick()
	if layer.voice(tr.Handle()).active {
		t.Error("voice not paused when frequency dropped to zero")
	}
	if !tr.Playing() {
		t.Error("Playing() false while paused for zero frequency")
	}
}

func TestNativeFrequencyClamp(t *testing.T) {
	tests := []struct {
		name string
		freq float64
		want float64
	}{
		{"scaled", 2, 2000},
		{"above max", 200, MaxFrequencyHz},
		{"below min", 0.05, MinFrequencyHz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, layer, _ := newTestEngine(t)
			tr := addTrack(t, e, e.Master(), time.Second)
			tr.SetFrequency(tt.freq)
			tr.Play(false)
			e.Tick()

			got := layer.voice(tr.Handle()).attrs[native.AttrFrequency]
			if !near(got, tt.want) {
				t.Errorf("native frequency = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregatesPushedToVoice(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	mx := e.NewMixer("sfx")
	tr := addTrack(t, e, mx, time.Second)
	mx.SetVolume(0.5)
	mx.SetBalance(0.5)
	tr.SetVolume(0.5)
	tr.SetBalance(0.75)
	tr.Play(false)
	e.Tick()

	v := layer.voice(tr.Handle())
	if got := v.attrs[native.AttrVolume]; !near(got, 0.25) {
		t.Errorf("voice volume = %v, want 0.25", got)
	}
	if got := v.attrs[native.AttrBalance]; !near(got, 1) {
		t.Errorf("voice balance = %v, want 1 (clamped)", got)
	}

	mx.SetVolume(1)
	e.Tick()
	if got := layer.voice(tr.Handle()).attrs[native.AttrVolume]; !near(got, 0.5) {
		t.Errorf("voice volume after mixer change = %v, want 0.5", got)
	}
}

func TestMixerVolumeZeroKeepsPlaying(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	mx := e.NewMixer("music")
	tr := addTrack(t, e, mx, time.Second)
	tr.Play(false)
	e.Tick()

	mx.SetVolume(0)
	e.Tick()
	v := layer.voice(tr.Handle())
	if v == nil {
		t.Fatal("voice released by a zero mixer volume")
	}
	if got := v.attrs[native.AttrVolume]; got != 0 {
		t.Errorf("voice volume = %v, want 0", got)
	}
	if !tr.Playing() || !v.active {
		t.Errorf("after SetVolume(0): playing=%v active=%v", tr.Playing(), v.active)
	}
}

func TestSeek(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), 2*time.Second)

	tr.Seek(1500 * time.Millisecond)
	tr.Play(false)
	e.Tick()
	if v := layer.voice(tr.Handle()); v == nil || v.pos != 1500*time.Millisecond {
		t.Fatalf("voice after seek-then-play = %+v, want pos 1.5s", v)
	}

	tr.Seek(time.Hour)
	e.Tick()
	if got := layer.voice(tr.Handle()).pos; got != 2*time.Second {
		t.Errorf("seek past end = %v, want clamped to 2s", got)
	}
	if got := tr.CurrentTime(); got != 2*time.Second {
		t.Errorf("CurrentTime() = %v, want 2s", got)
	}
}

func TestDisposedChannelRejectsControl(t *testing.T) {
	e, layer, _ := newTestEngine(t)
	tr := addTrack(t, e, e.Master(), time.Second)
	tr.Play(false)
	e.Tick()
	h := tr.Handle()

	if err := tr.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	e.Tick()

	calls := map[string]func() error{
		"Play":      func() error { return tr.Play(false) },
		"Stop":      tr.Stop,
		"Pause":     tr.Pause,
		"SetVolume": func() error { return tr.SetVolume(1) },
		"Seek":      func() error { return tr.Seek(0) },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrDisposed) {
			t.Errorf("%s after Dispose = %v, want ErrDisposed", name, err)
		}
	}
	if e.Master().Contains(tr) {
		t.Error("disposed track still in mixer")
	}
	if layer.voice(h) != nil {
		t.Error("disposed track voice not stopped")
	}
}

func TestVirtualTrackClock(t *testing.T) {
	e, layer, clock := newTestEngine(t)
	tr := newVirtualTrack(e, 10*time.Second)
	e.register(tr)
	e.Master().Add(tr)

	tr.Play(false)
	e.Tick()
	clock.Advance(3 * time.Second)
	e.Tick()
	if got := tr.CurrentTime(); got != 3*time.Second {
		t.Fatalf("CurrentTime() = %v, want 3s", got)
	}

	e.Master().SetFrequency(2)
	e.Tick()
	clock.Advance(2 * time.Second)
	e.Tick()
	if got := tr.CurrentTime(); got != 7*time.Second {
		t.Fatalf("CurrentTime() at double speed = %v, want 7s", got)
	}
	if !tr.Playing() {
		t.Fatal("virtual track stopped early")
	}

	clock.Advance(5 * time.Second)
	e.Tick()
	if tr.Playing() || !tr.HasCompleted() {
		t.Errorf("at end: playing=%v completed=%v", tr.Playing(), tr.HasCompleted())
	}
	if got := tr.CurrentTime(); got != 10*time.Second {
		t.Errorf("CurrentTime() = %v, want 10s", got)
	}
	if layer.voiceCount() != 0 {
		t.Error("virtual track created a native voice")
	}
}

func TestVirtualTrackSeekWhileRunning(t *testing.T) {
	e, _, clock := newTestEngine(t)
	tr := newVirtualTrack(e, 10*time.Second)
	e.register(tr)
	e.Master().Add(tr)

	tr.Play(false)
	e.Tick()
	clock.Advance(3 * time.Second)
	tr.Seek(time.Second)
	e.Tick()
	if got := tr.CurrentTime(); got != time.Second {
		t.Fatalf("CurrentTime() after seek = %v, want 1s", got)
	}

	clock.Advance(2 * time.Second)
	e.Tick()
	if got := tr.CurrentTime(); got != 3*time.Second {
		t.Errorf("CurrentTime() = %v, want 3s", got)
	}
}
