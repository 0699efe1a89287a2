// ABOUTME: Command dispatch from the control protocol to engine components
// ABOUTME: Loads tracks by name and applies playback and parameter changes
package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sendspin/mixgraph/pkg/mixgraph"
)

// execute applies cmd and returns an error code for rejected commands
func (s *Server) execute(cmd Command) (string, error) {
	if cmd.Action == ActionLoad {
		return s.load(cmd)
	}

	var target interface {
		SetVolume(float64) error
		SetBalance(float64) error
		SetFrequency(float64) error
	}
	var track *mixgraph.Track

	switch {
	case cmd.Track != "":
		s.loadedMu.Lock()
		track = s.loaded[cmd.Track]
		s.loadedMu.Unlock()
		if track == nil {
			return ErrCodeNotFound, fmt.Errorf("track %q is not loaded", cmd.Track)
		}
		target = track
	case cmd.Mixer != "":
		mx, ok := s.mixers[cmd.Mixer]
		if !ok {
			return ErrCodeNotFound, fmt.Errorf("unknown mixer %q", cmd.Mixer)
		}
		target = mx
	default:
		return ErrCodeBadRequest, errors.New("command needs a track or mixer")
	}

	var err error
	switch cmd.Action {
	case ActionVolume:
		err = target.SetVolume(cmd.Value)
	case ActionBalance:
		err = target.SetBalance(cmd.Value)
	case ActionFrequency:
		err = target.SetFrequency(cmd.Value)
	case ActionPlay, ActionStop, ActionPause, ActionSeek, ActionLoop:
		if track == nil {
			return ErrCodeBadRequest, fmt.Errorf("%s needs a track", cmd.Action)
		}
		err = playbackCommand(track, cmd)
	default:
		return ErrCodeUnknown, fmt.Errorf("unknown action %q", cmd.Action)
	}

	if errors.Is(err, mixgraph.ErrDisposed) {
		return ErrCodeDisposed, err
	}
	return ErrCodeBadRequest, err
}

func playbackCommand(track *mixgraph.Track, cmd Command) error {
	switch cmd.Action {
	case ActionPlay:
		return track.Play(cmd.Restart)
	case ActionStop:
		return track.Stop()
	case ActionPause:
		return track.Pause()
	case ActionSeek:
		return track.Seek(time.Duration(cmd.PositionMs) * time.Millisecond)
	case ActionLoop:
		return track.SetLooping(cmd.Loop)
	}
	return nil
}

// load fetches a track and optionally moves it into the named mixer. Loading
// a name again returns the already loaded track.
func (s *Server) load(cmd Command) (string, error) {
	if cmd.Track == "" {
		return ErrCodeBadRequest, errors.New("load needs a track name")
	}

	var mx *mixgraph.Mixer
	if cmd.Mixer != "" {
		var ok bool
		if mx, ok = s.mixers[cmd.Mixer]; !ok {
			return ErrCodeNotFound, fmt.Errorf("unknown mixer %q", cmd.Mixer)
		}
	}

	s.loadedMu.Lock()
	track, exists := s.loaded[cmd.Track]
	s.loadedMu.Unlock()

	if !exists || track.IsDisposed() {
		t, err := s.tracks.Get(cmd.Track)
		if err != nil {
			return ErrCodeDisposed, err
		}
		if t == nil {
			return ErrCodeNotFound, fmt.Errorf("no resource named %q", cmd.Track)
		}
		if !t.IsLoaded() {
			t.Dispose()
			return ErrCodeBadRequest, fmt.Errorf("resource %q could not be decoded", cmd.Track)
		}
		track = t
		s.loadedMu.Lock()
		s.loaded[cmd.Track] = track
		s.loadedMu.Unlock()
		s.log.Infof("Loaded track %q (%v)", cmd.Track, track.Length())
	}

	if mx != nil {
		if err := mx.Add(track); err != nil {
			return ErrCodeDisposed, err
		}
	}
	return "", nil
}
