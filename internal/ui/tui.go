// ABOUTME: TUI initialization and engine observation
// ABOUTME: Feeds mixer subscriptions and level meters into the bubbletea program
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/mixgraph/pkg/audio/native"
	"github.com/Sendspin/mixgraph/pkg/mixgraph"
)

// Meter reads the current peak level of a native handle
type Meter func(native.Handle) native.Level

// VolumeChangeMsg asks the owner to set a mixer's volume
type VolumeChangeMsg struct {
	Mixer  string
	Volume float64
}

// QuitMsg is sent when the user quits the overlay
type QuitMsg struct{}

// Controls carries user intents out of the overlay
type Controls struct {
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new overlay model
func NewModel(mixers []MixerInfo, meter Meter, controls *Controls) Model {
	m := Model{meter: meter, controls: controls}
	for _, info := range mixers {
		m.mixers = append(m.mixers, mixerRow{name: info.Name, volume: info.Volume})
	}
	return m
}

// Run creates the overlay program for the given mixers
func Run(e *mixgraph.Engine, mixers []*mixgraph.Mixer, controls *Controls) (*tea.Program, error) {
	infos := make([]MixerInfo, len(mixers))
	for i, mx := range mixers {
		infos[i] = MixerInfo{Name: mx.Name(), Volume: mx.Volume()}
	}
	p := tea.NewProgram(NewModel(infos, e.Layer().Level, controls), tea.WithAltScreen())
	return p, nil
}

// Watch forwards membership events and periodic meter ticks to p until ctx ends
func Watch(ctx context.Context, p *tea.Program, e *mixgraph.Engine, mixers []*mixgraph.Mixer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, mx := range mixers {
		sub, err := mx.Subscribe()
		if err != nil {
			return err
		}
		name := mx.Name()
		g.Go(func() error {
			defer sub.Close()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-sub.C():
				}
				for {
					ev, ok := sub.Next()
					if !ok {
						break
					}
					p.Send(EventMsg{Mixer: name, Event: ev})
				}
				if sub.Closed() {
					return nil
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			buses := make(map[string]native.Handle, len(mixers))
			for _, mx := range mixers {
				buses[mx.Name()] = mx.Handle()
			}
			p.Send(TickMsg{
				Device:      e.Devices().Current(),
				DeviceState: e.Devices().State().String(),
				Buses:       buses,
			})
		}
	})

	return g.Wait()
}
