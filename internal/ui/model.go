// ABOUTME: Bubbletea model for the mixer overlay
// ABOUTME: Tracks mixer membership from events and renders level meters
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sendspin/mixgraph/pkg/audio/native"
	"github.com/Sendspin/mixgraph/pkg/mixgraph"
)

// volumeStep is the change applied per arrow key
const volumeStep = 0.05

// Model represents the overlay state
type Model struct {
	mixers   []mixerRow
	selected int

	device      string
	deviceState string

	meter    Meter
	controls *Controls

	width  int
	height int
}

type mixerRow struct {
	name        string
	volume      float64
	handle      native.Handle
	left, right float32
	members     []memberRow
}

type memberRow struct {
	id          string
	label       string
	handle      native.Handle
	left, right float32
}

// EventMsg carries one membership event for the named mixer
type EventMsg struct {
	Mixer string
	Event mixgraph.MembershipEvent
}

// TickMsg triggers a meter refresh
type TickMsg struct {
	Device      string
	DeviceState string
	// Buses maps mixer names to their current bus handles
	Buses map[string]native.Handle
}

// MixerInfo seeds one row of the overlay
type MixerInfo struct {
	Name   string
	Volume float64
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case EventMsg:
		m.applyEvent(msg)
	case TickMsg:
		m.applyTick(msg)
	}
	return m, nil
}

func (m Model) row(name string) *mixerRow {
	for i := range m.mixers {
		if m.mixers[i].name == name {
			return &m.mixers[i]
		}
	}
	return nil
}

// applyEvent folds a membership event into the mixer's row list
func (m *Model) applyEvent(msg EventMsg) {
	r := m.row(msg.Mixer)
	if r == nil {
		return
	}
	ev := msg.Event

	handleAt := func(i int) native.Handle {
		if i < len(ev.Handles) {
			return ev.Handles[i]
		}
		return 0
	}

	switch ev.Kind {
	case mixgraph.EventReset:
		r.members = r.members[:0]
		for i, mem := range ev.Members {
			r.members = append(r.members, memberRow{id: mem.ID(), label: label(mem), handle: handleAt(i)})
		}
	case mixgraph.EventAdded:
		for i, mem := range ev.Members {
			if r.indexOf(mem.ID()) < 0 {
				r.members = append(r.members, memberRow{id: mem.ID(), label: label(mem), handle: handleAt(i)})
			}
		}
	case mixgraph.EventRemoved:
		for _, mem := range ev.Members {
			if i := r.indexOf(mem.ID()); i >= 0 {
				r.members = append(r.members[:i], r.members[i+1:]...)
			}
		}
	case mixgraph.EventReplaced:
		for i, mem := range ev.Members {
			if j := r.indexOf(mem.ID()); j >= 0 {
				r.members[j].handle = handleAt(i)
			}
		}
	}
}

func (r *mixerRow) indexOf(id string) int {
	for i, mem := range r.members {
		if mem.id == id {
			return i
		}
	}
	return -1
}

// applyTick re-reads every meter
func (m *Model) applyTick(msg TickMsg) {
	m.device = msg.Device
	m.deviceState = msg.DeviceState
	if m.meter == nil {
		return
	}
	for i := range m.mixers {
		r := &m.mixers[i]
		if h, ok := msg.Buses[r.name]; ok {
			r.handle = h
		}
		r.left, r.right = 0, 0
		if r.handle != 0 {
			lvl := m.meter(r.handle)
			r.left, r.right = lvl.Left, lvl.Right
		}
		for j := range r.members {
			mem := &r.members[j]
			mem.left, mem.right = 0, 0
			if mem.handle != 0 {
				lvl := m.meter(mem.handle)
				mem.left, mem.right = lvl.Left, lvl.Right
			}
		}
	}
}

func label(mem mixgraph.Member) string {
	switch v := mem.(type) {
	case *mixgraph.Track:
		if v.IsVirtual() {
			return "virtual " + v.Length().String()
		}
		return v.Name()
	case *mixgraph.SampleChannel:
		return "sample " + v.Sample().Name()
	case *mixgraph.Mixer:
		return "[" + v.Name() + "]"
	}
	return mem.ID()
}

// View renders the overlay
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	for i, r := range m.mixers {
		b.WriteString(m.renderMixer(r, i == m.selected))
	}
	b.WriteString(renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	state := m.deviceState
	if state == "" {
		state = "unknown"
	}
	device := m.device
	if device == "" {
		device = "(default)"
	}
	return fmt.Sprintf(`┌─ mixgraph ───────────────────────────────────────────┐
│ Device: %-32s %-12s │
├──────────────────────────────────────────────────────┤
`, truncate(device, 32), state)
}

func (m Model) renderMixer(r mixerRow, selected bool) string {
	cursor := " "
	if selected {
		cursor = ">"
	}
	s := fmt.Sprintf("│%s%-14s vol %3d%% L[%s] R[%s] │\n",
		cursor, truncate(r.name, 14), int(r.volume*100+0.5),
		renderBar(r.left, 8), renderBar(r.right, 8))
	for _, mem := range r.members {
		s += fmt.Sprintf("│    %-24s L[%s] R[%s] │\n",
			truncate(mem.label, 24), renderBar(mem.left, 8), renderBar(mem.right, 8))
	}
	return s
}

func renderHelp() string {
	return `├──────────────────────────────────────────────────────┤
│ ↑/↓:Select  ←/→:Volume  q:Quit                       │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		if m.selected > 0 {
			m.selected--
		}
	case "down":
		if m.selected < len(m.mixers)-1 {
			m.selected++
		}
	case "left":
		m.nudgeVolume(-volumeStep)
	case "right":
		m.nudgeVolume(volumeStep)
	}
	return m, nil
}

func (m *Model) nudgeVolume(delta float64) {
	if len(m.mixers) == 0 {
		return
	}
	r := &m.mixers[m.selected]
	v := r.volume + delta
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	if v == r.volume {
		return
	}
	r.volume = v
	if m.controls != nil {
		select {
		case m.controls.Changes <- VolumeChangeMsg{Mixer: r.name, Volume: v}:
		default:
		}
	}
}

// renderBar draws a peak level in [0,1]
func renderBar(level float32, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level*float32(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
