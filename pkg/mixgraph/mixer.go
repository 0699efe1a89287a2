// ABOUTME: Mixers group channels and nested mixers behind a native bus
// ABOUTME: Membership, aggregate propagation and a priority-ordered effect chain
package mixgraph

import (
	"slices"
	"sync/atomic"

	"github.com/Sendspin/mixgraph/pkg/audio/effect"
	"github.com/Sendspin/mixgraph/pkg/audio/native"
)

// EffectSlot is one entry of a mixer's effect chain. Lower priorities run first.
type EffectSlot struct {
	Effect   effect.Effect
	Priority int
}

type effectEntry struct {
	EffectSlot
	seq int
}

// Mixer owns a set of members and applies its effect chain to their sum.
// Every mutation is deferred to the audio goroutine; observers use Subscribe.
type Mixer struct {
	component
	adjustments

	name   string
	master bool
	parent atomic.Pointer[Mixer]
	bus    atomic.Uint64

	membersView atomic.Pointer[[]Member]
	effectsView atomic.Pointer[[]EffectSlot]

	// audio goroutine only
	members []Member
	effects []effectEntry
	seq     int
	subs    []*Subscription
}

func newMixer(e *Engine, name string, master bool) *Mixer {
	m := &Mixer{component: newComponent(e, "mixer"), name: name, master: master}
	m.adjustments.init()
	m.loaded.Store(true)
	m.membersView.Store(&[]Member{})
	m.effectsView.Store(&[]EffectSlot{})
	return m
}

func (mx *Mixer) Name() string { return mx.name }

// IsMaster reports whether this is the engine's root mixer
func (mx *Mixer) IsMaster() bool { return mx.master }

// Handle returns the native bus, 0 while the device is lost
func (mx *Mixer) Handle() native.Handle { return native.Handle(mx.bus.Load()) }

// Mixer returns the parent mixer, nil for the master or a detached mixer
func (mx *Mixer) Mixer() *Mixer { return mx.parent.Load() }

// Channels returns a snapshot of the membership as of the last applied command
func (mx *Mixer) Channels() []Member {
	return slices.Clone(*mx.membersView.Load())
}

// Contains reports whether m is currently a direct member
func (mx *Mixer) Contains(m Member) bool {
	return m != nil && m.Mixer() == mx
}

// Effects returns the effect chain in processing order
func (mx *Mixer) Effects() []EffectSlot {
	return slices.Clone(*mx.effectsView.Load())
}

// Add moves m into this mixer, removing it from its previous mixer first.
// Adding a mixer that would create a cycle is ignored.
func (mx *Mixer) Add(m Member) error {
	if err := mx.checkDisposed(); err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	mx.enqueue(func() { mx.addMember(m) })
	return nil
}

// Remove detaches m if it is still a member when the command runs
func (mx *Mixer) Remove(m Member) error {
	if err := mx.checkDisposed(); err != nil {
		return err
	}
	if m == nil {
		return nil
	}
	mx.enqueue(func() {
		if m.Mixer() != mx {
			return
		}
		mx.removeMember(m)
	})
	return nil
}

func (mx *Mixer) addMember(m Member) {
	if mx.IsDisposed() || m.IsDisposed() {
		return
	}
	if child, ok := m.(*Mixer); ok {
		if child.master || child == mx || mx.descendsFrom(child) {
			mx.log.Warnf("Refusing to nest mixer %s: would form a cycle", child.name)
			return
		}
	}
	old := m.Mixer()
	if old == mx {
		return
	}
	if old != nil {
		old.removeMember(m)
	}

	mx.members = append(mx.members, m)
	mx.publishMembers()
	m.setMixer(mx)
	if bus := mx.Handle(); bus != 0 {
		m.routeTo(bus)
	}
	m.parentChanged()
	mx.publish(MembershipEvent{Kind: EventAdded, Members: []Member{m}, Handles: []native.Handle{m.Handle()}})
}

func (mx *Mixer) removeMember(m Member) {
	i := slices.Index(mx.members, m)
	if i < 0 {
		return
	}
	h := m.Handle()
	mx.members = slices.Delete(mx.members, i, i+1)
	mx.publishMembers()
	m.unroute()
	m.setMixer(nil)
	m.parentChanged()
	mx.publish(MembershipEvent{Kind: EventRemoved, Members: []Member{m}, Handles: []native.Handle{h}})
}

func (mx *Mixer) descendsFrom(ancestor *Mixer) bool {
	for p := mx.Mixer(); p != nil; p = p.Mixer() {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (mx *Mixer) publishMembers() {
	snapshot := slices.Clone(mx.members)
	mx.membersView.Store(&snapshot)
}

func (mx *Mixer) SetVolume(v float64) error {
	return mx.set(func() { mx.volume.Store(clamp(v, 0, 1)) })
}

func (mx *Mixer) SetBalance(v float64) error {
	return mx.set(func() { mx.balance.Store(clamp(v, -1, 1)) })
}

func (mx *Mixer) SetFrequency(v float64) error {
	return mx.set(func() { mx.frequency.Store(max(v, 0)) })
}

func (mx *Mixer) set(apply func()) error {
	if err := mx.checkDisposed(); err != nil {
		return err
	}
	mx.enqueue(func() {
		apply()
		mx.parentChanged()
	})
	return nil
}

// AddEffect inserts e at the given priority. Adding an effect already in the
// chain moves it to the new priority.
func (mx *Mixer) AddEffect(e effect.Effect, priority int) error {
	if err := mx.checkDisposed(); err != nil {
		return err
	}
	if e == nil {
		return nil
	}
	mx.enqueue(func() {
		mx.effects = slices.DeleteFunc(mx.effects, func(x effectEntry) bool { return x.Effect == e })
		mx.seq++
		mx.effects = append(mx.effects, effectEntry{EffectSlot: EffectSlot{Effect: e, Priority: priority}, seq: mx.seq})
		mx.applyEffects()
	})
	return nil
}

func (mx *Mixer) RemoveEffect(e effect.Effect) error {
	if err := mx.checkDisposed(); err != nil {
		return err
	}
	mx.enqueue(func() {
		n := len(mx.effects)
		mx.effects = slices.DeleteFunc(mx.effects, func(x effectEntry) bool { return x.Effect == e })
		if len(mx.effects) != n {
			mx.applyEffects()
		}
	})
	return nil
}

// applyEffects orders the chain by priority, then insertion, and pushes it to the bus
func (mx *Mixer) applyEffects() {
	slices.SortStableFunc(mx.effects, func(a, b effectEntry) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return a.seq - b.seq
	})
	view := make([]EffectSlot, len(mx.effects))
	chain := make([]effect.Effect, len(mx.effects))
	for i, x := range mx.effects {
		view[i] = x.EffectSlot
		chain[i] = x.Effect
	}
	mx.effectsView.Store(&view)

	if bus := mx.Handle(); bus != 0 {
		if err := mx.layer().SetEffects(bus, chain); err != nil {
			mx.log.Warnf("Failed to apply effects: %v", err)
		}
	}
}

// Dispose detaches every member and frees the bus. The master mixer is
// disposed only by Engine.Close.
func (mx *Mixer) Dispose() error {
	if mx.master {
		return nil
	}
	return mx.dispose()
}

func (mx *Mixer) dispose() error {
	if !mx.disposed.CompareAndSwap(false, true) {
		return nil
	}
	mx.enqueue(mx.release)
	return nil
}

func (mx *Mixer) release() {
	for _, m := range slices.Clone(mx.members) {
		mx.removeMember(m)
	}
	if p := mx.Mixer(); p != nil {
		p.removeMember(mx)
	}
	if bus := mx.Handle(); bus != 0 && !mx.master {
		_ = mx.layer().Free(bus)
	}
	mx.bus.Store(0)
	for _, s := range mx.subs {
		s.closed.Store(true)
		s.signal()
	}
	mx.subs = nil
}

// Member plumbing, audio goroutine only

func (mx *Mixer) setMixer(p *Mixer) { mx.parent.Store(p) }

// parentChanged recomputes aggregates and propagates them to every member
func (mx *Mixer) parentChanged() {
	mx.recompute(mx.Mixer())
	for _, m := range mx.members {
		m.parentChanged()
	}
}

func (mx *Mixer) routeTo(bus native.Handle) {
	if h := mx.Handle(); h != 0 {
		_ = mx.layer().Route(h, bus)
	}
}

func (mx *Mixer) unroute() {
	if h := mx.Handle(); h != 0 {
		_ = mx.layer().Unroute(h)
	}
}

// createBus allocates the native bus at construction
func (mx *Mixer) createBus() {
	if mx.master {
		mx.bus.Store(uint64(mx.layer().Master()))
		return
	}
	h, err := mx.layer().CreateBus()
	if err != nil {
		mx.log.Warnf("Failed to create bus: %v", err)
		return
	}
	mx.bus.Store(uint64(h))
}

// rebuild recreates the bus and the chain beneath it after a device change
func (mx *Mixer) rebuild(parentBus native.Handle) {
	if mx.IsDisposed() {
		return
	}
	old := make([]native.Handle, len(mx.members))
	for i, m := range mx.members {
		old[i] = m.Handle()
	}

	mx.createBus()
	bus := mx.Handle()
	if bus != 0 && parentBus != 0 {
		_ = mx.layer().Route(bus, parentBus)
	}
	for _, x := range mx.effects {
		x.Effect.Reset()
	}
	mx.applyEffects()

	for _, m := range mx.members {
		if child, ok := m.(*Mixer); ok {
			child.rebuild(bus)
		}
	}

	handles := make([]native.Handle, len(mx.members))
	for i, m := range mx.members {
		handles[i] = m.Handle()
	}
	mx.publish(MembershipEvent{
		Kind:       EventReplaced,
		Members:    slices.Clone(mx.members),
		Handles:    handles,
		OldHandles: old,
	})
}

func (mx *Mixer) update() {}

func (mx *Mixer) deviceLost() {
	mx.bus.Store(0)
	mx.publish(MembershipEvent{Kind: EventReset, Members: slices.Clone(mx.members), Handles: make([]native.Handle, len(mx.members))})
}

func (mx *Mixer) deviceRestored() {}

// Subscribe returns a feed of membership changes. The first event is a
// Reset carrying the membership at registration time.
func (mx *Mixer) Subscribe() (*Subscription, error) {
	if err := mx.checkDisposed(); err != nil {
		return nil, err
	}
	s := newSubscription(mx)
	mx.enqueue(func() {
		if mx.IsDisposed() {
			s.closed.Store(true)
			s.signal()
			return
		}
		mx.subs = append(mx.subs, s)
		handles := make([]native.Handle, len(mx.members))
		for i, m := range mx.members {
			handles[i] = m.Handle()
		}
		s.push(MembershipEvent{Kind: EventReset, Members: slices.Clone(mx.members), Handles: handles})
	})
	return s, nil
}

func (mx *Mixer) publish(ev MembershipEvent) {
	live := mx.subs[:0]
	for _, s := range mx.subs {
		if s.closed.Load() {
			continue
		}
		s.push(ev)
		live = append(live, s)
	}
	clear(mx.subs[len(live):])
	mx.subs = live
}
