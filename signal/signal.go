// Package signal provides the wires and clocks that connect the verification
// harness to the device under test.
//
// A Signal carries an unsigned value of up to 64 bits. Modeled hardware
// subscribes with listeners, which run synchronously whenever the value
// changes. Harness processes register one-shot edge waiters instead; they
// are woken after all the listeners have reacted to the change.
package signal

import (
	"fmt"
	"log"

	"github.com/sarchlab/flashverif/sim"
)

// Edge selects which transitions of a signal are of interest.
type Edge int

// The edges a waiter can select.
const (
	AnyEdge Edge = iota
	Rising
	Falling
)

func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "any"
	}
}

// matches tells if a change from old to new is an edge of this kind. Rising
// and falling edges look at bit 0 only.
func (e Edge) matches(old, new uint64) bool {
	switch e {
	case Rising:
		return old&1 == 0 && new&1 == 1
	case Falling:
		return old&1 == 1 && new&1 == 0
	default:
		return old != new
	}
}

// HookPosChange marks a value change of a signal. The hook item is a Change.
var HookPosChange = &sim.HookPos{Name: "SignalChange"}

// A Change describes one value change of a signal.
type Change struct {
	Signal *Signal
	Old    uint64
	New    uint64
}

// A Listener is modeled logic that reacts to every change of a signal.
type Listener interface {
	OnChange(c Change)
}

// ListenerFunc turns a function into a Listener.
type ListenerFunc func(c Change)

// OnChange calls the function.
func (f ListenerFunc) OnChange(c Change) {
	f(c)
}

type waiter struct {
	edge     Edge
	fn       func()
	canceled bool
}

// Signal is a named wire.
type Signal struct {
	sim.HookableBase

	name      string
	width     int
	mask      uint64
	value     uint64
	listeners []Listener
	waiters   []*waiter
}

// New creates a signal with the given bit width. The initial value is 0.
func New(name string, width int) *Signal {
	if width < 1 || width > 64 {
		log.Panicf("signal %s: width %d out of range", name, width)
	}

	mask := ^uint64(0)
	if width < 64 {
		mask = (uint64(1) << width) - 1
	}

	return &Signal{
		name:  name,
		width: width,
		mask:  mask,
	}
}

// Name returns the name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Width returns the number of bits of the signal.
func (s *Signal) Width() int {
	return s.width
}

// Value returns the current value.
func (s *Signal) Value() uint64 {
	return s.value
}

// High tells if bit 0 is set.
func (s *Signal) High() bool {
	return s.value&1 == 1
}

// Byte returns the low 8 bits of the value.
func (s *Signal) Byte() byte {
	return byte(s.value)
}

// SetBool drives a 1-bit value.
func (s *Signal) SetBool(b bool) {
	if b {
		s.Set(1)
		return
	}

	s.Set(0)
}

// Set drives a new value. Bits beyond the width are dropped. Listeners run
// before waiters are woken.
func (s *Signal) Set(v uint64) {
	v &= s.mask
	if v == s.value {
		return
	}

	c := Change{Signal: s, Old: s.value, New: v}
	s.value = v

	if s.NumHooks() > 0 {
		s.InvokeHook(sim.HookCtx{
			Domain: s,
			Pos:    HookPosChange,
			Item:   c,
		})
	}

	for _, l := range s.listeners {
		l.OnChange(c)
	}

	s.wake(c)
}

func (s *Signal) wake(c Change) {
	if len(s.waiters) == 0 {
		return
	}

	var fired []*waiter

	remaining := s.waiters[:0]
	for _, w := range s.waiters {
		switch {
		case w.canceled:
		case w.edge.matches(c.Old, c.New):
			fired = append(fired, w)
		default:
			remaining = append(remaining, w)
		}
	}

	for i := len(remaining); i < len(s.waiters); i++ {
		s.waiters[i] = nil
	}
	s.waiters = remaining

	for _, w := range fired {
		w.fn()
	}
}

// Listen subscribes modeled logic to every change of the signal.
func (s *Signal) Listen(l Listener) {
	s.listeners = append(s.listeners, l)
}

// OnEdge registers a one-shot callback for the next edge of the given kind.
// The returned function cancels the registration.
func (s *Signal) OnEdge(e Edge, fn func()) (cancel func()) {
	w := &waiter{edge: e, fn: fn}
	s.waiters = append(s.waiters, w)

	return func() { w.canceled = true }
}

func (s *Signal) String() string {
	return fmt.Sprintf("%s=%#x", s.name, s.value)
}
