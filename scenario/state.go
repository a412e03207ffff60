package scenario

import (
	"errors"
	"fmt"
)

// ErrBadTransition is returned when a scenario walks an edge that the
// command protocol does not have.
var ErrBadTransition = errors.New("bad state transition")

// State is a step of the command protocol that a scenario walks through.
type State int

// States of a scenario.
const (
	Reset State = iota
	Configure
	Command
	Address
	Data
	AwaitCompletion
	ReadBack
	Done
)

var stateNames = []string{
	"Reset",
	"Configure",
	"Command",
	"Address",
	"Data",
	"AwaitCompletion",
	"ReadBack",
	"Done",
}

func (s State) String() string {
	if s < Reset || s > Done {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

var transitions = map[State][]State{
	Reset:           {Configure, Command},
	Configure:       {Configure, Command},
	Command:         {Address, Data, AwaitCompletion},
	Address:         {Data, AwaitCompletion},
	Data:            {AwaitCompletion},
	AwaitCompletion: {ReadBack, Configure, Command},
	ReadBack:        {ReadBack, Configure, Command},
}

// CanTransit tells if a scenario may go from one state to another. Done can
// be entered from every state so that failed scenarios still finalize.
func CanTransit(from, to State) bool {
	if from == Done {
		return false
	}

	if to == Done {
		return true
	}

	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// Machine tracks the walk of a scenario. The walk starts with Reset.
type Machine struct {
	name   string
	walk   []State
	onDone func()
}

// NewMachine creates a machine that has not entered any state.
func NewMachine(name string) *Machine {
	return &Machine{name: name}
}

// OnDone sets the function to call when the machine enters Done.
func (m *Machine) OnDone(fn func()) {
	m.onDone = fn
}

// Started tells if the machine has entered a state.
func (m *Machine) Started() bool {
	return len(m.walk) > 0
}

// State returns the current state. It is Reset before the machine starts.
func (m *Machine) State() State {
	if len(m.walk) == 0 {
		return Reset
	}

	return m.walk[len(m.walk)-1]
}

// Walk returns all the states entered so far, in order.
func (m *Machine) Walk() []State {
	return m.walk
}

// Enter moves the machine into a state.
func (m *Machine) Enter(s State) error {
	if !m.Started() {
		if s != Reset {
			return fmt.Errorf("%w: %s must start with %s, not %s",
				ErrBadTransition, m.name, Reset, s)
		}

		m.walk = append(m.walk, s)

		return nil
	}

	from := m.State()
	if !CanTransit(from, s) {
		return fmt.Errorf("%w: %s cannot go from %s to %s",
			ErrBadTransition, m.name, from, s)
	}

	m.walk = append(m.walk, s)

	if s == Done && m.onDone != nil {
		m.onDone()
	}

	return nil
}

// Count returns how many times the machine entered a state.
func (m *Machine) Count(s State) int {
	n := 0

	for _, w := range m.walk {
		if w == s {
			n++
		}
	}

	return n
}
