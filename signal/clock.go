package signal

import (
	"github.com/sarchlab/flashverif/sim"
)

// clockEvent toggles the clock signal.
type clockEvent struct {
	*sim.EventBase

	halfCycle  uint64
	generation uint64
}

// A Clock drives a 1-bit signal at a fixed frequency. The signal rises at the
// start of every period and falls in the middle of it.
type Clock struct {
	*sim.ComponentBase

	engine sim.Engine
	freq   sim.Freq
	signal *Signal

	running    bool
	generation uint64
	start      sim.VTimeInSec
	cycles     uint64
}

// NewClock creates a clock that drives the given signal. The clock does not
// tick until Start is called.
func NewClock(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	sig *Signal,
) *Clock {
	return &Clock{
		ComponentBase: sim.NewComponentBase(name),
		engine:        engine,
		freq:          freq,
		signal:        sig,
	}
}

// Signal returns the clock signal.
func (c *Clock) Signal() *Signal {
	return c.signal
}

// Freq returns the clock frequency.
func (c *Clock) Freq() sim.Freq {
	return c.freq
}

// Cycles returns the number of rising edges driven so far.
func (c *Clock) Cycles() uint64 {
	return c.cycles
}

// Running tells if the clock is ticking.
func (c *Clock) Running() bool {
	return c.running
}

// Start makes the clock rise at the current time and keep toggling.
func (c *Clock) Start() {
	if c.running {
		return
	}

	c.running = true
	c.generation++
	c.start = c.engine.CurrentTime()

	c.scheduleHalfCycle(0)
}

// Stop stops the clock after the current half cycle. The signal keeps its
// last value.
func (c *Clock) Stop() {
	c.running = false
	c.generation++
}

func (c *Clock) scheduleHalfCycle(n uint64) {
	t := c.start + (c.freq * 2).CycleTime(n)
	evt := &clockEvent{
		EventBase:  sim.NewEventBase(t, c),
		halfCycle:  n,
		generation: c.generation,
	}

	c.engine.Schedule(evt)
}

// Handle toggles the clock signal.
func (c *Clock) Handle(e sim.Event) error {
	evt := e.(*clockEvent)
	if !c.running || evt.generation != c.generation {
		return nil
	}

	// The next toggle is scheduled first so that listeners reacting to this
	// edge can stop the clock.
	c.scheduleHalfCycle(evt.halfCycle + 1)

	if evt.halfCycle%2 == 0 {
		c.cycles++
		c.signal.Set(1)
	} else {
		c.signal.Set(0)
	}

	return nil
}
