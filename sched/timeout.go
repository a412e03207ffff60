package sched

import (
	"errors"
	"fmt"

	"github.com/sarchlab/flashverif/signal"
)

// ErrTimeout is returned when a bounded wait does not complete in time.
var ErrTimeout = errors.New("timeout")

// AwaitWithin waits for the trigger, giving up after the given number of
// rising edges of the clock. A non-positive limit waits forever.
func (p *Proc) AwaitWithin(t Trigger, clk *signal.Signal, cycles int) error {
	if cycles <= 0 {
		return p.Await(t)
	}

	i, err := p.AwaitFirst(t, ClockCycles(clk, cycles))
	if i == 1 {
		return fmt.Errorf("%w: %s did not happen within %d cycles",
			ErrTimeout, t, cycles)
	}

	return err
}
