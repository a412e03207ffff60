package sched

import (
	"fmt"
	"strings"

	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
)

// A Trigger is a condition that a process can await.
type Trigger interface {
	fmt.Stringer

	// Prime arranges for fire to be called once the condition holds. Fire may
	// be called more than once, and may be called before Prime returns. The
	// returned function withdraws the arrangement.
	Prime(k *Kernel, fire func(err error)) (cancel func())
}

type edgeTrigger struct {
	sig  *signal.Signal
	edge signal.Edge
}

// RisingEdge fires at the next rising edge of the signal.
func RisingEdge(s *signal.Signal) Trigger {
	return edgeTrigger{sig: s, edge: signal.Rising}
}

// FallingEdge fires at the next falling edge of the signal.
func FallingEdge(s *signal.Signal) Trigger {
	return edgeTrigger{sig: s, edge: signal.Falling}
}

// Edge fires at the next value change of the signal.
func Edge(s *signal.Signal) Trigger {
	return edgeTrigger{sig: s, edge: signal.AnyEdge}
}

func (t edgeTrigger) String() string {
	return fmt.Sprintf("%s edge of %s", t.edge, t.sig.Name())
}

func (t edgeTrigger) Prime(_ *Kernel, fire func(err error)) func() {
	return t.sig.OnEdge(t.edge, func() { fire(nil) })
}

type cyclesTrigger struct {
	clk *signal.Signal
	n   int
}

// ClockCycles fires at the n-th rising edge of the clock from now. With n
// equal to 0 it fires right away.
func ClockCycles(clk *signal.Signal, n int) Trigger {
	return cyclesTrigger{clk: clk, n: n}
}

func (t cyclesTrigger) String() string {
	return fmt.Sprintf("%d cycles of %s", t.n, t.clk.Name())
}

func (t cyclesTrigger) Prime(_ *Kernel, fire func(err error)) func() {
	if t.n <= 0 {
		fire(nil)
		return func() {}
	}

	left := t.n
	var cancel func()
	var onEdge func()
	onEdge = func() {
		left--
		if left == 0 {
			fire(nil)
			return
		}

		cancel = t.clk.OnEdge(signal.Rising, onEdge)
	}
	cancel = t.clk.OnEdge(signal.Rising, onEdge)

	return func() { cancel() }
}

type timerTrigger struct {
	d sim.VTimeInSec
}

// Timer fires after the given amount of simulated time.
func Timer(d sim.VTimeInSec) Trigger {
	return timerTrigger{d: d}
}

func (t timerTrigger) String() string {
	return fmt.Sprintf("timer of %gs", float64(t.d))
}

func (t timerTrigger) Prime(k *Kernel, fire func(err error)) func() {
	canceled := false

	k.scheduleTimer(k.Now()+t.d, func() {
		if !canceled {
			fire(nil)
		}
	})

	return func() { canceled = true }
}

type firstTrigger struct {
	triggers []Trigger
}

// First fires when any of the triggers fires.
func First(triggers ...Trigger) Trigger {
	return firstTrigger{triggers: triggers}
}

func (t firstTrigger) String() string {
	names := make([]string, 0, len(t.triggers))
	for _, tr := range t.triggers {
		names = append(names, tr.String())
	}

	return "first of (" + strings.Join(names, ", ") + ")"
}

func (t firstTrigger) Prime(k *Kernel, fire func(err error)) func() {
	cancels := make([]func(), 0, len(t.triggers))
	for _, tr := range t.triggers {
		cancels = append(cancels, tr.Prime(k, fire))
	}

	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

type joinTrigger struct {
	p *Proc
}

// Join fires when the process finishes. It fires with the error of the
// process.
func Join(p *Proc) Trigger {
	return joinTrigger{p: p}
}

func (t joinTrigger) String() string {
	return "join of " + t.p.name
}

func (t joinTrigger) Prime(k *Kernel, fire func(err error)) func() {
	return t.p.done.Wait().Prime(k, func(error) { fire(t.p.err) })
}
