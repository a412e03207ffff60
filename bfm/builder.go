package bfm

import (
	"log"

	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/sim"
)

// Builder builds BFMs.
type Builder struct {
	kernel       *sched.Kernel
	variant      dut.Variant
	pins         *dut.Pins
	deadline     int
	resetCycles  int
	resultWindow int
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		deadline:     1000,
		resetCycles:  5,
		resultWindow: 64,
	}
}

// WithKernel sets the kernel that runs the BFM processes.
func (b Builder) WithKernel(k *sched.Kernel) Builder {
	b.kernel = k
	return b
}

// WithPins sets the pins to drive and the bus they belong to.
func (b Builder) WithPins(v dut.Variant, pins *dut.Pins) Builder {
	b.variant = v
	b.pins = pins

	return b
}

// WithDeadline sets the number of cycles that any wait may take.
func (b Builder) WithDeadline(cycles int) Builder {
	b.deadline = cycles
	return b
}

// WithResetCycles sets how long the reset is held.
func (b Builder) WithResetCycles(cycles int) Builder {
	b.resetCycles = cycles
	return b
}

// WithResultWindow sets how many cycles the result monitor waits for the
// read that follows a received byte.
func (b Builder) WithResultWindow(cycles int) Builder {
	b.resultWindow = cycles
	return b
}

// Build creates a BFM.
func (b Builder) Build(name string) *BFM {
	if b.kernel == nil {
		log.Panic("bfm: kernel is not set")
	}

	if b.pins == nil {
		log.Panic("bfm: pins are not set")
	}

	return &BFM{
		ComponentBase: sim.NewComponentBase(name),
		kernel:        b.kernel,
		pins:          b.pins,
		clk:           b.pins.Clk,
		protocol:      NewProtocol(b.variant, b.pins),
		pending:       sched.NewQueue(name+".Pending", 1),
		data:          sched.NewQueue(name+".Data", 0),
		results:       sched.NewQueue(name+".Results", 0),
		deadline:      b.deadline,
		resetCycles:   b.resetCycles,
		resultWindow:  b.resultWindow,
	}
}
