// Package bfm provides the bus functional model that drives the register
// interface of the controller and observes its completion signals.
package bfm

import (
	"fmt"

	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
	"github.com/sarchlab/flashverif/tracing"
)

// Task kinds of the bus transactions.
const (
	TaskKindWrite = "bus_write"
	TaskKindRead  = "bus_read"
)

// BFM turns register reads and writes into bus cycles. It carries at most one
// transaction at a time. It also watches the transmit and receive indicators
// of the controller and collects the bytes they announce.
type BFM struct {
	*sim.ComponentBase

	kernel   *sched.Kernel
	pins     *dut.Pins
	clk      *signal.Signal
	protocol Protocol

	pending *sched.Queue
	data    *sched.Queue
	results *sched.Queue

	deadline     int
	resetCycles  int
	resultWindow int

	started  bool
	issued   uint64
	timeouts uint64
}

// Protocol returns the bus protocol that the BFM drives.
func (b *BFM) Protocol() Protocol {
	return b.protocol
}

// Pending returns the single-slot queue between the callers and the driver.
func (b *BFM) Pending() *sched.Queue {
	return b.pending
}

// Queues returns the command, data, and result queues of the BFM.
func (b *BFM) Queues() []*sched.Queue {
	return []*sched.Queue{b.pending, b.data, b.results}
}

// Deadline returns the number of cycles that a wait may take.
func (b *BFM) Deadline() int {
	return b.deadline
}

// Clock returns the clock pin that paces the BFM.
func (b *BFM) Clock() *signal.Signal {
	return b.clk
}

// Pins returns the pins that the BFM drives and watches.
func (b *BFM) Pins() *dut.Pins {
	return b.pins
}

// Issued returns the number of transactions that went out on the bus.
func (b *BFM) Issued() uint64 {
	return b.issued
}

// Timeouts returns the number of transactions that the controller never
// acknowledged.
func (b *BFM) Timeouts() uint64 {
	return b.timeouts
}

// InFlight returns the number of transactions waiting for or being driven on
// the bus. It is never more than one.
func (b *BFM) InFlight() int {
	return b.pending.Len()
}

// Start launches the driver and the two monitor processes. It is safe to
// call more than once.
func (b *BFM) Start() {
	if b.started {
		return
	}

	b.started = true
	b.protocol.Idle()

	b.kernel.Start(b.Name()+".Driver", b.drive)
	b.kernel.Start(b.Name()+".DataMonitor", b.watchData)
	b.kernel.Start(b.Name()+".ResultMonitor", b.watchResults)
}

// Reset holds the controller in reset for the configured number of cycles,
// releases it, and waits for one more clock edge.
func (b *BFM) Reset(p *sched.Proc) error {
	b.protocol.Idle()
	b.protocol.SetReset(true)

	if err := p.Await(sched.ClockCycles(b.clk, b.resetCycles)); err != nil {
		return err
	}

	b.protocol.SetReset(false)

	return b.edge(p)
}

// Write writes a register. It returns once the controller has acknowledged.
func (b *BFM) Write(p *sched.Proc, reg flash.Register, v byte) error {
	cmd := newCommand(sim.GetIDGenerator().Generate(), OpWrite, reg, v)
	return b.submit(p, cmd)
}

// Read reads a register.
func (b *BFM) Read(p *sched.Proc, reg flash.Register) (byte, error) {
	cmd := newCommand(sim.GetIDGenerator().Generate(), OpRead, reg, 0)
	if err := b.submit(p, cmd); err != nil {
		return 0, err
	}

	return cmd.Result, nil
}

// GetData returns the next byte that the controller announced for
// transmission, waiting until there is one.
func (b *BFM) GetData(p *sched.Proc) (byte, error) {
	item, err := b.data.Get(p)
	if err != nil {
		return 0, err
	}

	return item.(byte), nil
}

// GetResult returns the next byte that the controller received from the
// flash and the host read back, waiting until there is one.
func (b *BFM) GetResult(p *sched.Proc) (byte, error) {
	item, err := b.results.Get(p)
	if err != nil {
		return 0, err
	}

	return item.(byte), nil
}

// WaitFor waits for a rising edge of the pin within the deadline.
func (b *BFM) WaitFor(p *sched.Proc, pin *signal.Signal) error {
	return p.AwaitWithin(sched.RisingEdge(pin), b.clk, b.deadline)
}

// Cycles waits for n rising clock edges.
func (b *BFM) Cycles(p *sched.Proc, n int) error {
	return p.Await(sched.ClockCycles(b.clk, n))
}

func (b *BFM) edge(p *sched.Proc) error {
	return p.AwaitWithin(sched.RisingEdge(b.clk), b.clk, 2)
}

func (b *BFM) submit(p *sched.Proc, cmd *Command) error {
	if !b.started {
		return fmt.Errorf("%s: %s before start", b.Name(), cmd)
	}

	if err := b.pending.Put(p, cmd); err != nil {
		return err
	}

	if err := p.Await(cmd.done.Wait()); err != nil {
		return err
	}

	return cmd.err
}

// drive is the only process that writes the host bus pins after reset.
func (b *BFM) drive(p *sched.Proc) error {
	for {
		if err := p.Await(b.pending.Available()); err != nil {
			return err
		}

		if err := p.Await(sched.RisingEdge(b.clk)); err != nil {
			return err
		}

		item, _ := b.pending.Peek()
		cmd := item.(*Command)

		if err := b.execute(p, cmd); err != nil {
			return err
		}

		b.pending.TryGet()
		cmd.done.Set()
	}
}

func (b *BFM) execute(p *sched.Proc, cmd *Command) error {
	kind := TaskKindWrite
	if cmd.Op == OpRead {
		kind = TaskKindRead
	}

	tracing.StartTask(cmd.ID, "", b, kind, cmd.Reg.String(), cmd)
	defer tracing.EndTask(cmd.ID, b)

	b.issued++
	b.protocol.Begin(cmd)

	for waited := 0; ; waited++ {
		if waited >= b.deadline {
			b.protocol.Idle()
			b.timeouts++
			cmd.err = fmt.Errorf("%w: %s not acknowledged within %d cycles",
				sched.ErrTimeout, cmd, b.deadline)
			tracing.AddTaskStep(cmd.ID, b, "timeout")

			return nil
		}

		if err := p.Await(sched.RisingEdge(b.clk)); err != nil {
			return err
		}

		if b.protocol.Poll(cmd) {
			tracing.AddTaskStep(cmd.ID, b, "ack")
			return nil
		}
	}
}

func (b *BFM) watchData(p *sched.Proc) error {
	for {
		if err := p.Await(sched.RisingEdge(b.pins.DataToTx)); err != nil {
			return err
		}

		b.data.TryPut(b.pins.TxByte.Byte())
	}
}

// watchResults captures the read data after each received byte. It waits
// for o_dv to fall, then for the acknowledgement of the read that follows,
// then for one more clock edge.
func (b *BFM) watchResults(p *sched.Proc) error {
	ack := b.protocol.ResultAck()

	for {
		if err := p.Await(sched.FallingEdge(b.pins.DV)); err != nil {
			return err
		}

		err := p.AwaitWithin(sched.RisingEdge(ack), b.clk, b.resultWindow)
		if err != nil {
			continue
		}

		if err := p.Await(sched.RisingEdge(b.clk)); err != nil {
			return err
		}

		b.results.TryPut(b.protocol.ResultData().Byte())
	}
}
