package bfm

import (
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/signal"
)

// A Protocol knows how to drive one kind of host bus. The BFM calls Begin
// right after a rising clock edge, and Poll after each following rising edge
// until Poll reports that the command is complete.
type Protocol interface {
	// Idle drives every host-side pin to its inactive level.
	Idle()

	// SetReset drives the reset pin. The reset is active low on the pin.
	SetReset(active bool)

	// Begin starts driving the command.
	Begin(cmd *Command)

	// Poll checks the response pins and returns true once the command is
	// complete. It fills the result of reads.
	Poll(cmd *Command) bool

	// ResultAck is the pin that acknowledges a register read.
	ResultAck() *signal.Signal

	// ResultData is the pin that carries the read data.
	ResultData() *signal.Signal
}

// NewProtocol returns the protocol that matches the bus variant of the pins.
func NewProtocol(v dut.Variant, pins *dut.Pins) Protocol {
	switch v {
	case dut.AXIBus:
		return &AXIProtocol{pins: pins}
	default:
		return &StrobeProtocol{pins: pins}
	}
}

// StrobeProtocol drives the strobe register bus. It holds the strobe until
// the controller acknowledges.
type StrobeProtocol struct {
	pins *dut.Pins
}

// Idle releases the strobe.
func (s *StrobeProtocol) Idle() {
	bus := s.pins.Strobe
	bus.Stb.Set(0)
	bus.WE.Set(0)
}

// SetReset drives rst_n.
func (s *StrobeProtocol) SetReset(active bool) {
	s.pins.RstN.SetBool(!active)
}

// Begin drives the address, the data, and the strobe.
func (s *StrobeProtocol) Begin(cmd *Command) {
	bus := s.pins.Strobe
	bus.Addr.Set(uint64(cmd.Reg))

	if cmd.Op == OpWrite {
		bus.Data.Set(uint64(cmd.Value))
		bus.WE.Set(1)
	} else {
		bus.WE.Set(0)
	}

	bus.Stb.Set(1)
}

// Poll completes the command at the edge where o_ack is high.
func (s *StrobeProtocol) Poll(cmd *Command) bool {
	bus := s.pins.Strobe
	if !bus.Ack.High() {
		return false
	}

	if cmd.Op == OpRead {
		cmd.Result = bus.Out.Byte()
	}

	s.Idle()

	return true
}

// ResultAck returns o_ack.
func (s *StrobeProtocol) ResultAck() *signal.Signal {
	return s.pins.Strobe.Ack
}

// ResultData returns o_data.
func (s *StrobeProtocol) ResultData() *signal.Signal {
	return s.pins.Strobe.Out
}

// AXIProtocol drives the AXI-lite register bus. Writes present the address
// and the data together and wait for the write response. Reads wait for the
// read response.
type AXIProtocol struct {
	pins *dut.Pins
}

// Idle drops every valid and ready.
func (a *AXIProtocol) Idle() {
	bus := a.pins.AXI
	bus.AWValid.Set(0)
	bus.WValid.Set(0)
	bus.WStrb.Set(0)
	bus.BReady.Set(0)
	bus.ARValid.Set(0)
	bus.RReady.Set(0)
}

// SetReset drives rst_n.
func (a *AXIProtocol) SetReset(active bool) {
	a.pins.RstN.SetBool(!active)
}

// Begin raises the valids of the request channels and the ready of the
// response channel.
func (a *AXIProtocol) Begin(cmd *Command) {
	bus := a.pins.AXI
	cmd.respSeen = false

	if cmd.Op == OpWrite {
		bus.AWAddr.Set(uint64(cmd.Reg))
		bus.WData.Set(uint64(cmd.Value))
		bus.WStrb.Set(1)
		bus.AWValid.Set(1)
		bus.WValid.Set(1)
		bus.BReady.Set(1)

		return
	}

	bus.ARAddr.Set(uint64(cmd.Reg))
	bus.ARValid.Set(1)
	bus.RReady.Set(1)
}

// Poll drops the request valids once the slave is ready and completes the
// command after the response has been taken.
func (a *AXIProtocol) Poll(cmd *Command) bool {
	if cmd.Op == OpWrite {
		return a.pollWrite(cmd)
	}

	return a.pollRead(cmd)
}

func (a *AXIProtocol) pollWrite(cmd *Command) bool {
	bus := a.pins.AXI

	if bus.AWReady.High() && bus.WReady.High() {
		bus.AWValid.Set(0)
		bus.WValid.Set(0)
	}

	if bus.BValid.High() {
		cmd.respSeen = true
		return false
	}

	if !cmd.respSeen {
		return false
	}

	bus.BReady.Set(0)
	bus.WStrb.Set(0)

	return true
}

func (a *AXIProtocol) pollRead(cmd *Command) bool {
	bus := a.pins.AXI

	if bus.ARReady.High() {
		bus.ARValid.Set(0)
	}

	if bus.RValid.High() {
		cmd.Result = bus.RData.Byte()
		cmd.respSeen = true

		return false
	}

	if !cmd.respSeen {
		return false
	}

	bus.RReady.Set(0)

	return true
}

// ResultAck returns S_AXI_RVALID.
func (a *AXIProtocol) ResultAck() *signal.Signal {
	return a.pins.AXI.RValid
}

// ResultData returns S_AXI_RDATA.
func (a *AXIProtocol) ResultData() *signal.Signal {
	return a.pins.AXI.RData
}
