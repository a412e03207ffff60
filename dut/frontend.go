package dut

import (
	"github.com/sarchlab/flashverif/flash"
)

// frontEnd turns host bus cycles into register accesses.
type frontEnd interface {
	receiveSink

	reset()
	clearPulses()
	tick()
}

// StrobeFrontEnd accepts one register access at every rising clock edge at
// which the strobe is high. The acknowledgement pulses for one cycle and the
// read data stays on the output until the next read.
type StrobeFrontEnd struct {
	pins *StrobePins
	core *Controller

	accepted uint64
}

func newStrobeFrontEnd(pins *StrobePins, core *Controller) *StrobeFrontEnd {
	return &StrobeFrontEnd{pins: pins, core: core}
}

// Accepted returns the number of accepted bus cycles.
func (f *StrobeFrontEnd) Accepted() uint64 {
	return f.accepted
}

func (f *StrobeFrontEnd) reset() {
	f.pins.Ack.Set(0)
	f.pins.Out.Set(0)
}

func (f *StrobeFrontEnd) clearPulses() {
	f.pins.Ack.Set(0)
}

func (f *StrobeFrontEnd) tick() {
	if !f.pins.Stb.High() {
		return
	}

	reg := flash.Register(f.pins.Addr.Value())
	if f.pins.WE.High() {
		f.core.writeReg(reg, f.pins.Data.Byte())
	} else {
		f.pins.Out.Set(uint64(f.core.readReg(reg)))
	}

	f.accepted++
	f.pins.Ack.Set(1)
}

func (f *StrobeFrontEnd) onReceive(b byte) {
	f.pins.Out.Set(uint64(b))
}

// AXIFrontEnd is an AXI-lite slave. A write is accepted when the address and
// the data are valid at the same edge. Responses stay valid until the master
// is ready to take them.
type AXIFrontEnd struct {
	pins *AXIPins
	core *Controller

	accepted uint64
}

func newAXIFrontEnd(pins *AXIPins, core *Controller) *AXIFrontEnd {
	return &AXIFrontEnd{pins: pins, core: core}
}

// Accepted returns the number of accepted reads and writes.
func (f *AXIFrontEnd) Accepted() uint64 {
	return f.accepted
}

func (f *AXIFrontEnd) reset() {
	p := f.pins
	p.AWReady.Set(0)
	p.WReady.Set(0)
	p.BValid.Set(0)
	p.ARReady.Set(0)
	p.RValid.Set(0)
	p.RData.Set(0)
}

func (f *AXIFrontEnd) clearPulses() {
	f.pins.AWReady.Set(0)
	f.pins.WReady.Set(0)
	f.pins.ARReady.Set(0)
}

func (f *AXIFrontEnd) tick() {
	f.tickWrite()
	f.tickRead()
}

func (f *AXIFrontEnd) tickWrite() {
	p := f.pins

	if p.BValid.High() {
		if p.BReady.High() {
			p.BValid.Set(0)
		}

		return
	}

	if !p.AWValid.High() || !p.WValid.High() {
		return
	}

	if p.WStrb.High() {
		f.core.writeReg(flash.Register(p.AWAddr.Value()), p.WData.Byte())
	}

	f.accepted++
	p.AWReady.Set(1)
	p.WReady.Set(1)
	p.BValid.Set(1)
}

func (f *AXIFrontEnd) tickRead() {
	p := f.pins

	if p.RValid.High() {
		if p.RReady.High() {
			p.RValid.Set(0)
		}

		return
	}

	if !p.ARValid.High() {
		return
	}

	f.accepted++
	p.RData.Set(uint64(f.core.readReg(flash.Register(p.ARAddr.Value()))))
	p.ARReady.Set(1)
	p.RValid.Set(1)
}

func (f *AXIFrontEnd) onReceive(b byte) {
	if !f.pins.RValid.High() {
		f.pins.RData.Set(uint64(b))
	}
}
