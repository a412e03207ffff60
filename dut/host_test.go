package dut

import (
	"fmt"

	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
)

// host drives the register bus of a device directly from a process.
type host struct {
	d *Device
	p *sched.Proc
}

func (h host) edge() error {
	return h.p.AwaitWithin(sched.RisingEdge(h.d.pins.Clk), h.d.pins.Clk, 2)
}

func (h host) cycles(n int) error {
	return h.p.Await(sched.ClockCycles(h.d.pins.Clk, n))
}

func (h host) reset() error {
	h.d.pins.RstN.Set(0)
	if err := h.cycles(5); err != nil {
		return err
	}
	h.d.pins.RstN.Set(1)

	return h.edge()
}

func (h host) write(reg flash.Register, v byte) error {
	if h.d.variant == AXIBus {
		return h.axiWrite(reg, v)
	}

	s := h.d.pins.Strobe
	s.Addr.Set(uint64(reg))
	s.Data.Set(uint64(v))
	s.WE.Set(1)
	s.Stb.Set(1)

	for i := 0; i < 10; i++ {
		if err := h.edge(); err != nil {
			return err
		}

		if s.Ack.High() {
			s.Stb.Set(0)
			s.WE.Set(0)

			return h.edge()
		}
	}

	return fmt.Errorf("write of %s not acknowledged", reg)
}

func (h host) read(reg flash.Register) (byte, error) {
	if h.d.variant == AXIBus {
		return h.axiRead(reg)
	}

	s := h.d.pins.Strobe
	s.Addr.Set(uint64(reg))
	s.WE.Set(0)
	s.Stb.Set(1)

	for i := 0; i < 10; i++ {
		if err := h.edge(); err != nil {
			return 0, err
		}

		if s.Ack.High() {
			s.Stb.Set(0)
			v := s.Out.Byte()

			return v, h.edge()
		}
	}

	return 0, fmt.Errorf("read of %s not acknowledged", reg)
}

func (h host) axiWrite(reg flash.Register, v byte) error {
	a := h.d.pins.AXI
	a.AWAddr.Set(uint64(reg))
	a.WData.Set(uint64(v))
	a.WStrb.Set(1)
	a.AWValid.Set(1)
	a.WValid.Set(1)
	a.BReady.Set(1)

	for i := 0; i < 10; i++ {
		if err := h.edge(); err != nil {
			return err
		}

		if a.AWReady.High() && a.WReady.High() {
			a.AWValid.Set(0)
			a.WValid.Set(0)
		}

		if !a.AWValid.High() && !a.BValid.High() {
			a.BReady.Set(0)
			return nil
		}
	}

	return fmt.Errorf("axi write of %s not acknowledged", reg)
}

func (h host) axiRead(reg flash.Register) (byte, error) {
	a := h.d.pins.AXI
	a.ARAddr.Set(uint64(reg))
	a.ARValid.Set(1)
	a.RReady.Set(1)

	var v byte
	for i := 0; i < 10; i++ {
		if err := h.edge(); err != nil {
			return 0, err
		}

		if a.ARReady.High() {
			a.ARValid.Set(0)
		}

		if a.RValid.High() {
			v = a.RData.Byte()
			continue
		}

		if !a.ARValid.High() {
			a.RReady.Set(0)
			return v, nil
		}
	}

	return 0, fmt.Errorf("axi read of %s not acknowledged", reg)
}

func (h host) command(op flash.Opcode) error {
	return h.write(flash.RegOpcode, byte(op))
}

func (h host) address(a flash.Address) error {
	for i, b := range a.Bytes() {
		if err := h.write(flash.AddressRegisters()[i], b); err != nil {
			return err
		}
	}

	return nil
}

func (h host) waitPin(pin func() bool, limit int) error {
	for i := 0; i < limit; i++ {
		if err := h.edge(); err != nil {
			return err
		}

		if pin() {
			return nil
		}
	}

	return fmt.Errorf("pin did not rise within %d cycles", limit)
}

func (h host) sendByte(v byte) error {
	if err := h.write(flash.RegData, v); err != nil {
		return err
	}

	if err := h.write(flash.RegCommit, flash.CommitMarker); err != nil {
		return err
	}

	return h.waitPin(h.d.pins.ByteTxDone.High, 200)
}

func (h host) receiveByte() (byte, error) {
	if err := h.write(flash.RegCommit, flash.CommitMarker); err != nil {
		return 0, err
	}

	if err := h.waitPin(h.d.pins.DV.High, 200); err != nil {
		return 0, err
	}

	return h.read(flash.RegRxData)
}

func (h host) waitIdle() error {
	return h.waitPin(func() bool { return !h.d.core.Busy() }, 400)
}

func (h host) waitReady() error {
	for i := 0; i < 100; i++ {
		if err := h.command(flash.ReadStatus); err != nil {
			return err
		}

		s, err := h.receiveByte()
		if err != nil {
			return err
		}

		if err := h.command(flash.Nop); err != nil {
			return err
		}

		if !flash.Status(s).WIP() {
			return h.waitIdle()
		}
	}

	return fmt.Errorf("flash stays busy")
}

func (h host) program(a flash.Address, data ...byte) error {
	if err := h.command(flash.WriteEnable); err != nil {
		return err
	}

	if err := h.command(flash.PageProgram); err != nil {
		return err
	}

	if err := h.address(a); err != nil {
		return err
	}

	for _, b := range data {
		if err := h.sendByte(b); err != nil {
			return err
		}
	}

	if err := h.command(flash.Nop); err != nil {
		return err
	}

	return h.waitReady()
}

func (h host) readData(op flash.Opcode, a flash.Address, n int) ([]byte, error) {
	if err := h.command(op); err != nil {
		return nil, err
	}

	if err := h.address(a); err != nil {
		return nil, err
	}

	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := h.receiveByte()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}

	return out, h.command(flash.Nop)
}
