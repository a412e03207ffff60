package bfm

import (
	"fmt"

	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
)

// FlashOps builds flash commands out of register accesses.
//
// Every received byte is read back through the RX register, so each call that
// receives bytes also puts one item per byte on the result stream of the BFM.
// Every byte loaded into the data register puts one item on the data stream.
type FlashOps struct {
	bfm       *BFM
	pollLimit int
}

// NewFlashOps creates FlashOps on top of a BFM.
func NewFlashOps(bfm *BFM) *FlashOps {
	return &FlashOps{bfm: bfm, pollLimit: 1000}
}

// WithPollLimit sets the number of status reads after which WaitReady gives
// up.
func (o *FlashOps) WithPollLimit(n int) *FlashOps {
	o.pollLimit = n
	return o
}

// BFM returns the BFM that carries the commands.
func (o *FlashOps) BFM() *BFM {
	return o.bfm
}

// Command writes an opcode.
func (o *FlashOps) Command(p *sched.Proc, op flash.Opcode) error {
	if err := o.bfm.Write(p, flash.RegOpcode, byte(op)); err != nil {
		return fmt.Errorf("command %s: %w", op, err)
	}

	return nil
}

// Nop ends the active command.
func (o *FlashOps) Nop(p *sched.Proc) error {
	return o.Command(p, flash.Nop)
}

// Address writes the three address registers, high byte first. Writing the
// last one starts the address phase.
func (o *FlashOps) Address(p *sched.Proc, a flash.Address) error {
	regs := flash.AddressRegisters()
	for i, b := range a.Bytes() {
		if err := o.bfm.Write(p, regs[i], b); err != nil {
			return fmt.Errorf("address %s: %w", a, err)
		}
	}

	return nil
}

// SendByte transmits one data-phase byte and waits until it is on the wire.
func (o *FlashOps) SendByte(p *sched.Proc, v byte) error {
	if err := o.bfm.Write(p, flash.RegData, v); err != nil {
		return err
	}

	if err := o.bfm.Write(p, flash.RegCommit, flash.CommitMarker); err != nil {
		return err
	}

	if err := o.bfm.WaitFor(p, o.bfm.pins.ByteTxDone); err != nil {
		return fmt.Errorf("transmit 0x%02x: %w", v, err)
	}

	return nil
}

// ReceiveByte receives one data-phase byte and reads it back.
func (o *FlashOps) ReceiveByte(p *sched.Proc) (byte, error) {
	if err := o.bfm.Write(p, flash.RegCommit, flash.CommitMarker); err != nil {
		return 0, err
	}

	if err := o.bfm.WaitFor(p, o.bfm.pins.DV); err != nil {
		return 0, fmt.Errorf("receive: %w", err)
	}

	return o.bfm.Read(p, flash.RegRxData)
}

// WriteEnable sets the write enable latch of the flash.
func (o *FlashOps) WriteEnable(p *sched.Proc) error {
	return o.Command(p, flash.WriteEnable)
}

// WriteDisable clears the write enable latch of the flash.
func (o *FlashOps) WriteDisable(p *sched.Proc) error {
	return o.Command(p, flash.WriteDisable)
}

// WriteStatus writes the status register. The write enable latch must have
// been set before; WriteStatus does not set it.
func (o *FlashOps) WriteStatus(p *sched.Proc, s flash.Status) error {
	if err := o.Command(p, flash.WriteStatus); err != nil {
		return err
	}

	if err := o.SendByte(p, byte(s)); err != nil {
		return err
	}

	return o.Nop(p)
}

// ReadStatus reads the status register once.
func (o *FlashOps) ReadStatus(p *sched.Proc) (flash.Status, error) {
	if err := o.Command(p, flash.ReadStatus); err != nil {
		return 0, err
	}

	v, err := o.ReceiveByte(p)
	if err != nil {
		return 0, err
	}

	return flash.Status(v), o.Nop(p)
}

// WaitReady reads the status register until the write in progress bit
// clears. It returns the number of status bytes read.
func (o *FlashOps) WaitReady(p *sched.Proc) (int, error) {
	if err := o.Command(p, flash.ReadStatus); err != nil {
		return 0, err
	}

	for polls := 1; polls <= o.pollLimit; polls++ {
		v, err := o.ReceiveByte(p)
		if err != nil {
			return polls - 1, err
		}

		if !flash.Status(v).WIP() {
			return polls, o.Nop(p)
		}
	}

	return o.pollLimit, fmt.Errorf("%w: flash busy after %d status reads",
		sched.ErrTimeout, o.pollLimit)
}

// ProgramPage sets the write enable latch and programs one byte.
func (o *FlashOps) ProgramPage(p *sched.Proc, a flash.Address, v byte) error {
	return o.ProgramBurst(p, a, []byte{v})
}

// ProgramBurst sets the write enable latch and programs several bytes in one
// page program command. The flash wraps the bytes within the page.
func (o *FlashOps) ProgramBurst(
	p *sched.Proc,
	a flash.Address,
	data []byte,
) error {
	if err := o.WriteEnable(p); err != nil {
		return err
	}

	if err := o.Command(p, flash.PageProgram); err != nil {
		return err
	}

	if err := o.Address(p, a); err != nil {
		return err
	}

	for _, v := range data {
		if err := o.SendByte(p, v); err != nil {
			return err
		}
	}

	return o.Nop(p)
}

// ReadData reads one byte with the READ command.
func (o *FlashOps) ReadData(p *sched.Proc, a flash.Address) (byte, error) {
	data, err := o.ReadBurst(p, flash.ReadData, a, 1)
	if err != nil {
		return 0, err
	}

	return data[0], nil
}

// FastRead reads n bytes with the FAST_READ command.
func (o *FlashOps) FastRead(
	p *sched.Proc,
	a flash.Address,
	n int,
) ([]byte, error) {
	return o.ReadBurst(p, flash.FastRead, a, n)
}

// ReadBurst reads n consecutive bytes with a read command.
func (o *FlashOps) ReadBurst(
	p *sched.Proc,
	op flash.Opcode,
	a flash.Address,
	n int,
) ([]byte, error) {
	if op != flash.ReadData && op != flash.FastRead {
		return nil, fmt.Errorf("%s is not a read command", op)
	}

	if err := o.Command(p, op); err != nil {
		return nil, err
	}

	if err := o.Address(p, a); err != nil {
		return nil, err
	}

	data := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		v, err := o.ReceiveByte(p)
		if err != nil {
			return data, err
		}

		data = append(data, v)
	}

	return data, o.Nop(p)
}

// EraseSector sets the write enable latch and erases the sector that holds
// the address.
func (o *FlashOps) EraseSector(p *sched.Proc, a flash.Address) error {
	if err := o.WriteEnable(p); err != nil {
		return err
	}

	if err := o.Command(p, flash.SectorErase); err != nil {
		return err
	}

	return o.Address(p, a)
}

// EraseBulk sets the write enable latch and erases the whole flash.
func (o *FlashOps) EraseBulk(p *sched.Proc) error {
	if err := o.WriteEnable(p); err != nil {
		return err
	}

	return o.Command(p, flash.BulkErase)
}
