package scenario

import (
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/scoreboard"
)

// The steps below drive one phase of a flash command each and move the state
// machine along. Results that are not data, such as status polls, are
// announced to the scoreboard as don't-care so that the result stream stays
// paired with the expectations.

// WriteEnable sets the write enable latch.
func (e *Env) WriteEnable(p *sched.Proc) error {
	if err := e.Enter(Configure); err != nil {
		return err
	}

	return e.ops.WriteEnable(p)
}

// WriteDisable clears the write enable latch.
func (e *Env) WriteDisable(p *sched.Proc) error {
	if err := e.Enter(Configure); err != nil {
		return err
	}

	return e.ops.WriteDisable(p)
}

// Command sends an opcode.
func (e *Env) Command(p *sched.Proc, op flash.Opcode) error {
	if err := e.Enter(Command); err != nil {
		return err
	}

	return e.ops.Command(p, op)
}

// Address sends the three address bytes.
func (e *Env) Address(p *sched.Proc, a flash.Address) error {
	if err := e.Enter(Address); err != nil {
		return err
	}

	return e.ops.Address(p, a)
}

// Transmit sends one byte of the data phase.
func (e *Env) Transmit(p *sched.Proc, v byte) error {
	if e.machine.State() != Data {
		if err := e.Enter(Data); err != nil {
			return err
		}
	}

	return e.ops.SendByte(p, v)
}

// EndCommand ends the active command with a NOP.
func (e *Env) EndCommand(p *sched.Proc) error {
	return e.ops.Nop(p)
}

// Data transmits the bytes of the data phase and ends the command.
func (e *Env) Data(p *sched.Proc, data ...byte) error {
	if err := e.Enter(Data); err != nil {
		return err
	}

	for _, v := range data {
		if err := e.ops.SendByte(p, v); err != nil {
			return err
		}
	}

	return e.EndCommand(p)
}

// AwaitCompletion polls the status register until the flash is idle.
func (e *Env) AwaitCompletion(p *sched.Proc) error {
	if err := e.Enter(AwaitCompletion); err != nil {
		return err
	}

	polls, err := e.ops.WaitReady(p)
	for i := 0; i < polls; i++ {
		e.board.Expect(scoreboard.DontCare())
	}

	if err != nil {
		return err
	}

	return e.board.Check()
}

// Program writes the bytes with a page program command and waits until the
// flash has stored them.
func (e *Env) Program(p *sched.Proc, a flash.Address, data ...byte) error {
	if err := e.WriteEnable(p); err != nil {
		return err
	}

	if err := e.Command(p, flash.PageProgram); err != nil {
		return err
	}

	if err := e.Address(p, a); err != nil {
		return err
	}

	if err := e.Data(p, data...); err != nil {
		return err
	}

	return e.AwaitCompletion(p)
}

// WriteStatus writes the status register and waits for the write to finish.
// The write enable latch is not touched.
func (e *Env) WriteStatus(p *sched.Proc, s flash.Status) error {
	if err := e.Command(p, flash.WriteStatus); err != nil {
		return err
	}

	if err := e.Data(p, byte(s)); err != nil {
		return err
	}

	return e.AwaitCompletion(p)
}

// EraseSector erases the sector that holds the address.
func (e *Env) EraseSector(p *sched.Proc, a flash.Address) error {
	if err := e.WriteEnable(p); err != nil {
		return err
	}

	if err := e.Command(p, flash.SectorErase); err != nil {
		return err
	}

	if err := e.Address(p, a); err != nil {
		return err
	}

	return e.AwaitCompletion(p)
}

// EraseBulk erases the whole flash.
func (e *Env) EraseBulk(p *sched.Proc) error {
	if err := e.WriteEnable(p); err != nil {
		return err
	}

	if err := e.Command(p, flash.BulkErase); err != nil {
		return err
	}

	return e.AwaitCompletion(p)
}

// ReadBack reads n bytes with a read command. The expectations of the bytes
// must be queued before.
func (e *Env) ReadBack(
	p *sched.Proc,
	op flash.Opcode,
	a flash.Address,
	n int,
) ([]byte, error) {
	if err := e.Enter(ReadBack); err != nil {
		return nil, err
	}

	data, err := e.ops.ReadBurst(p, op, a, n)
	if err != nil {
		return data, err
	}

	return data, e.board.Check()
}

// ReadBackTransmitted reads back the last n transmitted bytes and expects
// them to be unchanged.
func (e *Env) ReadBackTransmitted(
	p *sched.Proc,
	op flash.Opcode,
	a flash.Address,
	n int,
) ([]byte, error) {
	if err := e.board.ExpectTransmitted(n); err != nil {
		return nil, err
	}

	return e.ReadBack(p, op, a, n)
}

// ReadStatus reads the status register once. The expectation of the value
// is queued first, if given.
func (e *Env) ReadStatus(
	p *sched.Proc,
	expected ...scoreboard.Expectation,
) (flash.Status, error) {
	if err := e.Enter(ReadBack); err != nil {
		return 0, err
	}

	e.board.Expect(expected...)

	s, err := e.ops.ReadStatus(p)
	if err != nil {
		return s, err
	}

	return s, e.board.Check()
}
