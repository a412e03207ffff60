package bfm

import (
	"fmt"

	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
)

// Op is the direction of a bus transaction.
type Op int

// The bus transaction directions.
const (
	OpWrite Op = iota
	OpRead
)

func (o Op) String() string {
	if o == OpRead {
		return "read"
	}

	return "write"
}

// Command is a single register access on the host bus.
type Command struct {
	ID     string
	Op     Op
	Reg    flash.Register
	Value  byte
	Result byte

	err      error
	done     *sched.Event
	respSeen bool
}

func newCommand(id string, op Op, reg flash.Register, v byte) *Command {
	return &Command{
		ID:    id,
		Op:    op,
		Reg:   reg,
		Value: v,
		done:  sched.NewEvent("cmd." + id),
	}
}

// Err returns the error that ended the command, if any.
func (c *Command) Err() error {
	return c.err
}

func (c *Command) String() string {
	if c.Op == OpRead {
		return fmt.Sprintf("read %s", c.Reg)
	}

	return fmt.Sprintf("write %s=0x%02x", c.Reg, c.Value)
}
