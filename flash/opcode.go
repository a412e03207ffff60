// Package flash holds the static knowledge of the serial-flash controller:
// its host register map, the flash opcodes and the phases each opcode goes
// through on the serial bus.
package flash

import (
	"fmt"
	"log"
)

// Opcode is a flash command code.
type Opcode uint8

// The opcodes that the controller supports.
const (
	WriteStatus  Opcode = 1
	PageProgram  Opcode = 2
	ReadData     Opcode = 3
	WriteDisable Opcode = 4
	ReadStatus   Opcode = 5
	WriteEnable  Opcode = 6
	FastRead     Opcode = 11
	BulkErase    Opcode = 199
	SectorErase  Opcode = 216
	Nop          Opcode = 255
)

var opcodeNames = map[Opcode]string{
	WriteStatus:  "WRSR",
	PageProgram:  "PP",
	ReadData:     "READ",
	WriteDisable: "WRDI",
	ReadStatus:   "RDSR",
	WriteEnable:  "WREN",
	FastRead:     "FAST_READ",
	BulkErase:    "BE",
	SectorErase:  "SE",
	Nop:          "NOP",
}

// Opcodes returns all the supported opcodes in ascending order.
func Opcodes() []Opcode {
	return []Opcode{
		WriteStatus, PageProgram, ReadData, WriteDisable, ReadStatus,
		WriteEnable, FastRead, BulkErase, SectorErase, Nop,
	}
}

// IsValid tells if the opcode is in the opcode table.
func (o Opcode) IsValid() bool {
	_, ok := opcodeNames[o]
	return ok
}

func (o Opcode) String() string {
	name, ok := opcodeNames[o]
	if !ok {
		return fmt.Sprintf("Opcode(%d)", uint8(o))
	}

	return name
}

// PhaseTemplate describes what follows an opcode on the serial bus.
type PhaseTemplate struct {
	// AddressBytes is 0 or 3.
	AddressBytes int

	// DummyBytes are clocked out after the address and before the data.
	DummyBytes int

	// DataIn is set if the host sends data bytes to the flash.
	DataIn bool

	// DataOut is set if the flash returns data bytes to the host.
	DataOut bool

	// Write is set if the command changes the flash and needs the write
	// enable latch.
	Write bool

	// MaxDataBytes limits the data phase. Zero means unlimited.
	MaxDataBytes int
}

// HasAddress tells if the command carries an address.
func (t PhaseTemplate) HasAddress() bool {
	return t.AddressBytes > 0
}

// HasData tells if the command has a data phase in either direction.
func (t PhaseTemplate) HasData() bool {
	return t.DataIn || t.DataOut
}

var phaseTemplates = map[Opcode]PhaseTemplate{
	WriteEnable:  {},
	WriteDisable: {},
	ReadStatus:   {DataOut: true},
	WriteStatus:  {DataIn: true, Write: true, MaxDataBytes: 1},
	PageProgram:  {AddressBytes: 3, DataIn: true, Write: true},
	SectorErase:  {AddressBytes: 3, Write: true},
	BulkErase:    {Write: true},
	ReadData:     {AddressBytes: 3, DataOut: true},
	FastRead:     {AddressBytes: 3, DummyBytes: 1, DataOut: true},
	Nop:          {},
}

// PhasesOf returns the phase template of an opcode. Asking for an opcode that
// is not in the table is a programming error.
func PhasesOf(op Opcode) PhaseTemplate {
	t, ok := phaseTemplates[op]
	if !ok {
		log.Panicf("unknown flash opcode %d", uint8(op))
	}

	return t
}
