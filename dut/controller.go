package dut

import (
	"math"

	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sim"
)

type stepKind int

const (
	stepBegin stepKind = iota
	stepAddress
	stepData
	stepEnd
)

type step struct {
	kind  stepKind
	op    flash.Opcode
	value byte
}

type shiftPurpose int

const (
	shiftOpcode shiftPurpose = iota
	shiftAddress
	shiftDummy
	shiftTx
	shiftRx
)

type shiftItem struct {
	value   byte
	purpose shiftPurpose
}

// receiveSink is told about every byte the controller receives from the
// flash.
type receiveSink interface {
	onReceive(b byte)
}

// Controller is the register file and the command sequencer of the
// controller. It turns register writes into serial transfers.
type Controller struct {
	pins    *Pins
	sysFreq sim.Freq
	grade   flash.SpeedGrade
	sink    receiveSink

	opcode flash.Opcode
	addr   [3]byte
	txHold byte
	rxLast byte

	steps []step

	active      bool
	cmd         flash.Opcode
	template    flash.PhaseTemplate
	addrSent    bool
	dataBytes   int
	halfCycles  int
	endAfterNow bool

	shiftQueue []shiftItem
	shifting   bool
	current    shiftItem
	bitIndex   int
	sclkHigh   bool
	countdown  int
	rxShift    byte
}

func newController(
	pins *Pins,
	sysFreq sim.Freq,
	grade flash.SpeedGrade,
) *Controller {
	return &Controller{
		pins:    pins,
		sysFreq: sysFreq,
		grade:   grade,
		opcode:  flash.Nop,
	}
}

// Busy tells if the controller has queued or ongoing work.
func (c *Controller) Busy() bool {
	return c.shifting || len(c.shiftQueue) > 0 || len(c.steps) > 0
}

// ActiveCommand returns the command being executed and whether there is one.
func (c *Controller) ActiveCommand() (flash.Opcode, bool) {
	return c.cmd, c.active
}

func (c *Controller) reset() {
	c.opcode = flash.Nop
	c.addr = [3]byte{}
	c.txHold = 0
	c.rxLast = 0
	c.steps = nil
	c.active = false
	c.shiftQueue = nil
	c.shifting = false
	c.sclkHigh = false

	s := c.pins.Serial
	s.SCLK.Set(0)
	s.MOSI.Set(0)
	s.CSN.Set(1)

	c.pins.TxByte.Set(0)
	c.pins.RxByte.Set(0)
}

func (c *Controller) clearPulses() {
	c.pins.ByteTxDone.Set(0)
	c.pins.ByteRxDone.Set(0)
	c.pins.DV.Set(0)
	c.pins.DataToTx.Set(0)
}

// writeReg is called by the bus front end when a register write is
// accepted.
func (c *Controller) writeReg(reg flash.Register, v byte) {
	switch reg {
	case flash.RegOpcode:
		c.opcode = flash.Opcode(v)
		if c.opcode == flash.Nop {
			c.steps = append(c.steps, step{kind: stepEnd})
		} else {
			c.steps = append(c.steps, step{kind: stepBegin, op: c.opcode})
		}
	case flash.RegData:
		c.txHold = v
		c.pins.TxByte.Set(uint64(v))
		c.pins.DataToTx.Set(1)
	case flash.RegAddrHigh:
		c.addr[0] = v
	case flash.RegAddrMid:
		c.addr[1] = v
	case flash.RegAddrLow:
		c.addr[2] = v
		c.steps = append(c.steps, step{kind: stepAddress})
	case flash.RegCommit:
		c.steps = append(c.steps, step{kind: stepData, value: c.txHold})
	}
}

// readReg is called by the bus front end when a register read is accepted.
func (c *Controller) readReg(reg flash.Register) byte {
	switch reg {
	case flash.RegOpcode:
		return byte(c.opcode)
	case flash.RegData, flash.RegRxData:
		return c.rxLast
	case flash.RegAddrHigh:
		return c.addr[0]
	case flash.RegAddrMid:
		return c.addr[1]
	case flash.RegAddrLow:
		return c.addr[2]
	default:
		return 0
	}
}

func (c *Controller) tick() {
	if c.shifting {
		c.advanceShift()
		return
	}

	if len(c.shiftQueue) > 0 {
		c.startShift()
		return
	}

	if c.endAfterNow {
		c.endCommand()
		return
	}

	if len(c.steps) == 0 {
		return
	}

	c.execute()
}

func (c *Controller) execute() {
	s := c.steps[0]

	switch s.kind {
	case stepBegin:
		if c.active {
			c.endCommand()
			return
		}

		c.steps = c.steps[1:]
		c.begin(s.op)
	case stepAddress:
		c.steps = c.steps[1:]
		c.sendAddress()
	case stepData:
		c.steps = c.steps[1:]
		c.transferData(s.value)
	case stepEnd:
		c.steps = c.steps[1:]
		c.endCommand()
	}
}

func (c *Controller) begin(op flash.Opcode) {
	if !op.IsValid() {
		return
	}

	c.active = true
	c.cmd = op
	c.template = flash.PhasesOf(op)
	c.addrSent = false
	c.dataBytes = 0
	c.halfCycles = c.halfPeriodInCycles(op)

	c.pins.Serial.CSN.Set(0)
	c.shiftQueue = append(c.shiftQueue,
		shiftItem{value: byte(op), purpose: shiftOpcode})
	c.startShift()
}

func (c *Controller) halfPeriodInCycles(op flash.Opcode) int {
	spi := flash.SPIFreqFor(op, c.grade)
	n := int(math.Ceil(float64(c.sysFreq) / float64(2*spi)))

	if n < 1 {
		return 1
	}

	return n
}

func (c *Controller) sendAddress() {
	if !c.active || !c.template.HasAddress() || c.addrSent {
		return
	}

	c.addrSent = true
	for _, b := range c.addr {
		c.shiftQueue = append(c.shiftQueue,
			shiftItem{value: b, purpose: shiftAddress})
	}

	for i := 0; i < c.template.DummyBytes; i++ {
		c.shiftQueue = append(c.shiftQueue,
			shiftItem{value: 0, purpose: shiftDummy})
	}

	c.startShift()
}

func (c *Controller) transferData(tx byte) {
	if !c.active || !c.template.HasData() {
		return
	}

	if c.template.HasAddress() && !c.addrSent {
		return
	}

	if c.template.DataIn {
		c.shiftQueue = append(c.shiftQueue,
			shiftItem{value: tx, purpose: shiftTx})
	} else {
		c.shiftQueue = append(c.shiftQueue,
			shiftItem{value: 0, purpose: shiftRx})
	}

	c.startShift()
}

func (c *Controller) endCommand() {
	c.endAfterNow = false

	if !c.active {
		return
	}

	c.active = false
	c.shiftQueue = nil
	c.pins.Serial.SCLK.Set(0)
	c.pins.Serial.CSN.Set(1)
}

func (c *Controller) startShift() {
	c.current = c.shiftQueue[0]
	c.shiftQueue = c.shiftQueue[1:]
	c.shifting = true
	c.bitIndex = 7
	c.sclkHigh = false
	c.countdown = c.halfCycles
	c.rxShift = 0

	c.pins.Serial.MOSI.Set(uint64(c.current.value>>7) & 1)
}

func (c *Controller) advanceShift() {
	c.countdown--
	if c.countdown > 0 {
		return
	}

	c.countdown = c.halfCycles
	s := c.pins.Serial

	if !c.sclkHigh {
		c.sclkHigh = true
		s.SCLK.Set(1)
		c.rxShift = c.rxShift<<1 | byte(s.MISO.Value()&1)

		return
	}

	c.sclkHigh = false
	s.SCLK.Set(0)
	c.bitIndex--

	if c.bitIndex >= 0 {
		s.MOSI.Set(uint64(c.current.value>>uint(c.bitIndex)) & 1)
		return
	}

	c.shifting = false
	c.byteDone()
}

func (c *Controller) byteDone() {
	switch c.current.purpose {
	case shiftOpcode:
		if !c.template.HasAddress() && !c.template.HasData() {
			c.endAfterNow = true
		}
	case shiftAddress, shiftDummy:
		if len(c.shiftQueue) == 0 && !c.template.HasData() {
			c.endAfterNow = true
		}
	case shiftTx:
		c.dataBytes++
		c.pins.ByteTxDone.Set(1)
		c.checkDataLimit()
	case shiftRx:
		c.dataBytes++
		c.rxLast = c.rxShift
		c.pins.RxByte.Set(uint64(c.rxShift))
		c.pins.ByteRxDone.Set(1)
		c.pins.DV.Set(1)

		if c.sink != nil {
			c.sink.onReceive(c.rxShift)
		}

		c.checkDataLimit()
	}
}

func (c *Controller) checkDataLimit() {
	limit := c.template.MaxDataBytes
	if limit > 0 && c.dataBytes >= limit {
		c.endAfterNow = true
	}
}
