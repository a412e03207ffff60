package dut

import (
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/signal"
)

// ErasedValue is the value of an erased flash byte.
const ErasedValue byte = 0xff

// BusyCycles are the number of system clock cycles that the flash stays busy
// after each kind of write command.
type BusyCycles struct {
	PageProgram int
	SectorErase int
	BulkErase   int
	WriteStatus int
}

// DefaultBusyCycles returns short busy times that keep simulations fast.
func DefaultBusyCycles() BusyCycles {
	return BusyCycles{
		PageProgram: 40,
		SectorErase: 120,
		BulkErase:   400,
		WriteStatus: 20,
	}
}

type memPhase int

const (
	memIdle memPhase = iota
	memOpcode
	memAddress
	memDummy
	memData
	memIgnore
)

// Memory is a NOR flash that talks mode-0 SPI. Programming overwrites the
// old value. A page program wraps around within the page.
type Memory struct {
	pins *SerialPins

	pageSize   int
	sectorSize int
	busyTimes  BusyCycles

	cells  map[flash.Address]byte
	fill   byte
	status flash.Status
	wel    bool
	busy   int

	phase     memPhase
	op        flash.Opcode
	template  flash.PhaseTemplate
	inShift   byte
	inBits    int
	addrBytes []byte
	addr      flash.Address
	dummyLeft int
	received  []byte

	outByte  byte
	outIndex int
	outAddr  flash.Address
	outFirst bool

	commands uint64
}

func newMemory(
	pins *SerialPins,
	pageSize, sectorSize int,
	busyTimes BusyCycles,
	fill byte,
) *Memory {
	m := &Memory{
		pins:       pins,
		pageSize:   pageSize,
		sectorSize: sectorSize,
		busyTimes:  busyTimes,
		cells:      make(map[flash.Address]byte),
		fill:       fill,
	}

	pins.SCLK.Listen(signal.ListenerFunc(m.onSCLK))
	pins.CSN.Listen(signal.ListenerFunc(m.onCSN))

	return m
}

// Read returns the value of a byte in the array.
func (m *Memory) Read(a flash.Address) byte {
	v, ok := m.cells[a&flash.AddressMask]
	if !ok {
		return m.fill
	}

	return v
}

// Status returns the status register as RDSR reports it.
func (m *Memory) Status() flash.Status {
	s := m.status &^ flash.StatusWIP
	if m.busy > 0 {
		s |= flash.StatusWIP
	}

	return s
}

// WriteEnabled tells if the write enable latch is set.
func (m *Memory) WriteEnabled() bool {
	return m.wel
}

// Busy tells if a write is in progress.
func (m *Memory) Busy() bool {
	return m.busy > 0
}

// Commands returns the number of commands that the flash executed.
func (m *Memory) Commands() uint64 {
	return m.commands
}

// tick counts down the busy time. It is called on every system clock edge.
func (m *Memory) tick() {
	if m.busy > 0 {
		m.busy--
	}
}

func (m *Memory) onCSN(c signal.Change) {
	if c.New == 0 {
		m.phase = memOpcode
		m.inBits = 0
		m.inShift = 0
		m.addrBytes = m.addrBytes[:0]
		m.received = m.received[:0]
		m.outIndex = -1

		return
	}

	if m.phase != memIgnore && m.phase != memOpcode && m.inBits == 0 {
		m.finish()
	}

	m.phase = memIdle
}

func (m *Memory) onSCLK(c signal.Change) {
	if m.phase == memIdle || m.phase == memIgnore {
		return
	}

	if c.New == 1 {
		m.sample()
		return
	}

	m.shiftOut()
}

func (m *Memory) sample() {
	m.inShift = m.inShift<<1 | byte(m.pins.MOSI.Value()&1)
	m.inBits++

	if m.inBits < 8 {
		return
	}

	b := m.inShift
	m.inBits = 0
	m.inShift = 0

	m.receive(b)
}

func (m *Memory) receive(b byte) {
	switch m.phase {
	case memOpcode:
		m.decode(flash.Opcode(b))
	case memAddress:
		m.addrBytes = append(m.addrBytes, b)
		if len(m.addrBytes) == 3 {
			m.addr = flash.AddressOf(
				m.addrBytes[0], m.addrBytes[1], m.addrBytes[2])
			m.afterAddress()
		}
	case memDummy:
		m.dummyLeft--
		if m.dummyLeft == 0 {
			m.enterData()
		}
	case memData:
		if m.template.DataIn {
			m.received = append(m.received, b)
		}
	}
}

func (m *Memory) decode(op flash.Opcode) {
	if !op.IsValid() || op == flash.Nop {
		m.phase = memIgnore
		return
	}

	if m.busy > 0 && op != flash.ReadStatus {
		m.phase = memIgnore
		return
	}

	m.op = op
	m.template = flash.PhasesOf(op)

	switch {
	case m.template.HasAddress():
		m.phase = memAddress
	case m.template.HasData():
		m.enterData()
	default:
		m.phase = memData
	}
}

func (m *Memory) afterAddress() {
	if m.template.DummyBytes > 0 {
		m.dummyLeft = m.template.DummyBytes
		m.phase = memDummy

		return
	}

	m.enterData()
}

func (m *Memory) enterData() {
	m.phase = memData

	if m.template.DataOut {
		m.outIndex = -1
		m.outAddr = m.addr
		m.outFirst = true
	}
}

func (m *Memory) nextOutByte() byte {
	if m.op == flash.ReadStatus {
		return byte(m.Status())
	}

	if !m.outFirst {
		m.outAddr = (m.outAddr + 1) & flash.AddressMask
	}
	m.outFirst = false

	return m.Read(m.outAddr)
}

func (m *Memory) shiftOut() {
	if m.phase != memData || !m.template.DataOut {
		return
	}

	if m.outIndex < 0 {
		m.outByte = m.nextOutByte()
		m.outIndex = 7
	}

	m.pins.MISO.Set(uint64(m.outByte>>uint(m.outIndex)) & 1)
	m.outIndex--
}

func (m *Memory) finish() {
	if m.template.HasAddress() && len(m.addrBytes) < 3 {
		return
	}

	m.commands++

	switch m.op {
	case flash.WriteEnable:
		m.wel = true
	case flash.WriteDisable:
		m.wel = false
	case flash.PageProgram:
		m.program()
	case flash.SectorErase:
		m.eraseSector()
	case flash.BulkErase:
		m.eraseAll()
	case flash.WriteStatus:
		m.writeStatus()
	}
}

func (m *Memory) program() {
	if !m.wel || len(m.received) == 0 {
		return
	}

	base := m.addr - m.addr%flash.Address(m.pageSize)
	offset := int(m.addr - base)
	for i, b := range m.received {
		a := base + flash.Address((offset+i)%m.pageSize)
		m.cells[a] = b
	}

	m.startBusy(m.busyTimes.PageProgram)
}

func (m *Memory) eraseSector() {
	if !m.wel {
		return
	}

	base := m.addr - m.addr%flash.Address(m.sectorSize)
	for i := 0; i < m.sectorSize; i++ {
		m.cells[base+flash.Address(i)] = ErasedValue
	}

	m.startBusy(m.busyTimes.SectorErase)
}

func (m *Memory) eraseAll() {
	if !m.wel {
		return
	}

	m.cells = make(map[flash.Address]byte)
	m.fill = ErasedValue

	m.startBusy(m.busyTimes.BulkErase)
}

func (m *Memory) writeStatus() {
	if !m.wel || len(m.received) == 0 {
		return
	}

	m.status = flash.Status(m.received[0]) &^ flash.StatusWIP

	m.startBusy(m.busyTimes.WriteStatus)
}

func (m *Memory) startBusy(cycles int) {
	m.wel = false
	m.busy = cycles
}
