package dut

import (
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
)

// Builder builds devices.
type Builder struct {
	engine     sim.Engine
	freq       sim.Freq
	variant    Variant
	grade      flash.SpeedGrade
	pageSize   int
	sectorSize int
	busyTimes  BusyCycles
	fill       byte
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:       100 * sim.MHz,
		variant:    StrobeBus,
		grade:      flash.Grade33x75,
		pageSize:   16,
		sectorSize: 256,
		busyTimes:  DefaultBusyCycles(),
		fill:       ErasedValue,
	}
}

// WithEngine sets the engine that the system clock runs on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the system clock frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithVariant sets the host bus.
func (b Builder) WithVariant(v Variant) Builder {
	b.variant = v
	return b
}

// WithSpeedGrade sets the speed grade of the flash.
func (b Builder) WithSpeedGrade(g flash.SpeedGrade) Builder {
	b.grade = g
	return b
}

// WithPageSize sets the number of bytes in a flash page.
func (b Builder) WithPageSize(n int) Builder {
	b.pageSize = n
	return b
}

// WithSectorSize sets the number of bytes in a flash sector.
func (b Builder) WithSectorSize(n int) Builder {
	b.sectorSize = n
	return b
}

// WithBusyCycles sets how long write commands keep the flash busy.
func (b Builder) WithBusyCycles(c BusyCycles) Builder {
	b.busyTimes = c
	return b
}

// WithFill sets the initial value of every byte in the flash.
func (b Builder) WithFill(v byte) Builder {
	b.fill = v
	return b
}

// Build creates a device.
func (b Builder) Build(name string) *Device {
	pins := NewPins(b.variant)

	d := &Device{
		ComponentBase: sim.NewComponentBase(name),
		variant:       b.variant,
		pins:          pins,
	}

	d.clock = signal.NewClock(name+".Clock", b.engine, b.freq, pins.Clk)
	d.core = newController(pins, b.freq, b.grade)
	d.memory = newMemory(&pins.Serial,
		b.pageSize, b.sectorSize, b.busyTimes, b.fill)

	switch b.variant {
	case AXIBus:
		d.front = newAXIFrontEnd(&pins.AXI, d.core)
	default:
		d.front = newStrobeFrontEnd(&pins.Strobe, d.core)
	}
	d.core.sink = d.front

	pins.Clk.Listen(d)

	return d
}
