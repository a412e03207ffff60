package dut

import (
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
)

// Device is a controller with its flash attached.
type Device struct {
	*sim.ComponentBase

	variant Variant
	pins    *Pins
	clock   *signal.Clock
	core    *Controller
	front   frontEnd
	memory  *Memory
	cycles  uint64
}

// Variant returns the host bus of the device.
func (d *Device) Variant() Variant {
	return d.variant
}

// Pins returns the pins of the device.
func (d *Device) Pins() *Pins {
	return d.pins
}

// Clock returns the system clock that drives the device.
func (d *Device) Clock() *signal.Clock {
	return d.clock
}

// Controller returns the controller core.
func (d *Device) Controller() *Controller {
	return d.core
}

// Memory returns the flash array.
func (d *Device) Memory() *Memory {
	return d.memory
}

// Grade returns the speed grade that the controller is configured for.
func (d *Device) Grade() flash.SpeedGrade {
	return d.core.grade
}

// Cycles returns the number of clock edges that the device has seen.
func (d *Device) Cycles() uint64 {
	return d.cycles
}

// OnChange reacts to the system clock.
func (d *Device) OnChange(c signal.Change) {
	if c.New != 1 {
		return
	}

	d.cycles++
	d.memory.tick()

	if !d.pins.RstN.High() {
		d.reset()
		return
	}

	d.core.clearPulses()
	d.front.clearPulses()
	d.front.tick()
	d.core.tick()
}

func (d *Device) reset() {
	d.core.clearPulses()
	d.core.reset()
	d.front.reset()
}
