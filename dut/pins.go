// Package dut provides a cycle-level behavioral model of the serial-flash
// controller and of the NOR flash attached to it.
//
// The model exists so that the harness has something to verify. It is only
// reachable through its pins.
package dut

import (
	"github.com/sarchlab/flashverif/signal"
)

// Variant selects the host bus of the controller.
type Variant int

// The supported host buses.
const (
	StrobeBus Variant = iota
	AXIBus
)

func (v Variant) String() string {
	switch v {
	case StrobeBus:
		return "strobe"
	case AXIBus:
		return "axi"
	default:
		return "unknown"
	}
}

// ParseVariant converts a variant name into a Variant.
func ParseVariant(name string) (Variant, bool) {
	switch name {
	case "strobe":
		return StrobeBus, true
	case "axi":
		return AXIBus, true
	default:
		return 0, false
	}
}

// StrobePins are the pins of the strobe register bus.
type StrobePins struct {
	WE   *signal.Signal
	Stb  *signal.Signal
	Addr *signal.Signal
	Data *signal.Signal
	Ack  *signal.Signal
	Out  *signal.Signal
}

// AXIPins are the pins of the AXI-lite register bus.
type AXIPins struct {
	AWValid *signal.Signal
	AWReady *signal.Signal
	AWAddr  *signal.Signal
	WValid  *signal.Signal
	WReady  *signal.Signal
	WData   *signal.Signal
	WStrb   *signal.Signal
	BValid  *signal.Signal
	BReady  *signal.Signal
	ARValid *signal.Signal
	ARReady *signal.Signal
	ARAddr  *signal.Signal
	RValid  *signal.Signal
	RReady  *signal.Signal
	RData   *signal.Signal
}

// SerialPins connect the controller to the flash.
type SerialPins struct {
	SCLK *signal.Signal
	CSN  *signal.Signal
	MOSI *signal.Signal
	MISO *signal.Signal
}

// Pins are all the pins of the controller.
type Pins struct {
	Clk  *signal.Signal
	RstN *signal.Signal

	Strobe StrobePins
	AXI    AXIPins
	Serial SerialPins

	ByteTxDone *signal.Signal
	ByteRxDone *signal.Signal
	DV         *signal.Signal
	DataToTx   *signal.Signal
	TxByte     *signal.Signal
	RxByte     *signal.Signal
}

// NewPins creates the pins of a controller. Only the pins of the selected
// bus are created; the others stay nil.
func NewPins(v Variant) *Pins {
	p := &Pins{
		Clk:        signal.New("clk", 1),
		RstN:       signal.New("rst_n", 1),
		ByteTxDone: signal.New("o_byte_tx_done", 1),
		ByteRxDone: signal.New("o_byte_rx_done", 1),
		DV:         signal.New("o_dv", 1),
		DataToTx:   signal.New("f_is_data_to_tx", 1),
		TxByte:     signal.New("o_tx_byte", 8),
		RxByte:     signal.New("o_rx_byte", 8),
		Serial: SerialPins{
			SCLK: signal.New("o_sclk", 1),
			CSN:  signal.New("o_cs_n", 1),
			MOSI: signal.New("o_mosi", 1),
			MISO: signal.New("i_miso", 1),
		},
	}
	p.Serial.CSN.Set(1)

	switch v {
	case StrobeBus:
		p.Strobe = StrobePins{
			WE:   signal.New("i_we", 1),
			Stb:  signal.New("i_stb", 1),
			Addr: signal.New("i_addr", 8),
			Data: signal.New("i_data", 8),
			Ack:  signal.New("o_ack", 1),
			Out:  signal.New("o_data", 8),
		}
	case AXIBus:
		p.AXI = AXIPins{
			AWValid: signal.New("S_AXI_AWVALID", 1),
			AWReady: signal.New("S_AXI_AWREADY", 1),
			AWAddr:  signal.New("S_AXI_AWADDR", 8),
			WValid:  signal.New("S_AXI_WVALID", 1),
			WReady:  signal.New("S_AXI_WREADY", 1),
			WData:   signal.New("S_AXI_WDATA", 8),
			WStrb:   signal.New("S_AXI_WSTRB", 1),
			BValid:  signal.New("S_AXI_BVALID", 1),
			BReady:  signal.New("S_AXI_BREADY", 1),
			ARValid: signal.New("S_AXI_ARVALID", 1),
			ARReady: signal.New("S_AXI_ARREADY", 1),
			ARAddr:  signal.New("S_AXI_ARADDR", 8),
			RValid:  signal.New("S_AXI_RVALID", 1),
			RReady:  signal.New("S_AXI_RREADY", 1),
			RData:   signal.New("S_AXI_RDATA", 8),
		}
	}

	return p
}

// All returns every pin that exists, for tracing and inspection.
func (p *Pins) All() []*signal.Signal {
	candidates := []*signal.Signal{
		p.Clk, p.RstN,
		p.Strobe.WE, p.Strobe.Stb, p.Strobe.Addr, p.Strobe.Data,
		p.Strobe.Ack, p.Strobe.Out,
		p.AXI.AWValid, p.AXI.AWReady, p.AXI.AWAddr, p.AXI.WValid,
		p.AXI.WReady, p.AXI.WData, p.AXI.WStrb, p.AXI.BValid, p.AXI.BReady,
		p.AXI.ARValid, p.AXI.ARReady, p.AXI.ARAddr, p.AXI.RValid,
		p.AXI.RReady, p.AXI.RData,
		p.Serial.SCLK, p.Serial.CSN, p.Serial.MOSI, p.Serial.MISO,
		p.ByteTxDone, p.ByteRxDone, p.DV, p.DataToTx, p.TxByte, p.RxByte,
	}

	pins := make([]*signal.Signal, 0, len(candidates))
	for _, s := range candidates {
		if s != nil {
			pins = append(pins, s)
		}
	}

	return pins
}
