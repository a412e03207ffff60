package flash

// Register is a host-facing register address of the controller.
type Register uint8

// The register map.
const (
	// RegOpcode takes the flash opcode. Writing NOP ends the active command.
	RegOpcode Register = 0

	// RegData takes the byte to transmit. Reading it returns the last
	// received byte.
	RegData Register = 1

	// RegAddrHigh takes address bits 23 to 16.
	RegAddrHigh Register = 2

	// RegAddrMid takes address bits 15 to 8.
	RegAddrMid Register = 3

	// RegAddrLow takes address bits 7 to 0. Writing it starts the address
	// phase.
	RegAddrLow Register = 4

	// RegRxData returns the last received byte.
	RegRxData Register = 5

	// RegCommit starts the transfer of one data-phase byte.
	RegCommit Register = 7
)

// CommitMarker is the value written into RegCommit.
const CommitMarker byte = 255

// AddressRegisters lists the address registers in the order they are
// written.
func AddressRegisters() [3]Register {
	return [3]Register{RegAddrHigh, RegAddrMid, RegAddrLow}
}

func (r Register) String() string {
	switch r {
	case RegOpcode:
		return "OPCODE"
	case RegData:
		return "DATA"
	case RegAddrHigh:
		return "ADDR_H"
	case RegAddrMid:
		return "ADDR_M"
	case RegAddrLow:
		return "ADDR_L"
	case RegRxData:
		return "RX_DATA"
	case RegCommit:
		return "COMMIT"
	default:
		return "UNMAPPED"
	}
}
