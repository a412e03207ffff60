package flash

// Status is the status register of the flash.
type Status byte

// The status register bits.
const (
	StatusWIP Status = 1 << 0
	StatusWEL Status = 1 << 1
)

// WIP tells if a write is in progress.
func (s Status) WIP() bool {
	return s&StatusWIP != 0
}

// WEL tells if the write enable latch is set.
func (s Status) WEL() bool {
	return s&StatusWEL != 0
}

// ValidForWrite tells if the value may be written into the status register.
// Setting WIP from the host is not allowed by the hardware.
func (s Status) ValidForWrite() bool {
	return !s.WIP()
}
