package flash

import "fmt"

// AddressMask keeps the 24 bits of a flash address.
const AddressMask = 0xffffff

// Address is a 24-bit flash address.
type Address uint32

// AddressOf builds an address from its bytes, high byte first.
func AddressOf(high, mid, low byte) Address {
	return Address(uint32(high)<<16 | uint32(mid)<<8 | uint32(low))
}

// Bytes returns A23-A16, A15-A8 and A7-A0, in the order they are sent.
func (a Address) Bytes() [3]byte {
	a &= AddressMask
	return [3]byte{byte(a >> 16), byte(a >> 8), byte(a)}
}

// Page returns the index of the page that holds the address.
func (a Address) Page(pageSize int) int {
	return int(a&AddressMask) / pageSize
}

// Sector returns the index of the sector that holds the address.
func (a Address) Sector(sectorSize int) int {
	return int(a&AddressMask) / sectorSize
}

func (a Address) String() string {
	return fmt.Sprintf("0x%06x", uint32(a&AddressMask))
}
