// Package stimulus generates the randomized transactions that drive the
// verification scenarios.
package stimulus

import (
	"fmt"

	"github.com/sarchlab/flashverif/flash"
)

// Op is the kind of a transaction.
type Op int

// The transaction kinds.
const (
	Write Op = iota
	Read
)

func (o Op) String() string {
	if o == Read {
		return "read"
	}

	return "write"
}

// Transaction is one item of stimulus: a byte to store at, or read from, a
// flash address.
type Transaction struct {
	ID      uint64
	Op      Op
	Address flash.Address
	Data    byte
}

func (t Transaction) String() string {
	return fmt.Sprintf("#%d %s %s data=0x%02x", t.ID, t.Op, t.Address, t.Data)
}

// Domain is the set of values 0 to Size-1 that a field is drawn from.
type Domain struct {
	Name string
	Size int
}

// The data domains used by the scenarios.
var (
	ByteDomain = Domain{Name: "byte", Size: 256}
	PageDomain = Domain{Name: "page", Size: 16}
)

// Contains tells if v is in the domain.
func (d Domain) Contains(v int) bool {
	return v >= 0 && v < d.Size
}

// AddrDomain is the set of Size addresses starting at Base.
type AddrDomain struct {
	Base flash.Address
	Size int
}

// At returns the i-th address of the domain.
func (d AddrDomain) At(i int) flash.Address {
	return (d.Base + flash.Address(i)) & flash.AddressMask
}
