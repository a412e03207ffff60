package scoreboard

import "fmt"

// ExpectKind tells how a result is compared.
type ExpectKind int

// Kinds of expectations.
const (
	// ExpectEqual requires the result to equal the expected value.
	ExpectEqual ExpectKind = iota

	// ExpectErased requires the result to be the erased value.
	ExpectErased

	// ExpectDontCare accepts any result, such as a status poll.
	ExpectDontCare
)

// ErasedValue is what an erased flash location reads back as.
const ErasedValue byte = 0xFF

// Expectation is what the next result should be.
type Expectation struct {
	Kind  ExpectKind
	Value byte
}

// Equal expects the value v.
func Equal(v byte) Expectation {
	return Expectation{Kind: ExpectEqual, Value: v}
}

// Erased expects an erased location.
func Erased() Expectation {
	return Expectation{Kind: ExpectErased, Value: ErasedValue}
}

// DontCare accepts any result.
func DontCare() Expectation {
	return Expectation{Kind: ExpectDontCare}
}

// Matches tells if the result meets the expectation.
func (e Expectation) Matches(actual byte) bool {
	switch e.Kind {
	case ExpectEqual:
		return actual == e.Value
	case ExpectErased:
		return actual == ErasedValue
	default:
		return true
	}
}

func (e Expectation) String() string {
	switch e.Kind {
	case ExpectEqual:
		return fmt.Sprintf("0x%02x", e.Value)
	case ExpectErased:
		return "erased"
	default:
		return "any"
	}
}

// Mismatch records a result that did not meet its expectation.
type Mismatch struct {
	Index    int
	Expected Expectation
	Actual   byte
}

func (m Mismatch) String() string {
	return fmt.Sprintf("result %d: expected %s, got 0x%02x",
		m.Index, m.Expected, m.Actual)
}
