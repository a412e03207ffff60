package stimulus

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sarchlab/flashverif/flash"
)

// ErrConstraintUnsatisfiable is returned when no value that meets the
// constraints was found within the retry limit.
var ErrConstraintUnsatisfiable = errors.New("constraint unsatisfiable")

// DefaultMaxRetries is the number of draws a Randomizer makes before it gives
// up on a set of constraints.
const DefaultMaxRetries = 100000

// A Constraint accepts or rejects a candidate value.
type Constraint func(v int) bool

// CoverageQuery tells which values have been covered.
type CoverageQuery interface {
	Has(v int) bool
	IsClosed() bool
}

// NotCovered rejects values that have already been covered.
func NotCovered(c CoverageQuery) Constraint {
	return func(v int) bool {
		return !c.Has(v)
	}
}

// ValidStatus rejects status register values with the write in progress bit
// set.
func ValidStatus(v int) bool {
	return flash.Status(v).ValidForWrite()
}

// Randomizer draws values uniformly and resamples until the constraints hold.
type Randomizer struct {
	rng        *rand.Rand
	seed       int64
	maxRetries int
	rejected   uint64
}

// NewRandomizer creates a Randomizer. The same seed gives the same values.
func NewRandomizer(seed int64) *Randomizer {
	return &Randomizer{
		rng:        rand.New(rand.NewSource(seed)),
		seed:       seed,
		maxRetries: DefaultMaxRetries,
	}
}

// WithMaxRetries sets how many draws are made before giving up.
func (r *Randomizer) WithMaxRetries(n int) *Randomizer {
	r.maxRetries = n
	return r
}

// Seed returns the seed of the Randomizer.
func (r *Randomizer) Seed() int64 {
	return r.seed
}

// Rejected returns the number of candidates that the constraints rejected.
func (r *Randomizer) Rejected() uint64 {
	return r.rejected
}

// Intn returns a value in [0, n) without constraints.
func (r *Randomizer) Intn(n int) int {
	return r.rng.Intn(n)
}

// Draw returns a value of the domain that meets all the constraints.
func (r *Randomizer) Draw(d Domain, constraints ...Constraint) (int, error) {
	if d.Size <= 0 {
		return 0, fmt.Errorf("%w: domain %s is empty",
			ErrConstraintUnsatisfiable, d.Name)
	}

	for i := 0; i < r.maxRetries; i++ {
		v := r.rng.Intn(d.Size)
		if accepts(constraints, v) {
			return v, nil
		}

		r.rejected++
	}

	return 0, fmt.Errorf("%w: no value of domain %s after %d draws",
		ErrConstraintUnsatisfiable, d.Name, r.maxRetries)
}

func accepts(constraints []Constraint, v int) bool {
	for _, c := range constraints {
		if !c(v) {
			return false
		}
	}

	return true
}
