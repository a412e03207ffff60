package stimulus

import (
	"errors"
	"fmt"

	"github.com/sarchlab/flashverif/sched"
)

// ErrSequenceDone is returned by GetNextItem after the sequence has ended.
var ErrSequenceDone = errors.New("sequence done")

type endOfSequence struct{}

// Sequencer produces transactions one at a time. The producer waits until the
// consumer has finished the current item before it generates the next one.
type Sequencer struct {
	name       string
	randomizer *Randomizer
	op         Op
	data       Domain
	addr       AddrDomain
	addrFixed  bool
	extra      []Constraint
	itemLimit  int

	slot     *sched.Queue
	itemDone *sched.Event
	ended    bool

	nextID  uint64
	applied []byte
}

// NewSequencer creates a sequencer that writes values of the data domain to
// random addresses of the address domain.
func NewSequencer(
	name string,
	randomizer *Randomizer,
	data Domain,
	addr AddrDomain,
) *Sequencer {
	return &Sequencer{
		name:       name,
		randomizer: randomizer,
		op:         Write,
		data:       data,
		addr:       addr,
		slot:       sched.NewQueue(name+".Slot", 1),
		itemDone:   sched.NewEvent(name + ".ItemDone"),
		itemLimit:  data.Size * 64,
	}
}

// WithOp sets the kind of the generated transactions.
func (s *Sequencer) WithOp(op Op) *Sequencer {
	s.op = op
	return s
}

// WithConstraint adds a constraint on the data values.
func (s *Sequencer) WithConstraint(c Constraint) *Sequencer {
	s.extra = append(s.extra, c)
	return s
}

// WithAddressPerValue makes the address of each transaction the address of
// the domain slot that matches its data value, so that every value lands in
// its own slot.
func (s *Sequencer) WithAddressPerValue() *Sequencer {
	s.addrFixed = true
	return s
}

// WithItemLimit bounds the number of items that RunUntilCovered generates.
func (s *Sequencer) WithItemLimit(n int) *Sequencer {
	s.itemLimit = n
	return s
}

// Name returns the name of the sequencer.
func (s *Sequencer) Name() string {
	return s.name
}

// Domain returns the data domain.
func (s *Sequencer) Domain() Domain {
	return s.data
}

// Applied returns the data values of all the items that were handed out, in
// order.
func (s *Sequencer) Applied() []byte {
	return s.applied
}

// Generate draws the next transaction. It does not hand it out.
func (s *Sequencer) Generate(constraints ...Constraint) (Transaction, error) {
	all := append(append([]Constraint{}, s.extra...), constraints...)

	v, err := s.randomizer.Draw(s.data, all...)
	if err != nil {
		return Transaction{}, fmt.Errorf("%s: %w", s.name, err)
	}

	slot := v % s.addr.Size
	if !s.addrFixed {
		slot = s.randomizer.Intn(s.addr.Size)
	}

	s.nextID++

	return Transaction{
		ID:      s.nextID,
		Op:      s.op,
		Address: s.addr.At(slot),
		Data:    byte(v),
	}, nil
}

// RunN hands out n transactions.
func (s *Sequencer) RunN(p *sched.Proc, n int) error {
	for i := 0; i < n; i++ {
		tx, err := s.Generate()
		if err != nil {
			return s.finish(p, err)
		}

		if err := s.send(p, tx); err != nil {
			return err
		}
	}

	return s.finish(p, nil)
}

// RunUntilCovered hands out transactions with values that the coverage has
// not seen yet, until the coverage is closed.
func (s *Sequencer) RunUntilCovered(p *sched.Proc, c CoverageQuery) error {
	for n := 0; !c.IsClosed(); n++ {
		if n >= s.itemLimit {
			return s.finish(p, fmt.Errorf(
				"%s: coverage not closed after %d items", s.name, n))
		}

		tx, err := s.Generate(NotCovered(c))
		if err != nil {
			return s.finish(p, err)
		}

		if err := s.send(p, tx); err != nil {
			return err
		}
	}

	return s.finish(p, nil)
}

func (s *Sequencer) send(p *sched.Proc, tx Transaction) error {
	s.itemDone.Clear()

	if err := s.slot.Put(p, &tx); err != nil {
		return err
	}

	s.applied = append(s.applied, tx.Data)

	return p.Await(s.itemDone.Wait())
}

func (s *Sequencer) finish(p *sched.Proc, cause error) error {
	if err := s.slot.Put(p, endOfSequence{}); err != nil {
		return err
	}

	return cause
}

// GetNextItem waits for the next transaction. It returns ErrSequenceDone
// once the producer has finished.
func (s *Sequencer) GetNextItem(p *sched.Proc) (Transaction, error) {
	if s.ended {
		return Transaction{}, ErrSequenceDone
	}

	item, err := s.slot.Get(p)
	if err != nil {
		return Transaction{}, err
	}

	tx, ok := item.(*Transaction)
	if !ok {
		s.ended = true
		return Transaction{}, ErrSequenceDone
	}

	return *tx, nil
}

// ItemDone tells the producer that the consumer has finished the item.
func (s *Sequencer) ItemDone() {
	s.itemDone.Set()
}
