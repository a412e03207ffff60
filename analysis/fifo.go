package analysis

import (
	"github.com/sarchlab/flashverif/sched"
)

// FIFO is an unbounded subscriber that keeps items in arrival order until
// they are taken.
type FIFO struct {
	q *sched.Queue
}

// NewFIFO creates a FIFO.
func NewFIFO(name string) *FIFO {
	return &FIFO{q: sched.NewQueue(name, 0)}
}

// Name returns the name of the FIFO.
func (f *FIFO) Name() string {
	return f.q.Name()
}

// Write appends an item.
func (f *FIFO) Write(item Item) {
	f.q.TryPut(item)
}

// Len returns the number of items waiting.
func (f *FIFO) Len() int {
	return f.q.Len()
}

// CanGet tells if there is an item to take.
func (f *FIFO) CanGet() bool {
	return !f.q.Empty()
}

// TryGet takes the oldest item if there is one.
func (f *FIFO) TryGet() (Item, bool) {
	item, ok := f.q.TryGet()
	if !ok {
		return Item{}, false
	}

	return item.(Item), true
}

// Get takes the oldest item, suspending the process until there is one.
func (f *FIFO) Get(p *sched.Proc) (Item, error) {
	item, err := f.q.Get(p)
	if err != nil {
		return Item{}, err
	}

	return item.(Item), nil
}

// Drain takes all the waiting items.
func (f *FIFO) Drain() []Item {
	items := make([]Item, 0, f.q.Len())
	for {
		item, ok := f.TryGet()
		if !ok {
			return items
		}

		items = append(items, item)
	}
}
