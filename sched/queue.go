package sched

import (
	"github.com/sarchlab/flashverif/sim"
)

// Queue passes items between processes. A queue with a capacity of 0 or less
// is unbounded.
type Queue struct {
	buf       sim.Buffer
	notEmpty  *Event
	notFull   *Event
	peakItems int
}

// NewQueue creates a queue.
func NewQueue(name string, capacity int) *Queue {
	return &Queue{
		buf:      sim.NewBuffer(name, capacity),
		notEmpty: NewEvent(name + ".notEmpty"),
		notFull:  NewEvent(name + ".notFull"),
	}
}

// Name returns the name of the queue.
func (q *Queue) Name() string {
	return q.buf.Name()
}

// Capacity returns the capacity of the queue.
func (q *Queue) Capacity() int {
	return q.buf.Capacity()
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int {
	return q.buf.Size()
}

// Empty tells if the queue has no item.
func (q *Queue) Empty() bool {
	return q.buf.Size() == 0
}

// Full tells if the queue cannot take more items.
func (q *Queue) Full() bool {
	return !q.buf.CanPush()
}

// PeakLen returns the largest number of items the queue ever held.
func (q *Queue) PeakLen() int {
	return q.peakItems
}

// Buffer exposes the underlying buffer so that hooks can be attached.
func (q *Queue) Buffer() sim.Buffer {
	return q.buf
}

// Put adds an item, waiting for space if the queue is full.
func (q *Queue) Put(p *Proc, item interface{}) error {
	for q.Full() {
		q.notFull.Clear()
		if err := p.Await(q.notFull.Wait()); err != nil {
			return err
		}
	}

	q.push(item)

	return nil
}

// TryPut adds an item if there is space. It can be called outside processes.
func (q *Queue) TryPut(item interface{}) bool {
	if q.Full() {
		return false
	}

	q.push(item)

	return true
}

func (q *Queue) push(item interface{}) {
	q.buf.Push(item)

	if q.buf.Size() > q.peakItems {
		q.peakItems = q.buf.Size()
	}

	q.notEmpty.Set()
}

// Get removes the oldest item, waiting for one if the queue is empty.
func (q *Queue) Get(p *Proc) (interface{}, error) {
	for q.Empty() {
		q.notEmpty.Clear()
		if err := p.Await(q.notEmpty.Wait()); err != nil {
			return nil, err
		}
	}

	return q.pop(), nil
}

// TryGet removes the oldest item if there is one.
func (q *Queue) TryGet() (interface{}, bool) {
	if q.Empty() {
		return nil, false
	}

	return q.pop(), true
}

// Peek returns the oldest item without removing it.
func (q *Queue) Peek() (interface{}, bool) {
	if q.Empty() {
		return nil, false
	}

	return q.buf.Peek(), true
}

func (q *Queue) pop() interface{} {
	item := q.buf.Pop()
	q.notFull.Set()

	return item
}

// Available returns a trigger that fires once the queue has an item.
func (q *Queue) Available() Trigger {
	if !q.Empty() {
		return q.notEmpty.Wait()
	}

	q.notEmpty.Clear()

	return q.notEmpty.Wait()
}
