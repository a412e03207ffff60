// Package analysis connects monitors to the components that consume what
// they observe.
package analysis

import "github.com/sarchlab/flashverif/sim"

// Item is a value observed at a point in time.
type Item struct {
	Time  sim.VTimeInSec
	Value interface{}
}

// A Subscriber receives the items written into a port.
type Subscriber interface {
	Write(item Item)
}

// SubscriberFunc turns a function into a Subscriber.
type SubscriberFunc func(item Item)

// Write calls the function.
func (f SubscriberFunc) Write(item Item) {
	f(item)
}

// Port broadcasts items to its subscribers in the order they were connected.
type Port struct {
	name        string
	subscribers []Subscriber
	written     uint64
}

// NewPort creates a port.
func NewPort(name string) *Port {
	return &Port{name: name}
}

// Name returns the name of the port.
func (p *Port) Name() string {
	return p.name
}

// Connect adds a subscriber.
func (p *Port) Connect(s Subscriber) {
	p.subscribers = append(p.subscribers, s)
}

// NumSubscribers returns the number of connected subscribers.
func (p *Port) NumSubscribers() int {
	return len(p.subscribers)
}

// Written returns the number of items written so far.
func (p *Port) Written() uint64 {
	return p.written
}

// Write delivers the item to every subscriber.
func (p *Port) Write(item Item) {
	p.written++

	for _, s := range p.subscribers {
		s.Write(item)
	}
}
