package sched

// Event is a flag that processes can wait on.
type Event struct {
	name    string
	set     bool
	data    interface{}
	waiters []*eventWaiter
}

type eventWaiter struct {
	fire     func(err error)
	canceled bool
}

// NewEvent creates an event that is not set.
func NewEvent(name string) *Event {
	return &Event{name: name}
}

// Name returns the name of the event.
func (e *Event) Name() string {
	return e.name
}

// Set sets the event and wakes all the waiters.
func (e *Event) Set() {
	e.set = true

	waiters := e.waiters
	e.waiters = nil

	for _, w := range waiters {
		if !w.canceled {
			w.fire(nil)
		}
	}
}

// SetData attaches data to the event and sets it.
func (e *Event) SetData(data interface{}) {
	e.data = data
	e.Set()
}

// Data returns the data attached by the last SetData.
func (e *Event) Data() interface{} {
	return e.data
}

// Clear unsets the event.
func (e *Event) Clear() {
	e.set = false
}

// IsSet tells if the event is set.
func (e *Event) IsSet() bool {
	return e.set
}

// Wait returns a trigger that fires once the event is set. If the event is
// already set, the trigger fires right away.
func (e *Event) Wait() Trigger {
	return eventTrigger{e: e}
}

type eventTrigger struct {
	e *Event
}

func (t eventTrigger) String() string {
	return "event " + t.e.name
}

func (t eventTrigger) Prime(_ *Kernel, fire func(err error)) func() {
	if t.e.set {
		fire(nil)
		return func() {}
	}

	w := &eventWaiter{fire: fire}
	t.e.waiters = append(t.e.waiters, w)

	return func() { w.canceled = true }
}
