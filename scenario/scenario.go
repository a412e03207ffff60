// Package scenario runs the verification scenarios of the flash controller.
// Each scenario is a walk through the command protocol, repeated a fixed
// number of times or until its coverage closes.
package scenario

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/stimulus"
)

// ErrUnknownScenario is returned when a scenario name is not registered.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario describes one verification scenario.
type Scenario struct {
	Name        string
	Description string

	// Domain is the set of data values that the stimulus draws from and the
	// coverage tracks.
	Domain stimulus.Domain

	// Addr is the set of addresses that the stimulus draws from. An empty
	// domain keeps the test bench default.
	Addr stimulus.AddrDomain

	// Repetitions is the default number of repetitions. Zero means the
	// scenario runs until its coverage closes.
	Repetitions int

	// Closure tells if the coverage must close for the scenario to pass.
	Closure bool

	// Setup adjusts the test bench, for example the initial flash content.
	Setup func(b EnvBuilder) EnvBuilder

	Body func(e *Env, p *sched.Proc, reps int) error
}

// Builder applies the scenario settings to a test bench builder.
func (s Scenario) Builder(b EnvBuilder) EnvBuilder {
	if s.Domain.Size > 0 {
		b = b.WithDomain(s.Domain)
	}

	if s.Addr.Size > 0 {
		b = b.WithAddrDomain(s.Addr)
	}

	if !s.Closure {
		b = b.WithCoverageDisabled(true)
	}

	if s.Setup != nil {
		b = s.Setup(b)
	}

	return b
}

// ByName finds a scenario of the catalog.
func ByName(name string) (Scenario, error) {
	for _, s := range Catalog() {
		if s.Name == name {
			return s, nil
		}
	}

	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Names returns the names of all scenarios of the catalog, sorted.
func Names() []string {
	all := Catalog()

	names := make([]string, 0, len(all))
	for _, s := range all {
		names = append(names, s.Name)
	}

	sort.Strings(names)

	return names
}

// Drive hands the items of the sequencer to the handler until the producer
// ends the sequence.
func (e *Env) Drive(
	p *sched.Proc,
	produce func(q *sched.Proc) error,
	handle func(p *sched.Proc, tx stimulus.Transaction) error,
) error {
	producer := p.Spawn(e.name+".Producer", produce)

	for {
		tx, err := e.sequencer.GetNextItem(p)
		if errors.Is(err, stimulus.ErrSequenceDone) {
			break
		}

		if err != nil {
			return err
		}

		if err := handle(p, tx); err != nil {
			return err
		}

		e.sequencer.ItemDone()
	}

	if !producer.Finished() {
		if err := p.Await(sched.Join(producer)); err != nil {
			return err
		}
	}

	return producer.Err()
}

// Repeat drives reps items of the sequencer through the handler.
func (e *Env) Repeat(
	p *sched.Proc,
	reps int,
	handle func(p *sched.Proc, tx stimulus.Transaction) error,
) error {
	return e.Drive(p, func(q *sched.Proc) error {
		return e.sequencer.RunN(q, reps)
	}, handle)
}

// UntilCovered drives items of the sequencer through the handler until the
// coverage of the run closes.
func (e *Env) UntilCovered(
	p *sched.Proc,
	handle func(p *sched.Proc, tx stimulus.Transaction) error,
) error {
	return e.Drive(p, func(q *sched.Proc) error {
		return e.sequencer.RunUntilCovered(q, e.tracker)
	}, handle)
}
