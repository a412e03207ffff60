// Package sched runs harness processes as coroutines on top of the event
// engine.
//
// A process is a goroutine that only runs while the engine hands control to
// it. It gives control back by awaiting a trigger, such as a clock edge or a
// queue item. Only one process runs at any time, and the engine does not
// advance while a process runs, so processes never need locks.
//
// Processes resume through secondary events. When a modeled circuit and a
// process both react to the same clock edge, the circuit samples its inputs
// before the process drives new ones.
package sched

import (
	"fmt"
	"log"
	"runtime"
	"runtime/debug"

	"github.com/sarchlab/flashverif/sim"
)

// HookPosProcStart marks the start of a process. The hook item is the *Proc.
var HookPosProcStart = &sim.HookPos{Name: "ProcStart"}

// HookPosProcEnd marks the end of a process. The hook item is the *Proc.
var HookPosProcEnd = &sim.HookPos{Name: "ProcEnd"}

// A ProcFunc is the body of a process.
type ProcFunc func(p *Proc) error

type resumeEvent struct {
	*sim.EventBase

	proc *Proc
	wait *waitState
}

type timerEvent struct {
	*sim.EventBase

	fire func()
}

// Kernel owns the processes that run on an engine.
type Kernel struct {
	*sim.ComponentBase

	engine  sim.Engine
	procs   []*Proc
	current *Proc
	errs    []error
	closed  bool
}

// NewKernel creates a kernel that schedules its processes on the engine.
func NewKernel(engine sim.Engine) *Kernel {
	return &Kernel{
		ComponentBase: sim.NewComponentBase("Kernel"),
		engine:        engine,
	}
}

// Engine returns the engine the kernel runs on.
func (k *Kernel) Engine() sim.Engine {
	return k.engine
}

// Now returns the current simulation time.
func (k *Kernel) Now() sim.VTimeInSec {
	return k.engine.CurrentTime()
}

// Current returns the process that is running, or nil if the engine is
// running.
func (k *Kernel) Current() *Proc {
	return k.current
}

// Start creates a process. The process runs for the first time at the
// current simulation time, after all the pending same-time events.
func (k *Kernel) Start(name string, fn ProcFunc) *Proc {
	if k.closed {
		log.Panicf("kernel: cannot start process %s after shutdown", name)
	}

	p := &Proc{
		kernel: k,
		name:   name,
		fn:     fn,
		wake:   make(chan bool),
		park:   make(chan struct{}),
		done:   NewEvent(name + ".done"),
	}
	k.procs = append(k.procs, p)

	go p.run()

	w := &waitState{}
	p.wait = w
	k.scheduleResume(p, w)

	return p
}

// Errors returns the errors of all the processes that have failed.
func (k *Kernel) Errors() []error {
	return k.errs
}

// Procs returns all the processes ever started.
func (k *Kernel) Procs() []*Proc {
	return k.procs
}

// Shutdown kills all the processes that have not finished. It must be called
// once the engine has stopped, otherwise the goroutines of suspended
// processes leak.
func (k *Kernel) Shutdown() {
	if k.current != nil {
		log.Panic("kernel: cannot shut down from a process")
	}

	k.closed = true

	for _, p := range k.procs {
		if p.finished {
			continue
		}

		p.killed = true
		p.wake <- false
		<-p.park
	}
}

// Handle resumes processes and fires timers.
func (k *Kernel) Handle(e sim.Event) error {
	switch evt := e.(type) {
	case *resumeEvent:
		k.resume(evt)
	case *timerEvent:
		evt.fire()
	default:
		log.Panicf("kernel: cannot handle event of type %T", e)
	}

	return nil
}

func (k *Kernel) scheduleResume(p *Proc, w *waitState) {
	evt := &resumeEvent{
		EventBase: sim.NewSecondaryEventBase(k.engine.CurrentTime(), k),
		proc:      p,
		wait:      w,
	}
	k.engine.Schedule(evt)
}

func (k *Kernel) scheduleTimer(t sim.VTimeInSec, fire func()) {
	evt := &timerEvent{
		EventBase: sim.NewEventBase(t, k),
		fire:      fire,
	}
	k.engine.Schedule(evt)
}

func (k *Kernel) resume(evt *resumeEvent) {
	p := evt.proc
	if p.finished || p.wait != evt.wait {
		return
	}

	if !p.started {
		p.started = true
		k.InvokeHook(sim.HookCtx{
			Domain: k,
			Pos:    HookPosProcStart,
			Item:   p,
		})
	}

	k.current = p
	p.wake <- true
	<-p.park
	k.current = nil

	if p.finished {
		k.procFinished(p)
	}
}

func (k *Kernel) procFinished(p *Proc) {
	if p.err != nil {
		k.errs = append(k.errs, p.err)
	}

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosProcEnd,
		Item:   p,
	})

	p.done.Set()
}

// Proc is a harness process.
type Proc struct {
	kernel *Kernel
	name   string
	fn     ProcFunc

	wake chan bool
	park chan struct{}

	wait     *waitState
	started  bool
	finished bool
	killed   bool
	err      error
	done     *Event
}

// Name returns the name of the process.
func (p *Proc) Name() string {
	return p.name
}

// Kernel returns the kernel that runs the process.
func (p *Proc) Kernel() *Kernel {
	return p.kernel
}

// Now returns the current simulation time.
func (p *Proc) Now() sim.VTimeInSec {
	return p.kernel.Now()
}

// Finished tells if the process has returned.
func (p *Proc) Finished() bool {
	return p.finished
}

// Err returns the error that the process returned. A panic inside the
// process is reported as an error.
func (p *Proc) Err() error {
	return p.err
}

func (p *Proc) run() {
	defer func() {
		if r := recover(); r != nil {
			p.err = fmt.Errorf("process %s panicked: %v\n%s",
				p.name, r, debug.Stack())
		}

		p.finished = true
		p.park <- struct{}{}
	}()

	if !<-p.wake {
		return
	}

	p.err = p.fn(p)
}

// suspend gives control back to the engine and blocks until the engine
// resumes the process.
func (p *Proc) suspend() {
	p.park <- struct{}{}

	if !<-p.wake {
		runtime.Goexit()
	}
}

// Await suspends the process until the trigger fires.
func (p *Proc) Await(t Trigger) error {
	_, err := p.AwaitFirst(t)
	return err
}

// AwaitFirst suspends the process until one of the triggers fires. It returns
// the index of the trigger that fired first.
func (p *Proc) AwaitFirst(triggers ...Trigger) (int, error) {
	if p.kernel.current != p {
		log.Panicf("process %s: await called from outside the process",
			p.name)
	}

	if len(triggers) == 0 {
		log.Panic("await without trigger")
	}

	w := &waitState{index: -1}
	p.wait = w

	cancels := make([]func(), 0, len(triggers))
	for i, t := range triggers {
		i := i
		cancel := t.Prime(p.kernel, func(err error) {
			if w.fired {
				return
			}

			w.fired = true
			w.index = i
			w.err = err
			p.kernel.scheduleResume(p, w)
		})
		cancels = append(cancels, cancel)
	}

	p.suspend()

	for _, cancel := range cancels {
		cancel()
	}

	return w.index, w.err
}

// Spawn starts a child process on the same kernel.
func (p *Proc) Spawn(name string, fn ProcFunc) *Proc {
	return p.kernel.Start(name, fn)
}

type waitState struct {
	fired bool
	index int
	err   error
}
