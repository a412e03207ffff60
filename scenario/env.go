package scenario

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/flashverif/analysis"
	"github.com/sarchlab/flashverif/bfm"
	"github.com/sarchlab/flashverif/coverage"
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/scoreboard"
	"github.com/sarchlab/flashverif/signal"
	"github.com/sarchlab/flashverif/sim"
	"github.com/sarchlab/flashverif/stimulus"
	"github.com/sarchlab/flashverif/tracing"
)

// ErrWatchdog is returned when a scenario runs past its cycle budget.
var ErrWatchdog = errors.New("watchdog expired")

// Env is the test bench of one scenario run. It owns a fresh simulation, the
// device, and one instance of every harness component.
type Env struct {
	name string

	engine  *sim.SerialEngine
	kernel  *sched.Kernel
	device  *dut.Device
	bfm     *bfm.BFM
	ops     *bfm.FlashOps
	dataMon *bfm.Monitor
	resMon  *bfm.Monitor

	board     *scoreboard.Scoreboard
	tracker   *coverage.Tracker
	sequencer *stimulus.Sequencer
	machine   *Machine
	logger    *log.Logger
	addr      stimulus.AddrDomain

	latency *tracing.LatencyTracer
	busy    *tracing.BusyTimeTracer
	steps   *tracing.StepCountTracer
	levels  []*analysis.LevelAnalyzer

	drainCycles int
	maxCycles   uint64
	expired     bool

	finalized bool
	verdict   error
	report    coverage.Report
}

// Name returns the name of the run.
func (e *Env) Name() string {
	return e.name
}

// Engine returns the engine of the simulation.
func (e *Env) Engine() *sim.SerialEngine {
	return e.engine
}

// Kernel returns the kernel that runs the harness processes.
func (e *Env) Kernel() *sched.Kernel {
	return e.kernel
}

// Device returns the device under test.
func (e *Env) Device() *dut.Device {
	return e.device
}

// BFM returns the bus functional model.
func (e *Env) BFM() *bfm.BFM {
	return e.bfm
}

// Ops returns the flash command sequences.
func (e *Env) Ops() *bfm.FlashOps {
	return e.ops
}

// Scoreboard returns the scoreboard.
func (e *Env) Scoreboard() *scoreboard.Scoreboard {
	return e.board
}

// Coverage returns the coverage tracker of the run.
func (e *Env) Coverage() *coverage.Tracker {
	return e.tracker
}

// Sequencer returns the stimulus sequencer.
func (e *Env) Sequencer() *stimulus.Sequencer {
	return e.sequencer
}

// AddrDomain returns the addresses that the stimulus draws from.
func (e *Env) AddrDomain() stimulus.AddrDomain {
	return e.addr
}

// Machine returns the state machine of the run.
func (e *Env) Machine() *Machine {
	return e.machine
}

// Logger returns the logger of the run.
func (e *Env) Logger() *log.Logger {
	return e.logger
}

// Latency returns the tracer that measures bus transactions.
func (e *Env) Latency() *tracing.LatencyTracer {
	return e.latency
}

// BusBusyTime returns the time that the host bus carried a transaction.
func (e *Env) BusBusyTime() sim.VTimeInSec {
	return e.busy.BusyTime()
}

// Steps counts the acknowledged and timed out bus transactions.
func (e *Env) Steps() *tracing.StepCountTracer {
	return e.steps
}

// Buffers returns the queues of the BFM.
func (e *Env) Buffers() []sim.Buffer {
	buffers := []sim.Buffer{}
	for _, q := range e.bfm.Queues() {
		buffers = append(buffers, q.Buffer())
	}

	return buffers
}

// Components returns the harness components of the run.
func (e *Env) Components() []sim.Named {
	return []sim.Named{
		e.device, e.bfm, e.dataMon, e.resMon,
		e.board, e.tracker, e.sequencer,
	}
}

// Verdict returns the scoreboard verdict once the run is done.
func (e *Env) Verdict() error {
	return e.verdict
}

// Report returns the coverage report once the run is done.
func (e *Env) Report() coverage.Report {
	return e.report
}

// Expired tells if the watchdog stopped the run.
func (e *Env) Expired() bool {
	return e.expired
}

// A Body is the part of a scenario that runs between the reset and the
// final checks.
type Body func(e *Env, p *sched.Proc) error

// Run starts the clock, resets the device, runs the body, and finalizes the
// scoreboard and the coverage. It returns once the simulation is over.
func (e *Env) Run(body Body) error {
	e.bfm.Start()
	e.dataMon.Start(e.kernel)
	e.resMon.Start(e.kernel)

	clock := e.device.Clock()

	main := e.kernel.Start(e.name, func(p *sched.Proc) error {
		defer clock.Stop()

		if err := e.Reset(p); err != nil {
			return errors.Join(err, e.Finish(p))
		}

		err := body(e, p)

		return errors.Join(err, e.Finish(p))
	})

	if e.maxCycles > 0 {
		e.device.Pins().Clk.Listen(signal.ListenerFunc(func(signal.Change) {
			if !e.expired && e.device.Cycles() >= e.maxCycles {
				e.expired = true
				clock.Stop()
			}
		}))
	}

	clock.Start()
	runErr := e.engine.Run()
	finished := main.Finished()
	e.kernel.Shutdown()

	if runErr != nil {
		return fmt.Errorf("%s: %w", e.name, runErr)
	}

	if !e.finalized {
		e.finalizeAbort()
	}

	if !finished || e.expired {
		return fmt.Errorf("%w: %s stopped after %d cycles in %s",
			ErrWatchdog, e.name, e.device.Cycles(), e.machine.State())
	}

	return main.Err()
}

// Reset holds the device in reset.
func (e *Env) Reset(p *sched.Proc) error {
	if err := e.machine.Enter(Reset); err != nil {
		return err
	}

	return e.bfm.Reset(p)
}

// Finish lets the monitors catch up with the last transactions and enters
// Done, which finalizes the scoreboard and the coverage. It returns the
// scoreboard verdict and the coverage failure, if any.
func (e *Env) Finish(p *sched.Proc) error {
	if e.finalized {
		return nil
	}

	if err := e.bfm.Cycles(p, e.drainCycles); err != nil {
		return err
	}

	if !e.machine.Started() {
		if err := e.machine.Enter(Reset); err != nil {
			return err
		}
	}

	if err := e.machine.Enter(Done); err != nil {
		return err
	}

	return errors.Join(e.verdict, e.report.Err())
}

func (e *Env) finalize() {
	e.finalized = true
	e.verdict = e.board.Verdict()
	e.report = e.tracker.Report()

	for _, l := range e.levels {
		l.Report()
	}
}

func (e *Env) finalizeAbort() {
	if e.finalized {
		return
	}

	if !e.machine.Started() {
		e.machine.walk = append(e.machine.walk, Reset)
	}

	if e.machine.State() != Done {
		_ = e.machine.Enter(Done)
	}

	if !e.finalized {
		e.finalize()
	}
}

// Enter moves the scenario to a state.
func (e *Env) Enter(s State) error {
	return e.machine.Enter(s)
}

// EnvBuilder builds test benches.
type EnvBuilder struct {
	freq         sim.Freq
	variant      dut.Variant
	grade        flash.SpeedGrade
	fill         byte
	busyCycles   dut.BusyCycles
	seed         int64
	maxRetries   int
	deadline     int
	resetCycles  int
	resultWindow int
	pollLimit    int
	drainCycles  int
	maxCycles    uint64
	noCoverage   bool
	perfLogger   analysis.PerfLogger
	eventLogger  *log.Logger
	levelPeriod  sim.VTimeInSec
	logger       *log.Logger
	txLogger     *log.Logger
	tracers      []tracing.Tracer
	domain       stimulus.Domain
	addr         stimulus.AddrDomain
}

// MakeEnvBuilder creates an EnvBuilder with default parameters.
func MakeEnvBuilder() EnvBuilder {
	return EnvBuilder{
		freq:         100 * sim.MHz,
		variant:      dut.StrobeBus,
		grade:        flash.Grade33x75,
		fill:         dut.ErasedValue,
		busyCycles:   dut.DefaultBusyCycles(),
		seed:         1,
		maxRetries:   stimulus.DefaultMaxRetries,
		deadline:     1000,
		resetCycles:  5,
		resultWindow: 64,
		pollLimit:    1000,
		drainCycles:  4,
		domain:       stimulus.ByteDomain,
		addr:         stimulus.AddrDomain{Base: 0, Size: 256},
	}
}

// WithFreq sets the system clock frequency.
func (b EnvBuilder) WithFreq(f sim.Freq) EnvBuilder {
	b.freq = f
	return b
}

// WithVariant sets the host bus.
func (b EnvBuilder) WithVariant(v dut.Variant) EnvBuilder {
	b.variant = v
	return b
}

// WithSpeedGrade sets the speed grade of the flash.
func (b EnvBuilder) WithSpeedGrade(g flash.SpeedGrade) EnvBuilder {
	b.grade = g
	return b
}

// WithFill sets the initial content of the flash.
func (b EnvBuilder) WithFill(v byte) EnvBuilder {
	b.fill = v
	return b
}

// WithBusyCycles sets how long write commands keep the flash busy.
func (b EnvBuilder) WithBusyCycles(c dut.BusyCycles) EnvBuilder {
	b.busyCycles = c
	return b
}

// WithSeed sets the seed of the randomizer.
func (b EnvBuilder) WithSeed(seed int64) EnvBuilder {
	b.seed = seed
	return b
}

// WithMaxRetries bounds the rejection sampling of the randomizer.
func (b EnvBuilder) WithMaxRetries(n int) EnvBuilder {
	b.maxRetries = n
	return b
}

// WithDeadline sets how many cycles the BFM waits for a signal.
func (b EnvBuilder) WithDeadline(cycles int) EnvBuilder {
	b.deadline = cycles
	return b
}

// WithResetCycles sets how long the reset is held.
func (b EnvBuilder) WithResetCycles(cycles int) EnvBuilder {
	b.resetCycles = cycles
	return b
}

// WithPollLimit bounds the number of status reads while waiting for the
// flash.
func (b EnvBuilder) WithPollLimit(n int) EnvBuilder {
	b.pollLimit = n
	return b
}

// WithMaxCycles stops the simulation after a number of clock cycles. Zero
// means no limit.
func (b EnvBuilder) WithMaxCycles(n uint64) EnvBuilder {
	b.maxCycles = n
	return b
}

// WithCoverageDisabled keeps coverage gaps from failing the run.
func (b EnvBuilder) WithCoverageDisabled(disabled bool) EnvBuilder {
	b.noCoverage = disabled
	return b
}

// WithLogger sets where the scoreboard and the coverage log.
func (b EnvBuilder) WithLogger(logger *log.Logger) EnvBuilder {
	b.logger = logger
	return b
}

// WithTransactionLog prints every bus transaction into the logger.
func (b EnvBuilder) WithTransactionLog(logger *log.Logger) EnvBuilder {
	b.txLogger = logger
	return b
}

// WithTracer attaches a tracer to the BFM. It can be called several times.
func (b EnvBuilder) WithTracer(t tracing.Tracer) EnvBuilder {
	b.tracers = append(append([]tracing.Tracer{}, b.tracers...), t)
	return b
}

// WithEventLog logs every event that the engine handles.
func (b EnvBuilder) WithEventLog(logger *log.Logger) EnvBuilder {
	b.eventLogger = logger
	return b
}

// WithQueueAnalysis records the occupancy of the BFM queues into the perf
// logger. A zero period reports a single average per queue.
func (b EnvBuilder) WithQueueAnalysis(
	pl analysis.PerfLogger,
	period sim.VTimeInSec,
) EnvBuilder {
	b.perfLogger = pl
	b.levelPeriod = period

	return b
}

// WithDomain sets the data domain that the sequencer draws from and the
// coverage tracks.
func (b EnvBuilder) WithDomain(d stimulus.Domain) EnvBuilder {
	b.domain = d
	return b
}

// WithAddrDomain sets the addresses that the sequencer draws from.
func (b EnvBuilder) WithAddrDomain(a stimulus.AddrDomain) EnvBuilder {
	b.addr = a
	return b
}

// Build creates a test bench on a new engine.
func (b EnvBuilder) Build(name string) *Env {
	logger := b.logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	engine := sim.NewSerialEngine()
	if b.eventLogger != nil {
		engine.AcceptHook(sim.NewEventLogger(b.eventLogger))
	}

	kernel := sched.NewKernel(engine)

	device := dut.MakeBuilder().
		WithEngine(engine).
		WithFreq(b.freq).
		WithVariant(b.variant).
		WithSpeedGrade(b.grade).
		WithFill(b.fill).
		WithBusyCycles(b.busyCycles).
		Build(name + ".DUT")

	m := bfm.MakeBuilder().
		WithKernel(kernel).
		WithPins(b.variant, device.Pins()).
		WithDeadline(b.deadline).
		WithResetCycles(b.resetCycles).
		WithResultWindow(b.resultWindow).
		Build(name + ".BFM")

	e := &Env{
		name:        name,
		engine:      engine,
		kernel:      kernel,
		device:      device,
		bfm:         m,
		ops:         bfm.NewFlashOps(m).WithPollLimit(b.pollLimit),
		dataMon:     bfm.NewMonitor(name+".DataMonitor", m, bfm.DataChannel),
		resMon:      bfm.NewMonitor(name+".ResultMonitor", m, bfm.ResultChannel),
		board:       scoreboard.NewScoreboard(name+".Scoreboard", logger),
		tracker:     coverage.NewTracker(name, b.domain.Size).WithLogger(logger),
		machine:     NewMachine(name),
		logger:      logger,
		addr:        b.addr,
		drainCycles: b.drainCycles,
		maxCycles:   b.maxCycles,
	}

	if b.noCoverage {
		e.tracker.Disable()
	}

	randomizer := stimulus.NewRandomizer(b.seed).WithMaxRetries(b.maxRetries)
	e.sequencer = stimulus.NewSequencer(
		name+".Sequencer", randomizer, b.domain, b.addr)

	e.dataMon.Port().Connect(e.board.DataFIFO())
	e.dataMon.Port().Connect(e.tracker)
	e.resMon.Port().Connect(e.board.ResultFIFO())

	e.latency = tracing.NewLatencyTracer(engine, nil)
	e.busy = tracing.NewBusyTimeTracer(engine, nil)
	tracing.CollectTrace(m, e.latency)
	tracing.CollectTrace(m, e.busy)
	e.steps = tracing.NewStepCountTracer(nil)
	tracing.CollectTrace(m, e.steps)

	for _, t := range b.tracers {
		tracing.CollectTrace(m, t)
	}

	if b.txLogger != nil {
		m.AcceptHook(bfm.NewTransactionLogger(b.txLogger, engine))
	}

	if b.perfLogger != nil {
		e.analyzeQueues(b.perfLogger, b.levelPeriod)
	}

	e.machine.OnDone(e.finalize)

	return e
}

func (e *Env) analyzeQueues(pl analysis.PerfLogger, period sim.VTimeInSec) {
	for _, buf := range e.Buffers() {
		b := analysis.MakeLevelAnalyzerBuilder().
			WithPerfLogger(pl).
			WithTimeTeller(e.engine).
			WithBuffer(buf)
		if period > 0 {
			b = b.WithPeriod(period)
		}

		e.levels = append(e.levels, b.Build())
	}
}
