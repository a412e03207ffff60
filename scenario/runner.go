package scenario

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sarchlab/flashverif/coverage"
	"github.com/sarchlab/flashverif/datarecording"
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/scoreboard"
	"github.com/sarchlab/flashverif/sim"
	"github.com/sarchlab/flashverif/tracing"
)

// Result is the outcome of one scenario run.
type Result struct {
	Scenario    string
	Grade       flash.SpeedGrade
	Variant     dut.Variant
	Seed        int64
	Repetitions int

	// Err is nil if the run passed.
	Err error

	Coverage     coverage.Report
	Mismatches   []scoreboard.Mismatch
	Checked      int
	Applied      int
	Walk         []State
	Cycles       uint64
	SimTime      sim.VTimeInSec
	Transactions uint64
	AvgLatency   sim.VTimeInSec
	BusBusy      sim.VTimeInSec
	Acks         uint64
	Timeouts     uint64
}

// RunName names a run of a scenario on a grade and a bus.
func RunName(scenario string, g flash.SpeedGrade, v dut.Variant) string {
	return fmt.Sprintf("%s[%s,%s]", scenario, g.Name, v)
}

// Name returns the name of the run.
func (r Result) Name() string {
	return RunName(r.Scenario, r.Grade, r.Variant)
}

// Passed tells if the run passed.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Progress tells how far a runner is.
type Progress struct {
	Total   int
	Done    int
	Failed  int
	Current string
}

// Runner runs scenarios on every selected speed grade and bus variant, each
// run on a fresh test bench.
type Runner struct {
	base            EnvBuilder
	scenarios       []Scenario
	grades          []flash.SpeedGrade
	variants        []dut.Variant
	repetitions     map[string]int
	seed            int64
	disableCoverage bool
	logger          *log.Logger

	recorder    datarecording.DataRecorder
	covRecorder *coverage.Recorder

	mu       sync.Mutex
	current  *Env
	progress Progress
}

// NewRunner creates a runner that builds its test benches from the base
// builder. It runs every scenario of the catalog on the default grade and the
// strobe bus unless told otherwise.
func NewRunner(base EnvBuilder) *Runner {
	return &Runner{
		base:        base,
		scenarios:   Catalog(),
		grades:      []flash.SpeedGrade{flash.Grade33x75},
		variants:    []dut.Variant{dut.StrobeBus},
		repetitions: map[string]int{},
		seed:        1,
		logger:      log.New(io.Discard, "", 0),
	}
}

// WithScenarios selects the scenarios to run.
func (r *Runner) WithScenarios(scenarios ...Scenario) *Runner {
	r.scenarios = scenarios
	return r
}

// WithGrades selects the speed grades.
func (r *Runner) WithGrades(grades ...flash.SpeedGrade) *Runner {
	r.grades = grades
	return r
}

// WithVariants selects the bus variants.
func (r *Runner) WithVariants(variants ...dut.Variant) *Runner {
	r.variants = variants
	return r
}

// WithRepetitions overrides the number of repetitions of a scenario.
func (r *Runner) WithRepetitions(scenario string, n int) *Runner {
	r.repetitions[scenario] = n
	return r
}

// WithSeed sets the seed of the first run. Later runs use the following
// seeds.
func (r *Runner) WithSeed(seed int64) *Runner {
	r.seed = seed
	return r
}

// WithCoverageDisabled keeps coverage gaps from failing any run.
func (r *Runner) WithCoverageDisabled(disabled bool) *Runner {
	r.disableCoverage = disabled
	return r
}

// WithLogger sets where the runner logs the verdicts.
func (r *Runner) WithLogger(logger *log.Logger) *Runner {
	r.logger = logger
	return r
}

// WithTracer attaches a tracer to the BFM of every run. The runner can serve
// as the time teller of the tracer.
func (r *Runner) WithTracer(t tracing.Tracer) *Runner {
	r.base = r.base.WithTracer(t)
	return r
}

// WithRecorder stores the results, the mismatches, and the coverage in a
// result database.
func (r *Runner) WithRecorder(recorder datarecording.DataRecorder) *Runner {
	r.recorder = recorder
	recorder.CreateTable(ResultTable, ResultEntry{})
	recorder.CreateTable(MismatchTable, MismatchEntry{})
	r.covRecorder = coverage.NewRecorder(recorder)

	return r
}

// CurrentTime returns the simulation time of the run in progress.
func (r *Runner) CurrentTime() sim.VTimeInSec {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return 0
	}

	return r.current.Engine().CurrentTime()
}

// Current returns the environment of the run in progress, or nil between
// runs.
func (r *Runner) Current() *Env {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

// Progress returns how far the runner is. It is safe to call from other
// goroutines.
func (r *Runner) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.progress
}

// Run runs every selected scenario on every selected grade and variant.
func (r *Runner) Run() []Result {
	r.mu.Lock()
	r.progress = Progress{
		Total: len(r.grades) * len(r.variants) * len(r.scenarios),
	}
	r.mu.Unlock()

	results := make([]Result, 0, r.progress.Total)
	seed := r.seed

	for _, g := range r.grades {
		for _, v := range r.variants {
			for _, s := range r.scenarios {
				res := r.RunOne(s, g, v, seed)
				results = append(results, res)
				seed++
			}
		}
	}

	if r.recorder != nil {
		r.recorder.Flush()
	}

	return results
}

// RunOne runs a scenario once.
func (r *Runner) RunOne(
	s Scenario,
	g flash.SpeedGrade,
	v dut.Variant,
	seed int64,
) Result {
	reps := s.Repetitions
	if n, found := r.repetitions[s.Name]; found {
		reps = n
	}

	name := RunName(s.Name, g, v)

	b := s.Builder(r.base.
		WithSpeedGrade(g).
		WithVariant(v).
		WithSeed(seed))
	if r.disableCoverage {
		b = b.WithCoverageDisabled(true)
	}

	env := b.Build(name)

	r.mu.Lock()
	r.current = env
	r.progress.Current = name
	r.mu.Unlock()

	err := env.Run(func(e *Env, p *sched.Proc) error {
		return s.Body(e, p, reps)
	})

	res := Result{
		Scenario:     s.Name,
		Grade:        g,
		Variant:      v,
		Seed:         seed,
		Repetitions:  reps,
		Err:          err,
		Coverage:     env.Report(),
		Mismatches:   env.Scoreboard().Mismatches(),
		Checked:      env.Scoreboard().Checked(),
		Applied:      len(env.Sequencer().Applied()),
		Walk:         env.Machine().Walk(),
		Cycles:       env.Device().Cycles(),
		SimTime:      env.Engine().CurrentTime(),
		Transactions: env.Latency().TotalCount(),
		AvgLatency:   env.Latency().AverageTime(),
		BusBusy:      env.BusBusyTime(),
		Acks:         env.Steps().GetStepCount("ack"),
		Timeouts:     env.Steps().GetStepCount("timeout"),
	}

	r.mu.Lock()
	r.current = nil
	r.progress.Current = ""
	r.progress.Done++
	if !res.Passed() {
		r.progress.Failed++
	}
	r.mu.Unlock()

	if res.Passed() {
		r.logger.Printf("PASS %s: %d results checked, %s",
			name, res.Checked, res.Coverage.Summary())
	} else {
		r.logger.Printf("FAIL %s: %v", name, err)
	}

	r.record(res)

	return res
}

// Reports returns the coverage reports of the results.
func Reports(results []Result) []coverage.Report {
	reports := make([]coverage.Report, 0, len(results))
	for _, res := range results {
		reports = append(reports, res.Coverage)
	}

	return reports
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	failed := []Result{}

	for _, res := range results {
		if !res.Passed() {
			failed = append(failed, res)
		}
	}

	return failed
}
