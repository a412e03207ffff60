// Package config collects the settings of a verification run from defaults,
// .env files, and FLASHVERIF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sarchlab/flashverif/datarecording"
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/scenario"
	"github.com/sarchlab/flashverif/sim"
)

// EnvPrefix is the prefix of the environment variables that Load reads.
const EnvPrefix = "FLASHVERIF_"

// LegacyCoverageSwitch disables coverage errors when set to a true value.
const LegacyCoverageSwitch = "DISABLE_COVERAGE_ERRORS"

// ErrInvalid is returned when a setting cannot be used.
var ErrInvalid = errors.New("invalid config")

// Config holds everything a run needs.
type Config struct {
	Scenarios   []string
	Grades      []string
	Variants    []string
	Repetitions map[string]int

	SysFreqMHz  float64
	Seed        int64
	Deadline    int
	ResetCycles int
	PollLimit   int
	MaxCycles   uint64

	DisableCoverage bool
	CoverageXML     string
	TracePath       string
	TransactionLog  bool
	QueueCSV        string
	EventLog        string

	// RecordResults turns on the result database described by Recorder.
	RecordResults bool
	Recorder      datarecording.Config

	MonitorPort int
	OpenBrowser bool
}

// Default returns the settings of a full regression on the strobe bus.
func Default() Config {
	return Config{
		Scenarios:   scenario.Names(),
		Grades:      []string{flash.Grade33x75.Name},
		Variants:    []string{dut.StrobeBus.String()},
		Repetitions: map[string]int{},
		SysFreqMHz:  100,
		Seed:        1,
		Deadline:    1000,
		ResetCycles: 5,
		PollLimit:   1000,
		Recorder: datarecording.Config{
			Backend: datarecording.SQLiteBackend,
			ClickHouse: datarecording.ClickHouseOptions{
				Addr:     "localhost:9000",
				Database: "default",
			},
		},
	}
}

// Load reads the given .env files, or .env when none is given, and applies
// the FLASHVERIF_* variables on top of the defaults. Variables that are
// already set win over the files. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading env files: %w", err)
	}

	c := Default()

	err = c.apply(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}

	return c, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) apply(lookup lookupFunc) error {
	l := loader{lookup: lookup}

	l.listVar("SCENARIOS", &c.Scenarios)
	l.listVar("GRADES", &c.Grades)
	l.listVar("VARIANTS", &c.Variants)
	l.repetitionsVar("REPETITIONS", c.Repetitions)
	l.floatVar("SYS_FREQ_MHZ", &c.SysFreqMHz)
	l.int64Var("SEED", &c.Seed)
	l.intVar("DEADLINE", &c.Deadline)
	l.intVar("RESET_CYCLES", &c.ResetCycles)
	l.intVar("POLL_LIMIT", &c.PollLimit)
	l.uint64Var("MAX_CYCLES", &c.MaxCycles)
	l.boolVar("DISABLE_COVERAGE", &c.DisableCoverage)
	l.stringVar("COVERAGE_XML", &c.CoverageXML)
	l.stringVar("TRACE", &c.TracePath)
	l.boolVar("TX_LOG", &c.TransactionLog)
	l.stringVar("QUEUE_CSV", &c.QueueCSV)
	l.stringVar("EVENT_LOG", &c.EventLog)
	l.boolVar("RECORD", &c.RecordResults)
	l.stringVar("DB_BACKEND", &c.Recorder.Backend)
	l.stringVar("DB_PATH", &c.Recorder.Path)
	l.stringVar("CLICKHOUSE_ADDR", &c.Recorder.ClickHouse.Addr)
	l.stringVar("CLICKHOUSE_DATABASE", &c.Recorder.ClickHouse.Database)
	l.stringVar("CLICKHOUSE_USER", &c.Recorder.ClickHouse.Username)
	l.stringVar("CLICKHOUSE_PASSWORD", &c.Recorder.ClickHouse.Password)
	l.intVar("MONITOR_PORT", &c.MonitorPort)
	l.boolVar("OPEN_BROWSER", &c.OpenBrowser)

	if v, found := lookup(LegacyCoverageSwitch); found && !c.DisableCoverage {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			l.fail(LegacyCoverageSwitch, err)
		}

		c.DisableCoverage = disabled
	}

	return errors.Join(l.errs...)
}

// Validate checks that every setting names something that exists.
func (c Config) Validate() error {
	var errs []error

	invalid := func(format string, args ...any) {
		errs = append(errs,
			fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if len(c.Scenarios) == 0 {
		invalid("no scenario selected")
	}

	for _, name := range c.Scenarios {
		if _, err := scenario.ByName(name); err != nil {
			invalid("%v", err)
		}
	}

	if len(c.Grades) == 0 {
		invalid("no speed grade selected")
	}

	for _, name := range c.Grades {
		if _, err := flash.GradeByName(name); err != nil {
			invalid("%v", err)
		}
	}

	if len(c.Variants) == 0 {
		invalid("no bus variant selected")
	}

	for _, name := range c.Variants {
		if _, ok := dut.ParseVariant(name); !ok {
			invalid("unknown bus variant %q", name)
		}
	}

	for name, n := range c.Repetitions {
		if _, err := scenario.ByName(name); err != nil {
			invalid("repetitions: %v", err)
		}

		if n <= 0 {
			invalid("repetitions of %s must be positive, got %d", name, n)
		}
	}

	if c.SysFreqMHz <= 0 {
		invalid("system frequency must be positive, got %g MHz", c.SysFreqMHz)
	}

	if c.Deadline <= 0 {
		invalid("deadline must be positive, got %d cycles", c.Deadline)
	}

	if c.ResetCycles <= 0 {
		invalid("reset must last at least one cycle, got %d", c.ResetCycles)
	}

	if c.PollLimit <= 0 {
		invalid("poll limit must be positive, got %d", c.PollLimit)
	}

	switch c.Recorder.Backend {
	case "", datarecording.SQLiteBackend, datarecording.ClickHouseBackend:
	default:
		invalid("unknown recording backend %q", c.Recorder.Backend)
	}

	if c.MonitorPort < 0 {
		invalid("monitor port must not be negative, got %d", c.MonitorPort)
	}

	return errors.Join(errs...)
}

// SpeedGrades returns the selected speed grades.
func (c Config) SpeedGrades() ([]flash.SpeedGrade, error) {
	grades := make([]flash.SpeedGrade, 0, len(c.Grades))

	for _, name := range c.Grades {
		g, err := flash.GradeByName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}

		grades = append(grades, g)
	}

	return grades, nil
}

// BusVariants returns the selected bus variants.
func (c Config) BusVariants() ([]dut.Variant, error) {
	variants := make([]dut.Variant, 0, len(c.Variants))

	for _, name := range c.Variants {
		v, ok := dut.ParseVariant(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown bus variant %q", ErrInvalid, name)
		}

		variants = append(variants, v)
	}

	return variants, nil
}

// SelectedScenarios returns the selected scenarios in the given order.
func (c Config) SelectedScenarios() ([]scenario.Scenario, error) {
	scenarios := make([]scenario.Scenario, 0, len(c.Scenarios))

	for _, name := range c.Scenarios {
		s, err := scenario.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}

		scenarios = append(scenarios, s)
	}

	return scenarios, nil
}

// EnvBuilder returns the environment builder that every run starts from.
func (c Config) EnvBuilder() scenario.EnvBuilder {
	b := scenario.MakeEnvBuilder().
		WithFreq(sim.Freq(c.SysFreqMHz) * sim.MHz).
		WithDeadline(c.Deadline).
		WithResetCycles(c.ResetCycles).
		WithPollLimit(c.PollLimit)

	if c.MaxCycles > 0 {
		b = b.WithMaxCycles(c.MaxCycles)
	}

	return b
}

// Runner validates the config and returns a runner that starts every run
// from b, which normally comes from EnvBuilder.
func (c Config) Runner(
	b scenario.EnvBuilder,
	logger *log.Logger,
) (*scenario.Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	grades, err := c.SpeedGrades()
	if err != nil {
		return nil, err
	}

	variants, err := c.BusVariants()
	if err != nil {
		return nil, err
	}

	scenarios, err := c.SelectedScenarios()
	if err != nil {
		return nil, err
	}

	if c.TransactionLog && logger != nil {
		b = b.WithTransactionLog(logger)
	}

	r := scenario.NewRunner(b).
		WithScenarios(scenarios...).
		WithGrades(grades...).
		WithVariants(variants...).
		WithSeed(c.Seed).
		WithCoverageDisabled(c.DisableCoverage)

	if logger != nil {
		r.WithLogger(logger)
	}

	for _, name := range sortedKeys(c.Repetitions) {
		r.WithRepetitions(name, c.Repetitions[name])
	}

	return r, nil
}

// ParseRepetitions parses a list like "single_rw=50,status_reg=5".
func ParseRepetitions(s string) (map[string]int, error) {
	reps := map[string]int{}

	for _, field := range splitList(s) {
		name, count, found := strings.Cut(field, "=")
		if !found {
			return nil, fmt.Errorf("%w: repetition %q has no count",
				ErrInvalid, field)
		}

		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, fmt.Errorf("%w: repetition %q: %v", ErrInvalid, field, err)
		}

		reps[strings.TrimSpace(name)] = n
	}

	return reps, nil
}

// FormatRepetitions is the inverse of ParseRepetitions.
func FormatRepetitions(reps map[string]int) string {
	fields := make([]string, 0, len(reps))
	for _, name := range sortedKeys(reps) {
		fields = append(fields, fmt.Sprintf("%s=%d", name, reps[name]))
	}

	return strings.Join(fields, ",")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func splitList(s string) []string {
	fields := []string{}

	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			fields = append(fields, f)
		}
	}

	return fields
}
