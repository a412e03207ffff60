package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flashverif/analysis"
	"github.com/sarchlab/flashverif/config"
	"github.com/sarchlab/flashverif/coverage"
	"github.com/sarchlab/flashverif/datarecording"
	"github.com/sarchlab/flashverif/monitoring"
	"github.com/sarchlab/flashverif/scenario"
	"github.com/sarchlab/flashverif/tracing"
)

// errFailed is returned when at least one run fails.
var errFailed = errors.New("regression failed")

type runFlags struct {
	envFiles []string
	reps     string
	quiet    bool
}

func newRunCmd() *cobra.Command {
	rf := runFlags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the regression.",
		Long: "`run` runs the selected scenarios on every selected speed " +
			"grade and bus variant. Settings come from .env files, " +
			"FLASHVERIF_* variables, and flags, in increasing priority.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(rf.envFiles...)
			if err != nil {
				return err
			}

			err = applyFlags(cmd, &c, rf)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logOut := out
			if rf.quiet {
				logOut = io.Discard
			}

			return runRegression(c, out, log.New(logOut, "", 0))
		},
	}

	f := runCmd.Flags()
	f.StringSliceVar(&rf.envFiles, "env-file", nil,
		"env files to load, .env when empty")
	f.StringVar(&rf.reps, "reps", "",
		"repetitions per scenario, such as single_rw=50,status_reg=5")
	f.BoolVar(&rf.quiet, "quiet", false, "only print the final tables")
	f.StringSlice("scenario", nil, "scenarios to run, all when empty")
	f.StringSlice("grade", nil, "speed grades: 33-75, 25-50, 20-25")
	f.StringSlice("variant", nil, "bus variants: strobe, axi")
	f.Int64("seed", 0, "random seed of the first run")
	f.Float64("sys-freq", 0, "system clock in MHz")
	f.Uint64("max-cycles", 0, "cycle budget of each run, 0 for none")
	f.Bool("disable-coverage", false, "report open coverage without failing")
	f.String("coverage-xml", "", "write the coverage into this XML file")
	f.String("trace", "", "write the bus transactions into this JSON file")
	f.Bool("tx-log", false, "log every bus transaction")
	f.String("queue-csv", "", "write the BFM queue occupancy into this CSV")
	f.String("event-log", "", "log every simulation event into this file")
	f.Bool("record", false, "store results in a database")
	f.String("db", "", "database name, without the .sqlite3 extension")
	f.String("db-backend", "", "database backend: sqlite, clickhouse")
	f.Int("monitor-port", 0, "serve a live dashboard on this port")
	f.Bool("open-browser", false, "open the live dashboard")

	return runCmd
}

func applyFlags(cmd *cobra.Command, c *config.Config, rf runFlags) error {
	f := cmd.Flags()

	stringSlices := map[string]*[]string{
		"scenario": &c.Scenarios,
		"grade":    &c.Grades,
		"variant":  &c.Variants,
	}
	for name, dst := range stringSlices {
		if f.Changed(name) {
			*dst, _ = f.GetStringSlice(name)
		}
	}

	strs := map[string]*string{
		"coverage-xml": &c.CoverageXML,
		"trace":        &c.TracePath,
		"queue-csv":    &c.QueueCSV,
		"event-log":    &c.EventLog,
		"db":           &c.Recorder.Path,
		"db-backend":   &c.Recorder.Backend,
	}
	for name, dst := range strs {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}

	bools := map[string]*bool{
		"disable-coverage": &c.DisableCoverage,
		"tx-log":           &c.TransactionLog,
		"record":           &c.RecordResults,
		"open-browser":     &c.OpenBrowser,
	}
	for name, dst := range bools {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	if f.Changed("seed") {
		c.Seed, _ = f.GetInt64("seed")
	}

	if f.Changed("sys-freq") {
		c.SysFreqMHz, _ = f.GetFloat64("sys-freq")
	}

	if f.Changed("max-cycles") {
		c.MaxCycles, _ = f.GetUint64("max-cycles")
	}

	if f.Changed("monitor-port") {
		c.MonitorPort, _ = f.GetInt("monitor-port")
	}

	if rf.reps != "" {
		reps, err := config.ParseRepetitions(rf.reps)
		if err != nil {
			return err
		}

		for name, n := range reps {
			c.Repetitions[name] = n
		}
	}

	return c.Validate()
}

// regression holds what a run command opens and must close.
type regression struct {
	config   config.Config
	runner   *scenario.Runner
	recorder datarecording.DataRecorder
	info     *datarecording.RunRecorder
	trace    *os.File
	json     *tracing.JSONTracer
	db       *tracing.DBTracer
	queues   *os.File
	events   *os.File
	csv      *analysis.CSVBackend
	monitor  *monitoring.Monitor
}

func runRegression(c config.Config, out io.Writer, logger *log.Logger) error {
	reg := &regression{config: c}
	defer reg.close()

	b := c.EnvBuilder()

	if c.QueueCSV != "" {
		f, err := os.Create(c.QueueCSV)
		if err != nil {
			return err
		}

		reg.queues = f
		reg.csv = analysis.NewCSVBackend(f)
		b = b.WithQueueAnalysis(reg.csv, 0)
	}

	if c.EventLog != "" {
		f, err := os.Create(c.EventLog)
		if err != nil {
			return err
		}

		reg.events = f
		b = b.WithEventLog(log.New(f, "", 0))
	}

	runner, err := c.Runner(b, logger)
	if err != nil {
		return err
	}

	reg.runner = runner

	err = reg.attachOutputs()
	if err != nil {
		return err
	}

	err = reg.startMonitor()
	if err != nil {
		return err
	}

	results := runner.Run()

	fmt.Fprintln(out, scenario.SummaryTable(results))
	fmt.Fprintln(out, coverage.Table("Coverage", scenario.Reports(results)))

	if c.CoverageXML != "" {
		err = coverage.WriteXMLFile(c.CoverageXML, scenario.Reports(results))
		if err != nil {
			return err
		}
	}

	err = reg.finish(results)
	if err != nil {
		return err
	}

	failed := scenario.Failed(results)
	if len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d runs failed",
			errFailed, len(failed), len(results))
	}

	return nil
}

func (r *regression) attachOutputs() error {
	c := r.config

	if c.TracePath != "" {
		f, err := tracing.CreateJSONTraceFile(
			strings.TrimSuffix(c.TracePath, ".json"))
		if err != nil {
			return err
		}

		r.trace = f
		r.json = tracing.NewJSONTracer(f, r.runner)
		r.runner.WithTracer(r.json)
	}

	if c.RecordResults {
		recorder, err := datarecording.NewWithConfig(c.Recorder)
		if err != nil {
			return err
		}

		r.recorder = recorder
		r.runner.WithRecorder(recorder)

		r.db = tracing.NewDBTracer(r.runner, recorder)
		r.runner.WithTracer(r.db)

		r.info = datarecording.NewRunRecorder(recorder)
		r.info.Start()
		r.info.Set("Seed", strconv.FormatInt(c.Seed, 10))
		r.info.Set("Grades", strings.Join(c.Grades, ","))
		r.info.Set("Variants", strings.Join(c.Variants, ","))
		r.info.Set("Scenarios", strings.Join(c.Scenarios, ","))
		r.info.Set("Repetitions", config.FormatRepetitions(c.Repetitions))
	}

	return nil
}

func (r *regression) startMonitor() error {
	c := r.config
	if c.MonitorPort == 0 && !c.OpenBrowser {
		return nil
	}

	r.monitor = monitoring.NewMonitor().WithPortNumber(c.MonitorPort)
	r.monitor.RegisterRunner(r.runner)

	url, err := r.monitor.StartServer()
	if err != nil {
		return err
	}

	if c.OpenBrowser {
		err = monitoring.OpenBrowser(url)
		if err != nil {
			log.Printf("cannot open %s: %v", url, err)
		}
	}

	return nil
}

func (r *regression) finish(results []scenario.Result) error {
	var errs []error

	if r.json != nil {
		errs = append(errs, r.json.Finish())
	}

	if r.csv != nil {
		errs = append(errs, r.csv.Flush())
	}

	if r.db != nil {
		r.db.Terminate()
	}

	if r.info != nil {
		r.info.Set("Passed", fmt.Sprintf("%d/%d",
			len(results)-len(scenario.Failed(results)), len(results)))
		r.info.End()
	}

	return errors.Join(errs...)
}

func (r *regression) close() {
	if r.monitor != nil {
		_ = r.monitor.StopServer()
	}

	if r.trace != nil {
		_ = r.trace.Close()
	}

	if r.queues != nil {
		_ = r.queues.Close()
	}

	if r.events != nil {
		_ = r.events.Close()
	}

	if r.recorder != nil {
		_ = r.recorder.Close()
	}
}
