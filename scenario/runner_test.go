package scenario_test

import (
	"bytes"
	"context"
	"log"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/flashverif/coverage"
	"github.com/sarchlab/flashverif/datarecording"
	"github.com/sarchlab/flashverif/dut"
	"github.com/sarchlab/flashverif/flash"
	"github.com/sarchlab/flashverif/scenario"
	"github.com/sarchlab/flashverif/sched"
	"github.com/sarchlab/flashverif/scoreboard"
	"github.com/sarchlab/flashverif/stimulus"
	"github.com/sarchlab/flashverif/tracing"
)

var _ = Describe("Catalog", func() {
	It("should list the scenarios by name", func() {
		Expect(scenario.Names()).To(Equal([]string{
			"bulk_erase", "enable_disable", "fast_read", "page_program_read",
			"page_rw", "random_cover", "sector_erase", "single_rw",
			"status_reg",
		}))
	})

	It("should not find unknown scenarios", func() {
		_, err := scenario.ByName("chip_select")
		Expect(err).To(MatchError(scenario.ErrUnknownScenario))
	})
})

var _ = Describe("Runner", func() {
	short := func(names ...string) []scenario.Scenario {
		scenarios := []scenario.Scenario{}

		for _, name := range names {
			s, err := scenario.ByName(name)
			Expect(err).NotTo(HaveOccurred())

			scenarios = append(scenarios, s)
		}

		return scenarios
	}

	It("should pass the fixed scenarios on both buses", func() {
		out := new(bytes.Buffer)

		r := scenario.NewRunner(scenario.MakeEnvBuilder()).
			WithScenarios(short("enable_disable", "status_reg", "single_rw",
				"fast_read", "sector_erase", "bulk_erase")...).
			WithVariants(dut.StrobeBus, dut.AXIBus).
			WithRepetitions("single_rw", 3).
			WithRepetitions("fast_read", 3).
			WithRepetitions("status_reg", 2).
			WithRepetitions("sector_erase", 2).
			WithRepetitions("bulk_erase", 2).
			WithLogger(log.New(out, "", 0))

		results := r.Run()

		Expect(results).To(HaveLen(12))

		for _, res := range results {
			Expect(res.Err).NotTo(HaveOccurred(), res.Name())
			Expect(res.Mismatches).To(BeEmpty())
			Expect(res.Checked).To(BeNumerically(">", 0))
			Expect(res.Acks).To(Equal(res.Transactions))
			Expect(res.Timeouts).To(BeZero())
		}

		Expect(scenario.Failed(results)).To(BeEmpty())
		Expect(r.Progress()).To(Equal(scenario.Progress{Total: 12, Done: 12}))
		Expect(out.String()).To(ContainSubstring("PASS single_rw[33-75,"))
		Expect(results[2].Repetitions).To(Equal(3))
		Expect(results[2].Applied).To(Equal(3))
	})

	It("should sweep the speed grades", func() {
		r := scenario.NewRunner(scenario.MakeEnvBuilder()).
			WithScenarios(short("page_program_read")...).
			WithGrades(flash.SpeedGrades()...)

		results := r.Run()

		Expect(results).To(HaveLen(3))
		Expect(results[0].Name()).To(Equal("page_program_read[33-75,strobe]"))

		for _, res := range results {
			Expect(res.Passed()).To(BeTrue(), res.Name())
		}

		Expect(results[2].Cycles).To(BeNumerically(">", results[0].Cycles))
	})

	It("should pass the whole catalog on every grade and bus", func() {
		grades := flash.SpeedGrades()
		variants := []dut.Variant{dut.StrobeBus, dut.AXIBus}
		catalog := scenario.Catalog()

		r := scenario.NewRunner(scenario.MakeEnvBuilder()).
			WithScenarios(catalog...).
			WithGrades(grades...).
			WithVariants(variants...)

		results := r.Run()

		Expect(results).To(HaveLen(len(catalog) * len(grades) * len(variants)))
		Expect(scenario.Failed(results)).To(BeEmpty())

		closing := 0

		for _, res := range results {
			Expect(res.Err).NotTo(HaveOccurred(), res.Name())

			if res.Scenario == "page_rw" || res.Scenario == "random_cover" {
				closing++

				Expect(res.Coverage.Disabled).To(BeFalse(), res.Name())
				Expect(res.Coverage.Closed).To(BeTrue(), res.Name())
			}
		}

		Expect(closing).To(Equal(2 * len(grades) * len(variants)))
	})

	It("should close the coverage of a small domain", func() {
		cover, err := scenario.ByName("random_cover")
		Expect(err).NotTo(HaveOccurred())

		small := scenario.Scenario{
			Name:    "small_cover",
			Domain:  stimulus.Domain{Name: "small", Size: 8},
			Addr:    stimulus.AddrDomain{Base: 0x100, Size: 8},
			Closure: true,
			Body:    cover.Body,
		}

		res := scenario.NewRunner(scenario.MakeEnvBuilder()).
			RunOne(small, flash.Grade33x75, dut.StrobeBus, 3)

		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Coverage.Closed).To(BeTrue())
		Expect(res.Applied).To(BeNumerically(">=", 8))
	})

	It("should fail open coverage unless coverage is disabled", func() {
		idle := scenario.Scenario{
			Name:    "idle",
			Domain:  stimulus.Domain{Name: "small", Size: 4},
			Closure: true,
			Body: func(e *scenario.Env, p *sched.Proc, _ int) error {
				return e.WriteEnable(p)
			},
		}

		r := scenario.NewRunner(scenario.MakeEnvBuilder())
		res := r.RunOne(idle, flash.Grade33x75, dut.StrobeBus, 1)
		Expect(res.Err).To(MatchError(coverage.ErrNotClosed))

		r.WithCoverageDisabled(true)
		res = r.RunOne(idle, flash.Grade33x75, dut.StrobeBus, 1)
		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Coverage.Disabled).To(BeTrue())
	})

	It("should store results, coverage, and bus traces", func() {
		path := filepath.Join(GinkgoT().TempDir(), "results")
		recorder := datarecording.New(path)

		r := scenario.NewRunner(scenario.MakeEnvBuilder()).
			WithScenarios(short("page_program_read")...).
			WithRecorder(recorder)
		r.WithTracer(tracing.NewDBTracer(r, recorder))

		results := r.Run()
		Expect(results[0].Passed()).To(BeTrue())
		Expect(recorder.Close()).To(Succeed())

		reader := datarecording.NewReader(path + ".sqlite3")
		defer reader.Close()

		reports, err := coverage.LoadReports(context.Background(), reader)
		Expect(err).NotTo(HaveOccurred())
		Expect(reports).To(HaveLen(1))
		Expect(reports[0].Name).To(Equal(results[0].Name()))

		reader.MapTable(scenario.ResultTable, scenario.ResultEntry{})
		rows, _, err := reader.Query(context.Background(), scenario.ResultTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))

		entry := rows[0].(*scenario.ResultEntry)
		Expect(entry.Passed).To(BeTrue())
		Expect(entry.Walk).To(HavePrefix("Reset,Configure"))

		reader.MapTable(tracing.TaskTable, tracing.TaskEntry{})
		_, traced, err := reader.Query(context.Background(), tracing.TaskTable,
			datarecording.QueryParams{Limit: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(traced).To(BeNumerically(">", 0))
	})

	It("should store the mismatches of a failing run", func() {
		path := filepath.Join(GinkgoT().TempDir(), "results")
		recorder := datarecording.New(path)

		wrong := scenario.Scenario{
			Name:   "wrong_expectation",
			Domain: stimulus.Domain{Name: "small", Size: 4},
			Body: func(e *scenario.Env, p *sched.Proc, _ int) error {
				if err := e.Program(p, 0x40, 0x12); err != nil {
					return err
				}

				e.Scoreboard().DiscardTransmitted()
				e.Scoreboard().Expect(scoreboard.Equal(0x34))

				_, err := e.ReadBack(p, flash.ReadData, 0x40, 1)

				return err
			},
		}

		r := scenario.NewRunner(scenario.MakeEnvBuilder()).
			WithCoverageDisabled(true).
			WithRecorder(recorder)

		res := r.RunOne(wrong, flash.Grade33x75, dut.StrobeBus, 1)
		Expect(res.Err).To(MatchError(scoreboard.ErrMismatch))
		Expect(recorder.Close()).To(Succeed())

		reader := datarecording.NewReader(path + ".sqlite3")
		defer reader.Close()

		reader.MapTable(scenario.MismatchTable, scenario.MismatchEntry{})
		rows, _, err := reader.Query(context.Background(),
			scenario.MismatchTable, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))

		entry := rows[0].(*scenario.MismatchEntry)
		Expect(entry.Run).To(Equal(res.Name()))
		Expect(entry.Position).To(Equal(res.Mismatches[0].Index))
		Expect(entry.Expected).To(Equal("0x34"))
		Expect(entry.Actual).To(Equal(uint8(0x12)))
	})

	It("should render a summary", func() {
		results := []scenario.Result{{
			Scenario: "status_reg",
			Grade:    flash.Grade25x50,
			Variant:  dut.AXIBus,
			Checked:  10,
			Coverage: coverage.Report{DomainSize: 256, Covered: []int{1, 2}},
		}}

		out := scenario.SummaryTable(results)

		Expect(out).To(ContainSubstring("status_reg[25-50,axi]"))
		Expect(out).To(ContainSubstring("PASS"))
		Expect(out).To(ContainSubstring("2/256"))
	})

	It("should report no time when idle", func() {
		r := scenario.NewRunner(scenario.MakeEnvBuilder())

		Expect(r.CurrentTime()).To(BeZero())
		Expect(r.Progress()).To(Equal(scenario.Progress{}))
	})
})
