package scenario

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Table names in the result database.
const (
	ResultTable   = "scenario_results"
	MismatchTable = "scoreboard_mismatches"
)

// ResultEntry is a row of the result table.
type ResultEntry struct {
	Run          string
	Scenario     string
	Grade        string
	Variant      string
	Seed         int64
	Repetitions  int
	Passed       bool
	Error        string
	Checked      int
	Mismatches   int
	Covered      int
	DomainSize   int
	Cycles       uint64
	SimTime      float64
	Transactions uint64
	AvgLatency   float64
	BusBusy      float64
	Acks         uint64
	Timeouts     uint64
	Walk         string
}

// MismatchEntry is a row of the mismatch table.
type MismatchEntry struct {
	Run      string
	Position int
	Expected string
	Actual   uint8
}

func (r *Runner) record(res Result) {
	if r.recorder == nil {
		return
	}

	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}

	r.recorder.InsertData(ResultTable, ResultEntry{
		Run:          res.Name(),
		Scenario:     res.Scenario,
		Grade:        res.Grade.Name,
		Variant:      res.Variant.String(),
		Seed:         res.Seed,
		Repetitions:  res.Repetitions,
		Passed:       res.Passed(),
		Error:        errText,
		Checked:      res.Checked,
		Mismatches:   len(res.Mismatches),
		Covered:      len(res.Coverage.Covered),
		DomainSize:   res.Coverage.DomainSize,
		Cycles:       res.Cycles,
		SimTime:      float64(res.SimTime),
		Transactions: res.Transactions,
		AvgLatency:   float64(res.AvgLatency),
		BusBusy:      float64(res.BusBusy),
		Acks:         res.Acks,
		Timeouts:     res.Timeouts,
		Walk:         walkString(res.Walk),
	})

	for _, m := range res.Mismatches {
		r.recorder.InsertData(MismatchTable, MismatchEntry{
			Run:      res.Name(),
			Position: m.Index,
			Expected: m.Expected.String(),
			Actual:   m.Actual,
		})
	}

	r.covRecorder.Record(res.Coverage)
}

func walkString(walk []State) string {
	names := make([]string, 0, len(walk))
	for _, s := range walk {
		names = append(names, s.String())
	}

	return strings.Join(names, ",")
}

// SummaryTable renders the verdicts of the results as a console table.
func SummaryTable(results []Result) string {
	t := table.NewWriter()
	t.SetTitle("Scenario Results")
	t.AppendHeader(table.Row{"Run", "Verdict", "Checked", "Mismatches",
		"Coverage", "Cycles", "Bus Transactions"})

	passed := 0

	for _, res := range results {
		verdict := "PASS"
		if res.Passed() {
			passed++
		} else {
			verdict = "FAIL"
		}

		t.AppendRow(table.Row{
			res.Name(),
			verdict,
			res.Checked,
			len(res.Mismatches),
			fmt.Sprintf("%d/%d", len(res.Coverage.Covered),
				res.Coverage.DomainSize),
			res.Cycles,
			res.Transactions,
		})
	}

	t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d/%d", passed,
		len(results))})

	return t.Render()
}
