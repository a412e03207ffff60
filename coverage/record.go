package coverage

import (
	"context"
	"fmt"

	"github.com/sarchlab/flashverif/datarecording"
)

// Table names in the result database.
const (
	SummaryTable = "coverage_summary"
	BinTable     = "coverage_bins"
)

// SummaryEntry is a row of the summary table.
type SummaryEntry struct {
	Scenario   string
	DomainSize int
	Covered    int
	Closed     bool
	Disabled   bool
}

// BinEntry is a row of the bin table. Missing values are stored with zero
// hits.
type BinEntry struct {
	Scenario string
	Value    int
	Hits     uint64
}

// Recorder stores coverage reports in a result database.
type Recorder struct {
	recorder datarecording.DataRecorder
}

// NewRecorder creates the coverage tables in the database.
func NewRecorder(recorder datarecording.DataRecorder) *Recorder {
	recorder.CreateTable(SummaryTable, SummaryEntry{})
	recorder.CreateTable(BinTable, BinEntry{})

	return &Recorder{recorder: recorder}
}

// Record stores one report.
func (r *Recorder) Record(rep Report) {
	r.recorder.InsertData(SummaryTable, SummaryEntry{
		Scenario:   rep.Name,
		DomainSize: rep.DomainSize,
		Covered:    len(rep.Covered),
		Closed:     rep.Closed,
		Disabled:   rep.Disabled,
	})

	for _, v := range rep.Covered {
		r.recorder.InsertData(BinTable, BinEntry{
			Scenario: rep.Name,
			Value:    v,
			Hits:     rep.Hits[v],
		})
	}

	for _, v := range rep.Missing {
		r.recorder.InsertData(BinTable, BinEntry{
			Scenario: rep.Name,
			Value:    v,
		})
	}
}

// LoadReports reads the reports stored by a Recorder.
func LoadReports(
	ctx context.Context,
	reader datarecording.DataReader,
) ([]Report, error) {
	reader.MapTable(SummaryTable, SummaryEntry{})
	reader.MapTable(BinTable, BinEntry{})

	summaries, _, err := reader.Query(ctx, SummaryTable,
		datarecording.QueryParams{OrderBy: "Scenario"})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", SummaryTable, err)
	}

	reports := make([]Report, 0, len(summaries))
	index := map[string]int{}

	for _, s := range summaries {
		entry := s.(*SummaryEntry)
		index[entry.Scenario] = len(reports)
		reports = append(reports, Report{
			Name:       entry.Scenario,
			DomainSize: entry.DomainSize,
			Covered:    []int{},
			Missing:    []int{},
			Hits:       map[int]uint64{},
			Closed:     entry.Closed,
			Disabled:   entry.Disabled,
		})
	}

	bins, _, err := reader.Query(ctx, BinTable,
		datarecording.QueryParams{OrderBy: "Scenario, Value"})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", BinTable, err)
	}

	for _, b := range bins {
		entry := b.(*BinEntry)

		i, ok := index[entry.Scenario]
		if !ok {
			continue
		}

		rep := &reports[i]
		if entry.Hits == 0 {
			rep.Missing = append(rep.Missing, entry.Value)
			continue
		}

		rep.Covered = append(rep.Covered, entry.Value)
		rep.Hits[entry.Value] = entry.Hits
	}

	return reports, nil
}
