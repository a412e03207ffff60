// Package coverage tracks which values of a domain a scenario has exercised
// and reports the gaps.
package coverage

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/sarchlab/flashverif/analysis"
)

// ErrNotClosed is reported when a scenario ends before every bin was hit.
var ErrNotClosed = errors.New("coverage not closed")

// Tracker counts the hits of each bin of a domain of values 0 to size-1. A
// tracker belongs to one scenario and becomes read-only once frozen.
type Tracker struct {
	name     string
	size     int
	hits     []uint64
	covered  int
	outside  uint64
	disabled bool
	frozen   bool
	logger   *log.Logger
}

// NewTracker creates a tracker with one bin per value of the domain.
func NewTracker(name string, size int) *Tracker {
	if size <= 0 {
		log.Panicf("coverage %s: domain size %d must be positive", name, size)
	}

	return &Tracker{
		name: name,
		size: size,
		hits: make([]uint64, size),
	}
}

// WithLogger makes the tracker log its report.
func (t *Tracker) WithLogger(logger *log.Logger) *Tracker {
	t.logger = logger
	return t
}

// Disable turns coverage failures into plain reports.
func (t *Tracker) Disable() *Tracker {
	t.disabled = true
	return t
}

// Name returns the name of the tracker.
func (t *Tracker) Name() string {
	return t.name
}

// Size returns the number of bins.
func (t *Tracker) Size() int {
	return t.size
}

// Disabled tells if coverage failures are suppressed.
func (t *Tracker) Disabled() bool {
	return t.disabled
}

// Record counts a hit on the bin of v. Values outside the domain are counted
// separately.
func (t *Tracker) Record(v int) {
	if t.frozen {
		log.Panicf("coverage %s: record after the scenario finished", t.name)
	}

	if v < 0 || v >= t.size {
		t.outside++
		return
	}

	if t.hits[v] == 0 {
		t.covered++
	}

	t.hits[v]++
}

// Write records the value of an analysis item, so that the tracker can
// subscribe to a monitor port.
func (t *Tracker) Write(item analysis.Item) {
	switch v := item.Value.(type) {
	case byte:
		t.Record(int(v))
	case int:
		t.Record(v)
	default:
		log.Panicf("coverage %s: cannot record %T", t.name, item.Value)
	}
}

// Has tells if the bin of v has been hit.
func (t *Tracker) Has(v int) bool {
	return v >= 0 && v < t.size && t.hits[v] > 0
}

// Hits returns the number of hits of the bin of v.
func (t *Tracker) Hits(v int) uint64 {
	if v < 0 || v >= t.size {
		return 0
	}

	return t.hits[v]
}

// Len returns the number of bins that have been hit.
func (t *Tracker) Len() int {
	return t.covered
}

// Outside returns the number of recorded values that fell outside the
// domain.
func (t *Tracker) Outside() uint64 {
	return t.outside
}

// IsClosed tells if every bin has been hit.
func (t *Tracker) IsClosed() bool {
	return t.covered == t.size
}

// Covered returns the values that have been hit, in ascending order.
func (t *Tracker) Covered() []int {
	return t.collect(true)
}

// Missing returns the values that have not been hit, in ascending order.
func (t *Tracker) Missing() []int {
	return t.collect(false)
}

func (t *Tracker) collect(hit bool) []int {
	values := []int{}

	for v, n := range t.hits {
		if (n > 0) == hit {
			values = append(values, v)
		}
	}

	return values
}

// Freeze makes the tracker read-only.
func (t *Tracker) Freeze() {
	t.frozen = true
}

// Report freezes the tracker and summarizes it.
func (t *Tracker) Report() Report {
	t.Freeze()

	hits := make(map[int]uint64, t.covered)
	for _, v := range t.Covered() {
		hits[v] = t.hits[v]
	}

	r := Report{
		Name:       t.name,
		DomainSize: t.size,
		Covered:    t.Covered(),
		Missing:    t.Missing(),
		Hits:       hits,
		Closed:     t.IsClosed(),
		Disabled:   t.disabled,
	}

	if t.logger != nil {
		t.logger.Print(r.Summary())
	}

	return r
}

// Report is the coverage of one scenario.
type Report struct {
	Name       string
	DomainSize int
	Covered    []int
	Missing    []int
	Hits       map[int]uint64
	Closed     bool
	Disabled   bool
}

// Percent returns the share of covered bins.
func (r Report) Percent() float64 {
	if r.DomainSize == 0 {
		return 0
	}

	return 100 * float64(len(r.Covered)) / float64(r.DomainSize)
}

// Summary describes the report in one line.
func (r Report) Summary() string {
	if r.Closed {
		return fmt.Sprintf("%s: covered all %d values", r.Name, r.DomainSize)
	}

	return fmt.Sprintf("%s: covered %d of %d values, missing %v",
		r.Name, len(r.Covered), r.DomainSize, r.Missing)
}

// Err returns ErrNotClosed with the missing values, unless the coverage is
// closed or checking is disabled.
func (r Report) Err() error {
	if r.Closed || r.Disabled {
		return nil
	}

	return fmt.Errorf("%w: %s missed %v", ErrNotClosed, r.Name, r.Missing)
}

// SortReports orders reports by name.
func SortReports(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Name < reports[j].Name
	})
}
