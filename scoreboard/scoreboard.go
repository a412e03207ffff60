// Package scoreboard compares the results the DUT returns with the values the
// stimulus wrote.
package scoreboard

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/flashverif/analysis"
)

var (
	// ErrMismatch is returned by Verdict when at least one result did not
	// meet its expectation.
	ErrMismatch = errors.New("result mismatch")

	// ErrDesync is returned when results and expectations no longer pair up.
	// It means the harness lost track of the DUT, which is worse than a
	// wrong value.
	ErrDesync = errors.New("scoreboard out of sync")
)

// Scoreboard pairs each observed result with the oldest pending expectation.
// Expectations come either from the data stream, one per transmitted byte, or
// directly from the scenario.
type Scoreboard struct {
	name   string
	logger *log.Logger

	data    *analysis.FIFO
	results *analysis.FIFO

	expected   []Expectation
	mismatches []Mismatch
	desyncs    []error
	checked    int
	passed     int
}

// NewScoreboard creates a scoreboard. A nil logger discards the log.
func NewScoreboard(name string, logger *log.Logger) *Scoreboard {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Scoreboard{
		name:    name,
		logger:  logger,
		data:    analysis.NewFIFO(name + ".Data"),
		results: analysis.NewFIFO(name + ".Results"),
	}
}

// Name returns the name of the scoreboard.
func (s *Scoreboard) Name() string {
	return s.name
}

// DataFIFO receives the bytes the DUT transmitted.
func (s *Scoreboard) DataFIFO() *analysis.FIFO {
	return s.data
}

// ResultFIFO receives the bytes the DUT returned.
func (s *Scoreboard) ResultFIFO() *analysis.FIFO {
	return s.results
}

// ExpectTransmitted turns the next n transmitted bytes into expectations.
func (s *Scoreboard) ExpectTransmitted(n int) error {
	for i := 0; i < n; i++ {
		item, ok := s.data.TryGet()
		if !ok {
			return s.desync(fmt.Errorf(
				"%w: expected %d transmitted bytes, got %d",
				ErrDesync, n, i))
		}

		s.expected = append(s.expected, Equal(valueOf(item)))
	}

	return nil
}

// DiscardTransmitted drops the transmitted bytes that are not data, such as
// status register values.
func (s *Scoreboard) DiscardTransmitted() int {
	return len(s.data.Drain())
}

// Expect queues expectations directly.
func (s *Scoreboard) Expect(e ...Expectation) {
	s.expected = append(s.expected, e...)
}

// Pending returns the number of expectations not paired yet.
func (s *Scoreboard) Pending() int {
	return len(s.expected)
}

// Check compares every result received so far. A mismatch is recorded and
// the comparison goes on. A result without an expectation stops the check
// with ErrDesync.
//
// The scoreboard never blocks on its FIFOs. Results are paired only when
// Check runs, so callers check after each readback and Verdict checks once
// more before deciding.
func (s *Scoreboard) Check() error {
	for {
		item, ok := s.results.TryGet()
		if !ok {
			return nil
		}

		actual := valueOf(item)

		if len(s.expected) == 0 {
			return s.desync(fmt.Errorf(
				"%w: result 0x%02x at %.10f has no expectation",
				ErrDesync, actual, float64(item.Time)))
		}

		e := s.expected[0]
		s.expected = s.expected[1:]
		s.compare(e, actual)
	}
}

func (s *Scoreboard) compare(e Expectation, actual byte) {
	index := s.checked
	s.checked++

	if e.Matches(actual) {
		s.passed++

		if e.Kind != ExpectDontCare {
			s.logger.Printf("%s: pass, result %d is 0x%02x",
				s.name, index, actual)
		}

		return
	}

	m := Mismatch{Index: index, Expected: e, Actual: actual}
	s.mismatches = append(s.mismatches, m)
	s.logger.Printf("%s: FAIL, %s", s.name, m)
}

func (s *Scoreboard) desync(err error) error {
	s.desyncs = append(s.desyncs, err)
	s.logger.Printf("CRITICAL %s: %v", s.name, err)

	return err
}

// Checked returns the number of compared results.
func (s *Scoreboard) Checked() int {
	return s.checked
}

// Passed returns the number of results that met their expectation.
func (s *Scoreboard) Passed() int {
	return s.passed
}

// Mismatches returns the recorded mismatches.
func (s *Scoreboard) Mismatches() []Mismatch {
	return s.mismatches
}

// Verdict checks the remaining results and reports the outcome. Expectations
// left without a result count as a desync.
func (s *Scoreboard) Verdict() error {
	if err := s.Check(); err != nil {
		return err
	}

	if len(s.desyncs) > 0 {
		return s.desyncs[0]
	}

	if len(s.expected) > 0 {
		return s.desync(fmt.Errorf("%w: %d expectations without a result",
			ErrDesync, len(s.expected)))
	}

	if len(s.mismatches) > 0 {
		return fmt.Errorf("%w: %d of %d results, first %s",
			ErrMismatch, len(s.mismatches), s.checked, s.mismatches[0])
	}

	return nil
}

func valueOf(item analysis.Item) byte {
	switch v := item.Value.(type) {
	case byte:
		return v
	case int:
		return byte(v)
	default:
		log.Panicf("scoreboard cannot compare %T", item.Value)
	}

	return 0
}
