package analysis

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/sarchlab/flashverif/sim"
)

// PerfEntry is a single performance measurement.
type PerfEntry struct {
	Start     sim.VTimeInSec
	End       sim.VTimeInSec
	Where     string
	What      string
	EntryType string
	Value     float64
	Unit      string
}

// PerfLogger is the interface that provides the service that can record
// performance data entries.
type PerfLogger interface {
	AddDataEntry(entry PerfEntry)
}

// CSVBackend is a PerfLogger that writes data entries as CSV.
type CSVBackend struct {
	csvWriter *csv.Writer
	err       error
}

// NewCSVBackend creates a CSVBackend that writes into w.
func NewCSVBackend(w io.Writer) *CSVBackend {
	b := &CSVBackend{csvWriter: csv.NewWriter(w)}

	b.write([]string{
		"Start", "End", "Where", "What", "EntryType", "Value", "Unit",
	})

	return b
}

// AddDataEntry adds a data entry.
func (b *CSVBackend) AddDataEntry(entry PerfEntry) {
	b.write([]string{
		fmt.Sprintf("%.10f", entry.Start),
		fmt.Sprintf("%.10f", entry.End),
		entry.Where,
		entry.What,
		entry.EntryType,
		fmt.Sprintf("%.10f", entry.Value),
		entry.Unit,
	})
}

func (b *CSVBackend) write(record []string) {
	if b.err != nil {
		return
	}

	b.err = b.csvWriter.Write(record)
}

// Flush flushes the CSV writer and reports the first write error.
func (b *CSVBackend) Flush() error {
	b.csvWriter.Flush()

	if b.err != nil {
		return b.err
	}

	return b.csvWriter.Error()
}

// MemoryBackend keeps data entries in memory.
type MemoryBackend struct {
	Entries []PerfEntry
}

// AddDataEntry adds a data entry.
func (b *MemoryBackend) AddDataEntry(entry PerfEntry) {
	b.Entries = append(b.Entries, entry)
}
