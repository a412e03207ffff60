package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunInfoTable is the table that a RunRecorder writes into.
const RunInfoTable = "run_info"

const timeLayout = "2006-01-02 15:04:05.000000000"

// RunInfo is a property of a verification run, such as the command line or
// the random seed.
type RunInfo struct {
	Property string
	Value    string
}

// RunRecorder records how a verification run was launched.
type RunRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

// NewRunRecorder creates a RunRecorder and the table it writes into.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	recorder.CreateTable(RunInfoTable, RunInfo{})

	return &RunRecorder{
		recorder: recorder,
	}
}

// Start records the start time, the command, and the working directory.
func (e *RunRecorder) Start() {
	e.Set("Start Time", time.Now().Format(timeLayout))
	e.Set("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "unknown"
	}

	e.Set("Working Directory", cwd)
}

// Set records an extra property of the run.
func (e *RunRecorder) Set(property, value string) {
	e.entries = append(e.entries, RunInfo{Property: property, Value: value})
}

// End writes the recorded properties together with the end time.
func (e *RunRecorder) End() {
	e.Set("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(RunInfoTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
