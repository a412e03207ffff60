package tracing

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/xid"
	"github.com/sarchlab/flashverif/sim"
)

// JSONTracer writes finished tasks as a JSON array.
type JSONTracer struct {
	w             io.Writer
	timeTeller    sim.TimeTeller
	firstTask     bool
	finished      bool
	inflightTasks map[string]Task
	err           error
}

// NewJSONTracer creates a JSONTracer that writes into w.
func NewJSONTracer(w io.Writer, timeTeller sim.TimeTeller) *JSONTracer {
	t := &JSONTracer{
		w:             w,
		timeTeller:    timeTeller,
		firstTask:     true,
		inflightTasks: make(map[string]Task),
	}

	t.write([]byte("[\n"))

	return t
}

// CreateJSONTraceFile creates a file for a JSON trace. An empty name gets a
// unique one.
func CreateJSONTraceFile(name string) (*os.File, error) {
	if name == "" {
		name = "flashverif_trace_" + xid.New().String()
	}

	f, err := os.Create(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("creating trace file: %w", err)
	}

	return f, nil
}

// StartTask records the start of a task
func (t *JSONTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()
	t.inflightTasks[task.ID] = task
}

// StepTask records the moment that a task reaches a milestone
func (t *JSONTracer) StepTask(task Task) {
	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		step.Time = t.timeTeller.CurrentTime()
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.inflightTasks[task.ID] = originalTask
}

// EndTask writes the task.
func (t *JSONTracer) EndTask(task Task) {
	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	originalTask.EndTime = t.timeTeller.CurrentTime()
	delete(t.inflightTasks, task.ID)

	if t.firstTask {
		t.firstTask = false
	} else {
		t.write([]byte(",\n"))
	}

	b, err := json.Marshal(originalTask)
	if err != nil {
		t.err = err
		return
	}

	t.write(b)
}

func (t *JSONTracer) write(b []byte) {
	if t.err != nil {
		return
	}

	_, t.err = t.w.Write(b)
}

// Finish closes the JSON array and returns the first write error.
func (t *JSONTracer) Finish() error {
	if !t.finished {
		t.finished = true
		t.write([]byte("\n]\n"))
	}

	return t.err
}
