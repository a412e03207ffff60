package tracing

import (
	"github.com/sarchlab/flashverif/datarecording"
	"github.com/sarchlab/flashverif/sim"
)

// TaskTable is the table that a DBTracer writes into.
const TaskTable = "trace"

// TaskEntry is a row of the trace table.
type TaskEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
	Steps     int
}

// DBTracer is a tracer that stores finished tasks into a DataRecorder.
type DBTracer struct {
	timeTeller sim.TimeTeller
	backend    datarecording.DataRecorder

	tracingTasks map[string]Task
}

// NewDBTracer creates a new DBTracer and the trace table.
func NewDBTracer(
	timeTeller sim.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(TaskTable, TaskEntry{})

	return &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.startingTaskMustBeValid(task)

	task.StartTime = t.timeTeller.CurrentTime()
	t.tracingTasks[task.ID] = task
}

func (t *DBTracer) startingTaskMustBeValid(task Task) {
	if task.ID == "" {
		panic("task ID must be set")
	}

	if task.Kind == "" {
		panic("task kind must be set")
	}

	if task.What == "" {
		panic("task what must be set")
	}

	if task.Location == "" {
		panic("task location must be set")
	}
}

// StepTask counts the steps of a task.
func (t *DBTracer) StepTask(task Task) {
	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	originalTask.Steps = append(originalTask.Steps, task.Steps...)
	t.tracingTasks[task.ID] = originalTask
}

// EndTask writes the task into the database.
func (t *DBTracer) EndTask(task Task) {
	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	t.backend.InsertData(TaskTable, TaskEntry{
		ID:        originalTask.ID,
		ParentID:  originalTask.ParentID,
		Kind:      originalTask.Kind,
		What:      originalTask.What,
		Location:  originalTask.Location,
		StartTime: float64(originalTask.StartTime),
		EndTime:   float64(t.timeTeller.CurrentTime()),
		Steps:     len(originalTask.Steps),
	})
}

// Terminate drops the unfinished tasks and flushes the database.
func (t *DBTracer) Terminate() {
	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}
