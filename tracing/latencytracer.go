package tracing

import (
	"github.com/sarchlab/flashverif/sim"
)

// LatencyTracer collects the number of tasks and the time they take. Tasks
// that overlap are counted separately.
type LatencyTracer struct {
	timeTeller    sim.TimeTeller
	filter        TaskFilter
	inflightTasks map[string]Task

	taskCount  uint64
	totalTime  sim.VTimeInSec
	maxTime    sim.VTimeInSec
	maxInFlight int
}

// NewLatencyTracer creates a new LatencyTracer. A nil filter accepts every
// task.
func NewLatencyTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *LatencyTracer {
	return &LatencyTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]Task),
	}
}

// TotalCount returns the number of finished tasks.
func (t *LatencyTracer) TotalCount() uint64 {
	return t.taskCount
}

// TotalTime returns the sum of the durations of the finished tasks.
func (t *LatencyTracer) TotalTime() sim.VTimeInSec {
	return t.totalTime
}

// AverageTime returns the average duration of the finished tasks.
func (t *LatencyTracer) AverageTime() sim.VTimeInSec {
	if t.taskCount == 0 {
		return 0
	}

	return t.totalTime / sim.VTimeInSec(t.taskCount)
}

// MaxTime returns the longest duration of a finished task.
func (t *LatencyTracer) MaxTime() sim.VTimeInSec {
	return t.maxTime
}

// MaxInFlight returns the largest number of tasks that were running at the
// same time.
func (t *LatencyTracer) MaxInFlight() int {
	return t.maxInFlight
}

// InFlight returns the number of tasks that have started but not ended.
func (t *LatencyTracer) InFlight() int {
	return len(t.inflightTasks)
}

// StartTask records the task start time
func (t *LatencyTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	task.StartTime = t.timeTeller.CurrentTime()
	t.inflightTasks[task.ID] = task

	if len(t.inflightTasks) > t.maxInFlight {
		t.maxInFlight = len(t.inflightTasks)
	}
}

// StepTask does nothing
func (t *LatencyTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *LatencyTracer) EndTask(task Task) {
	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	taskTime := t.timeTeller.CurrentTime() - originalTask.StartTime
	t.totalTime += taskTime
	if taskTime > t.maxTime {
		t.maxTime = taskTime
	}

	t.taskCount++
	delete(t.inflightTasks, task.ID)
}
