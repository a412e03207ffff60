package tracing

// StepCountTracer counts how many times each kind of step happens, and how
// many tasks go through each kind of step.
type StepCountTracer struct {
	filter            TaskFilter
	inflightTasks     map[string]Task
	stepNames         []string
	stepCount         map[string]uint64
	taskWithStepCount map[string]uint64
}

// NewStepCountTracer creates a new StepCountTracer. A nil filter accepts
// every task.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	t := &StepCountTracer{
		filter:            filter,
		inflightTasks:     make(map[string]Task),
		stepCount:         make(map[string]uint64),
		taskWithStepCount: make(map[string]uint64),
	}

	return t
}

// GetStepNames returns all the step names collected.
func (t *StepCountTracer) GetStepNames() []string {
	return t.stepNames
}

// GetStepCount returns the number of steps that is recorded with a certain step
// name.
func (t *StepCountTracer) GetStepCount(stepName string) uint64 {
	return t.stepCount[stepName]
}

// GetTaskCount returns the number of tasks that is recorded to have a certain
// step with a given name.
func (t *StepCountTracer) GetTaskCount(stepName string) uint64 {
	return t.taskWithStepCount[stepName]
}

// StartTask records the task start time
func (t *StepCountTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.inflightTasks[task.ID] = task
}

// StepTask counts the step.
func (t *StepCountTracer) StepTask(task Task) {
	originalTask, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		if _, seen := t.stepCount[step.What]; !seen {
			t.stepNames = append(t.stepNames, step.What)
		}
		t.stepCount[step.What]++

		if !taskContainsStep(originalTask, step) {
			t.taskWithStepCount[step.What]++
		}

		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.inflightTasks[task.ID] = originalTask
}

func taskContainsStep(task Task, step TaskStep) bool {
	for _, s := range task.Steps {
		if s.What == step.What {
			return true
		}
	}

	return false
}

// EndTask forgets the task.
func (t *StepCountTracer) EndTask(task Task) {
	delete(t.inflightTasks, task.ID)
}
