package tracing

import (
	"sort"

	"github.com/sarchlab/flashverif/sim"
)

type interval struct {
	start, end sim.VTimeInSec
}

// BusyTimeTracer measures how long a domain has at least one task in flight.
// Overlapping tasks count once, so the result of a bus with one transaction
// in flight at a time equals the sum of the transaction latencies.
type BusyTimeTracer struct {
	timeTeller    sim.TimeTeller
	filter        TaskFilter
	inflightTasks map[string]sim.VTimeInSec
	finished      []interval
	busyTime      sim.VTimeInSec
}

// NewBusyTimeTracer creates a new BusyTimeTracer. A nil filter accepts every
// task.
func NewBusyTimeTracer(
	timeTeller sim.TimeTeller,
	filter TaskFilter,
) *BusyTimeTracer {
	return &BusyTimeTracer{
		timeTeller:    timeTeller,
		filter:        filter,
		inflightTasks: make(map[string]sim.VTimeInSec),
	}
}

// BusyTime returns the time covered by the finished tasks.
func (t *BusyTimeTracer) BusyTime() sim.VTimeInSec {
	t.collapse(t.earliestInflightStart())
	return t.busyTime
}

// TerminateAllTasks ends every task that is still in flight at now.
func (t *BusyTimeTracer) TerminateAllTasks(now sim.VTimeInSec) {
	for id, start := range t.inflightTasks {
		t.finished = append(t.finished, interval{start: start, end: now})
		delete(t.inflightTasks, id)
	}
}

// StartTask records the task start time
func (t *BusyTimeTracer) StartTask(task Task) {
	if t.filter != nil && !t.filter(task) {
		return
	}

	t.inflightTasks[task.ID] = t.timeTeller.CurrentTime()
}

// StepTask does nothing
func (t *BusyTimeTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask records the end of the task
func (t *BusyTimeTracer) EndTask(task Task) {
	start, ok := t.inflightTasks[task.ID]
	if !ok {
		return
	}

	delete(t.inflightTasks, task.ID)
	t.finished = append(t.finished, interval{
		start: start,
		end:   t.timeTeller.CurrentTime(),
	})
}

func (t *BusyTimeTracer) earliestInflightStart() (sim.VTimeInSec, bool) {
	found := false
	earliest := sim.VTimeInSec(0)

	for _, start := range t.inflightTasks {
		if !found || start < earliest {
			earliest = start
			found = true
		}
	}

	return earliest, found
}

// collapse adds the merged finished intervals to the busy time. Merged
// intervals that may still overlap a task in flight are kept for later.
func (t *BusyTimeTracer) collapse(limit sim.VTimeInSec, bounded bool) {
	if len(t.finished) == 0 {
		return
	}

	sort.Slice(t.finished, func(i, j int) bool {
		return t.finished[i].start < t.finished[j].start
	})

	merged := []interval{}
	for _, iv := range t.finished {
		n := len(merged)
		if n > 0 && iv.start <= merged[n-1].end {
			if iv.end > merged[n-1].end {
				merged[n-1].end = iv.end
			}

			continue
		}

		merged = append(merged, iv)
	}

	var kept []interval

	for _, iv := range merged {
		if bounded && iv.end >= limit {
			kept = append(kept, iv)
			continue
		}

		t.busyTime += iv.end - iv.start
	}

	t.finished = kept
}
