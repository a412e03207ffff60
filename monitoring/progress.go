package monitoring

import (
	"time"

	"github.com/sarchlab/flashverif/scenario"
)

// A ProgressBar is a snapshot of the progress of a regression.
type ProgressBar struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
	Failed     uint64    `json:"failed"`
}

func barOf(p scenario.Progress, start time.Time) ProgressBar {
	bar := ProgressBar{
		ID:        "regression",
		Name:      "Regression",
		StartTime: start,
		Total:     uint64(p.Total),
		Finished:  uint64(p.Done),
		Failed:    uint64(p.Failed),
	}

	if p.Current != "" {
		bar.Name = p.Current
		bar.InProgress = 1
	}

	return bar
}
