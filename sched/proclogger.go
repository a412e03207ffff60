package sched

import (
	"log"

	"github.com/sarchlab/flashverif/sim"
)

// ProcLogger is a hook that prints when processes start and end.
type ProcLogger struct {
	sim.LogHookBase
}

// NewProcLogger creates a ProcLogger that writes into the logger.
func NewProcLogger(logger *log.Logger) *ProcLogger {
	h := new(ProcLogger)
	h.Logger = logger

	return h
}

// Func writes the process information into the logger.
func (h *ProcLogger) Func(ctx sim.HookCtx) {
	p, ok := ctx.Item.(*Proc)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosProcStart:
		h.Logger.Printf("%.10f, process %s started", p.Now(), p.Name())
	case HookPosProcEnd:
		if p.Err() != nil {
			h.Logger.Printf("%.10f, process %s failed: %v",
				p.Now(), p.Name(), p.Err())
			return
		}

		h.Logger.Printf("%.10f, process %s finished", p.Now(), p.Name())
	}
}
