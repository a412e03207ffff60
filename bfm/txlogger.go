package bfm

import (
	"log"

	"github.com/sarchlab/flashverif/sim"
	"github.com/sarchlab/flashverif/tracing"
)

// TransactionLogger is a hook that prints every bus transaction of a BFM.
type TransactionLogger struct {
	sim.LogHookBase

	timeTeller sim.TimeTeller
	inflight   map[string]*Command
}

// NewTransactionLogger creates a TransactionLogger that writes into the
// logger.
func NewTransactionLogger(
	logger *log.Logger,
	timeTeller sim.TimeTeller,
) *TransactionLogger {
	h := &TransactionLogger{
		timeTeller: timeTeller,
		inflight:   make(map[string]*Command),
	}
	h.Logger = logger

	return h
}

// Func writes the transaction into the logger once it ends.
func (h *TransactionLogger) Func(ctx sim.HookCtx) {
	task, ok := ctx.Item.(tracing.Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case tracing.HookPosTaskStart:
		if cmd, ok := task.Detail.(*Command); ok {
			h.inflight[task.ID] = cmd
		}
	case tracing.HookPosTaskEnd:
		cmd, ok := h.inflight[task.ID]
		if !ok {
			return
		}

		delete(h.inflight, task.ID)
		h.log(cmd)
	}
}

func (h *TransactionLogger) log(cmd *Command) {
	now := h.timeTeller.CurrentTime()

	switch {
	case cmd.err != nil:
		h.Logger.Printf("%.10f, %s failed: %v", now, cmd, cmd.err)
	case cmd.Op == OpRead:
		h.Logger.Printf("%.10f, %s -> 0x%02x", now, cmd, cmd.Result)
	default:
		h.Logger.Printf("%.10f, %s", now, cmd)
	}
}
