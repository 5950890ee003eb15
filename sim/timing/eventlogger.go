package timing

import (
	"context"
	"log/slog"

	"github.com/sarchlab/netsim/sim/hooking"
)

// EventLogger is an hook that prints the event information
type EventLogger struct {
	logger *slog.Logger
	level  slog.Level
}

// NewEventLogger returns an EventLogger that writes one record per
// dispatched event at the given level.
func NewEventLogger(logger *slog.Logger, level slog.Level) *EventLogger {
	h := new(EventLogger)

	h.logger = logger
	h.level = level

	return h
}

// Func writes the event information into the logger
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(*ScheduledEvent)
	if !ok {
		return
	}

	h.logger.Log(context.Background(), h.level, "event",
		"id", evt.ID,
		"time", evt.Time(),
		"what", DescribeEvent(evt.Event))
}
