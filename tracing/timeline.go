// Package tracing turns hook invocations into trace records: the event
// timeline, node positions and message activity.
package tracing

import (
	"github.com/sarchlab/netsim/network/mobility"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
)

// EventRecord describes one dispatched event.
type EventRecord struct {
	ID   uint64
	Time timing.VTimeInSec
	What string
}

// EventTimelineTracer reports every event an engine dispatches. Register it
// on the engine.
type EventTimelineTracer struct {
	callback func(EventRecord)
}

// NewEventTimelineTracer creates a tracer that calls callback once per
// dispatched event, in dispatch order.
func NewEventTimelineTracer(callback func(EventRecord)) *EventTimelineTracer {
	return &EventTimelineTracer{callback: callback}
}

// Func implements hooking.Hook.
func (t *EventTimelineTracer) Func(ctx hooking.HookCtx) {
	if rec, ok := eventRecordOf(ctx); ok {
		t.callback(rec)
	}
}

func eventRecordOf(ctx hooking.HookCtx) (EventRecord, bool) {
	if ctx.Pos != timing.HookPosBeforeEvent {
		return EventRecord{}, false
	}

	evt, ok := ctx.Item.(*timing.ScheduledEvent)
	if !ok {
		return EventRecord{}, false
	}

	return EventRecord{
		ID:   evt.ID,
		Time: evt.Time(),
		What: timing.DescribeEvent(evt.Event),
	}, true
}

// PositionTracer reports every placement and move. Register it on the
// mobility engine.
type PositionTracer struct {
	callback func(mobility.PositionUpdate)
}

// NewPositionTracer creates a tracer that calls callback on every position
// update.
func NewPositionTracer(callback func(mobility.PositionUpdate)) *PositionTracer {
	return &PositionTracer{callback: callback}
}

// Func implements hooking.Hook.
func (t *PositionTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != mobility.HookPosPositionUpdate {
		return
	}

	if u, ok := ctx.Item.(mobility.PositionUpdate); ok {
		t.callback(u)
	}
}
