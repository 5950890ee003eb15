// Package timing holds the event clock of a simulation: events, the event
// queue and the engine that dispatches events in time order.
package timing

import (
	"fmt"
	"math"
	"reflect"

	"github.com/sarchlab/netsim/sim/hooking"
)

// VTimeInSec defines the time in the simulated space in the unit of second
type VTimeInSec = float64

// Forever is a stop time that never stops the engine before the queue drains.
const Forever = VTimeInSec(math.MaxFloat64)

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTimeInSec

	// Returns the handler that can should handle the event
	Handler() Handler
}

// A Describer can explain itself in the event timeline.
type Describer interface {
	Describe() string
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	time    VTimeInSec
	handler Handler
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTimeInSec, handler Handler) EventBase {
	return EventBase{time: t, handler: handler}
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTimeInSec {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// A Handler defines a domain for the events.
//
// One event is always constraint to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}

type named interface {
	Name() string
}

// DescribeEvent returns a short human readable description of an event. Events
// implementing Describer describe themselves; other events are described by
// their type and the name of their handler.
func DescribeEvent(evt Event) string {
	if d, ok := evt.(Describer); ok {
		return d.Describe()
	}

	desc := reflect.TypeOf(evt).String()

	if h, ok := evt.Handler().(named); ok {
		desc = fmt.Sprintf("%s -> %s", desc, h.Name())
	}

	return desc
}
