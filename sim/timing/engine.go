package timing

import "github.com/sarchlab/netsim/sim/hooking"

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	// Schedule inserts an event. It fails with an InvalidTimeError if the
	// event time is earlier than Now.
	Schedule(e Event) (*ScheduledEvent, error)
}

// A SimulationEndHandler is a handler that is called after the simulation ends.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// EngineState is the lifecycle state of an engine.
type EngineState int

// An engine starts Idle, is Running inside Run and ends Stopped.
const (
	Idle EngineState = iota
	Running
	Stopped
)

func (s EngineState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// An Engine is a unit that keeps the discrete event simulation run.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// Run dispatches events until the queue is empty or the next event is
	// later than stopTime.
	Run(stopTime VTimeInSec) error

	// Stop asks a running engine to return after the current event.
	Stop()

	// State returns the lifecycle state.
	State() EngineState

	// Pause will pause the simulation until continue is called.
	Pause()

	// Continue will continue the paused simulation
	Continue()

	// RegisterSimulationEndHandler registers a handler that perform some
	// actions after the simulation is finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)
}
