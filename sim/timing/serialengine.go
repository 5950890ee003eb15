package timing

import (
	"log/slog"
	"sync"

	"github.com/sarchlab/netsim/sim/hooking"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	hooking.HookableBase

	logger *slog.Logger

	timeLock sync.RWMutex
	time     VTimeInSec
	queue    EventQueue

	stateLock     sync.Mutex
	state         EngineState
	stopRequested bool
	dispatched    uint64

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	simulationEndHandlers []SimulationEndHandler
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)

	e.queue = NewEventQueue()
	e.logger = slog.Default()

	return e
}

// WithLogger sets the logger that receives handler errors.
func (e *SerialEngine) WithLogger(logger *slog.Logger) *SerialEngine {
	e.logger = logger
	return e
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) (*ScheduledEvent, error) {
	now := e.readNow()
	if evt.Time() < now {
		return nil, &InvalidTimeError{EventTime: evt.Time(), Now: now}
	}

	return e.queue.Push(evt), nil
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes the scheduled events whose time is not later than stopTime.
func (e *SerialEngine) Run(stopTime VTimeInSec) error {
	if err := e.enterRunning(); err != nil {
		return err
	}

	for !e.isStopRequested() {
		next := e.queue.Peek()
		if next == nil {
			break
		}

		if next.Cancelled() {
			_, _ = e.queue.Pop()
			continue
		}

		if next.Time() > stopTime {
			break
		}

		e.dispatch()
	}

	e.enterStopped()

	return nil
}

func (e *SerialEngine) enterRunning() error {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	switch e.state {
	case Running:
		return ErrAlreadyRunning
	case Stopped:
		return &AlreadyStoppedError{StoppedAt: e.readNow()}
	}

	e.state = Running

	return nil
}

func (e *SerialEngine) enterStopped() {
	e.stateLock.Lock()
	e.state = Stopped
	e.stateLock.Unlock()

	now := e.readNow()
	for _, h := range e.simulationEndHandlers {
		h.Handle(now)
	}
}

func (e *SerialEngine) dispatch() {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	evt, err := e.queue.Pop()
	if err != nil {
		return
	}

	e.writeNow(evt.Time())

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	handler := evt.Event.Handler()
	if handler != nil {
		if err := handler.Handle(evt.Event); err != nil {
			e.logger.Warn("event handler failed",
				"event", DescribeEvent(evt.Event),
				"time", evt.Time(),
				"err", err)
		}
	}

	e.stateLock.Lock()
	e.dispatched++
	e.stateLock.Unlock()

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)
}

func (e *SerialEngine) isStopRequested() bool {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	return e.stopRequested
}

// Stop makes Run return once the event being handled completes.
func (e *SerialEngine) Stop() {
	e.stateLock.Lock()
	e.stopRequested = true
	e.stateLock.Unlock()
}

// State returns the lifecycle state of the engine.
func (e *SerialEngine) State() EngineState {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	return e.state
}

// Dispatched returns the number of events handled so far.
func (e *SerialEngine) Dispatched() uint64 {
	e.stateLock.Lock()
	defer e.stateLock.Unlock()

	return e.dispatched
}

// Pending returns the number of queued events, cancelled ones included.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Now returns the current time at which the engine is at.
// Specifically, the run time of the current event.
func (e *SerialEngine) Now() VTimeInSec {
	return e.readNow()
}

// RegisterSimulationEndHandler registers a handler to be called when Run
// returns.
func (e *SerialEngine) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	e.simulationEndHandlers = append(e.simulationEndHandlers, handler)
}
