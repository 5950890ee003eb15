package timing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTime is matched by InvalidTimeError.
	ErrInvalidTime = errors.New("timing: event time is earlier than now")

	// ErrAlreadyStopped is matched by AlreadyStoppedError.
	ErrAlreadyStopped = errors.New("timing: engine already stopped")

	// ErrAlreadyRunning is returned when Run is called from inside a handler.
	ErrAlreadyRunning = errors.New("timing: engine already running")

	// ErrQueueEmpty is returned by Pop when no event is pending.
	ErrQueueEmpty = errors.New("timing: event queue is empty")
)

// InvalidTimeError reports an attempt to schedule an event in the past.
type InvalidTimeError struct {
	EventTime VTimeInSec
	Now       VTimeInSec
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf(
		"timing: cannot schedule event @ %.10f, now %.10f",
		e.EventTime, e.Now,
	)
}

// Is makes errors.Is(err, ErrInvalidTime) hold.
func (e *InvalidTimeError) Is(target error) bool {
	return target == ErrInvalidTime
}

// AlreadyStoppedError reports a Run call on an engine that has finished.
type AlreadyStoppedError struct {
	StoppedAt VTimeInSec
}

func (e *AlreadyStoppedError) Error() string {
	return fmt.Sprintf("timing: engine already stopped @ %.10f", e.StoppedAt)
}

// Is makes errors.Is(err, ErrAlreadyStopped) hold.
func (e *AlreadyStoppedError) Is(target error) bool {
	return target == ErrAlreadyStopped
}
