package netstack

import "errors"

var (
	// ErrPortInUse is returned when binding a port that is taken.
	ErrPortInUse = errors.New("netstack: port already bound")

	// ErrPortsExhausted is returned when no ephemeral port is left.
	ErrPortsExhausted = errors.New("netstack: no ephemeral port left")

	// ErrUnknownMedium is returned when a route names a medium without a
	// model.
	ErrUnknownMedium = errors.New("netstack: no model for medium")
)
