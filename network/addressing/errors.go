package addressing

import (
	"errors"
	"fmt"

	"github.com/sarchlab/netsim/network/topology"
)

var (
	// ErrAddressExhausted is matched by AddressExhaustedError.
	ErrAddressExhausted = errors.New("addressing: address range exhausted")

	// ErrDuplicateAssignment is matched by DuplicateAssignmentError.
	ErrDuplicateAssignment = errors.New("addressing: medium already has a subnet")

	// ErrInvalidMask is returned for masks whose one bits are not contiguous.
	ErrInvalidMask = errors.New("addressing: invalid network mask")

	// ErrNotIPv4 is returned when the base or the mask is not an IPv4 address.
	ErrNotIPv4 = errors.New("addressing: only IPv4 is supported")

	// ErrAddressInUse is returned when an address was already handed out by
	// another subnet.
	ErrAddressInUse = errors.New("addressing: address already in use")
)

// AddressExhaustedError reports a subnet too small for the medium.
type AddressExhaustedError struct {
	Medium    topology.MediumID
	Need      int
	Available int
}

func (e *AddressExhaustedError) Error() string {
	return fmt.Sprintf(
		"addressing: %s needs %d addresses, only %d available",
		e.Medium, e.Need, e.Available)
}

// Is makes errors.Is(err, ErrAddressExhausted) hold.
func (e *AddressExhaustedError) Is(target error) bool {
	return target == ErrAddressExhausted
}

// DuplicateAssignmentError reports a second subnet on the same medium.
type DuplicateAssignmentError struct {
	Medium   topology.MediumID
	Existing *Subnet
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf(
		"addressing: %s is already addressed by %s",
		e.Medium, e.Existing.Prefix)
}

// Is makes errors.Is(err, ErrDuplicateAssignment) hold.
func (e *DuplicateAssignmentError) Is(target error) bool {
	return target == ErrDuplicateAssignment
}
