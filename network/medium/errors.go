package medium

import (
	"errors"
	"fmt"

	"github.com/sarchlab/netsim/network/topology"
)

var (
	// ErrFragmentationRequired is matched by FragmentationRequiredError.
	ErrFragmentationRequired = errors.New("medium: message exceeds MTU")

	// ErrNotAttached is returned when the sender is not on the medium.
	ErrNotAttached = errors.New("medium: sender is not attached")
)

// FragmentationRequiredError reports a message larger than the medium MTU.
// Callers must segment messages themselves.
type FragmentationRequiredError struct {
	Medium topology.MediumID
	Size   int
	MTU    int
}

func (e *FragmentationRequiredError) Error() string {
	return fmt.Sprintf("medium: %d bytes do not fit the %d byte MTU of %s",
		e.Size, e.MTU, e.Medium)
}

// Is makes errors.Is(err, ErrFragmentationRequired) hold.
func (e *FragmentationRequiredError) Is(target error) bool {
	return target == ErrFragmentationRequired
}
