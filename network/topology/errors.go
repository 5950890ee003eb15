package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrSelfLoop is matched by SelfLoopError.
	ErrSelfLoop = errors.New("topology: link endpoints must differ")

	// ErrUnknownNode is matched by UnknownNodeError.
	ErrUnknownNode = errors.New("topology: unknown node")

	// ErrUnknownMedium is returned for ids that name no link or channel.
	ErrUnknownMedium = errors.New("topology: unknown link or channel")

	// ErrEmptyChannel is returned when a channel is created without members.
	ErrEmptyChannel = errors.New("topology: channel needs at least one member")

	// ErrNotMember is returned when a coordinator is not a channel member.
	ErrNotMember = errors.New("topology: node is not a member of the channel")

	// ErrDuplicateMember is returned when a node is listed twice in a channel.
	ErrDuplicateMember = errors.New("topology: node listed twice in channel")
)

// SelfLoopError reports a link from a node to itself.
type SelfLoopError struct {
	Node NodeID
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("topology: cannot link %s to itself", e.Node)
}

// Is makes errors.Is(err, ErrSelfLoop) hold.
func (e *SelfLoopError) Is(target error) bool {
	return target == ErrSelfLoop
}

// UnknownNodeError reports a node id that is not in the graph.
type UnknownNodeError struct {
	Node NodeID
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("topology: unknown node %s", e.Node)
}

// Is makes errors.Is(err, ErrUnknownNode) hold.
func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode
}
