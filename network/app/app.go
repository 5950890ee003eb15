// Package app provides the applications that generate traffic: an echo
// server and an echo client.
package app

import (
	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

// timeEpsilon absorbs the rounding of Start + n*Interval.
const timeEpsilon = 1e-9

// Host is what an application sees of the node it runs on.
type Host interface {
	Node() *topology.Node
	Engine() timing.EventScheduler
	NextMessageID() uint64
	Bind(port uint16, r netstack.Receiver) error
	BindEphemeral(r netstack.Receiver) (uint16, error)
	Unbind(port uint16)
	Send(msg *packet.Message) error
}

// An Application runs on one node.
type Application interface {
	timing.Handler

	Name() string

	// Install binds the application to its host and schedules its first
	// events.
	Install(h Host) error
}

// StopEvent ends an application's active window.
type StopEvent struct {
	timing.EventBase
}

// Describe implements timing.Describer.
func (e *StopEvent) Describe() string {
	return "stop " + e.Handler().(Application).Name()
}
