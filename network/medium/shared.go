package medium

import (
	"fmt"
	"math"

	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

// A ContentionPolicy decides when a frame put on a shared channel reaches
// the other members. Collision and backoff models plug in here.
type ContentionPolicy interface {
	Arrival(now timing.VTimeInSec, msg *packet.Message) timing.VTimeInSec
}

// FixedDelayBroadcast delivers every frame to every other member after a
// constant delay.
type FixedDelayBroadcast struct {
	Delay timing.VTimeInSec
}

// Arrival returns now + Delay.
func (p FixedDelayBroadcast) Arrival(
	now timing.VTimeInSec,
	_ *packet.Message,
) timing.VTimeInSec {
	return now + p.Delay
}

// SerializedBroadcast lets one frame occupy the channel at a time. A frame
// sent while the channel is busy waits until the previous one is fully
// transmitted. There are no collisions.
type SerializedBroadcast struct {
	Delay    timing.VTimeInSec
	DataRate float64

	busyUntil timing.VTimeInSec
}

// Arrival returns the end of the frame's transmission plus Delay.
func (p *SerializedBroadcast) Arrival(
	now timing.VTimeInSec,
	msg *packet.Message,
) timing.VTimeInSec {
	start := math.Max(now, p.busyUntil)

	txTime := 0.0
	if p.DataRate > 0 {
		txTime = float64(msg.Size*8) / p.DataRate
	}

	p.busyUntil = start + txTime

	return p.busyUntil + p.Delay
}

// Shared broadcasts every frame to all other members of a channel. Members
// that are not the frame's NextHop are expected to discard it.
type Shared struct {
	base

	channel *topology.Channel
	policy  ContentionPolicy
}

// NewShared creates the model of a channel.
func NewShared(
	channel *topology.Channel,
	policy ContentionPolicy,
	engine timing.EventScheduler,
	receivers Receivers,
) *Shared {
	return &Shared{
		base:    base{engine: engine, receivers: receivers},
		channel: channel,
		policy:  policy,
	}
}

// ID returns the channel id.
func (s *Shared) ID() topology.MediumID {
	return s.channel.ID()
}

// Policy returns the contention policy in use.
func (s *Shared) Policy() ContentionPolicy {
	return s.policy
}

// Send gives each other member its own copy of msg.
func (s *Shared) Send(msg *packet.Message, src topology.NodeID) error {
	if err := s.checkMTU(s.channel.ID(), s.channel.MTU(), msg); err != nil {
		return err
	}

	members := s.channel.Members()
	if !contains(members, src) {
		return fmt.Errorf("%w: %s on %s", ErrNotAttached, src, s.channel.ID())
	}

	arrival := s.policy.Arrival(s.engine.Now(), msg)
	for _, m := range members {
		if m == src {
			continue
		}

		if err := s.deliver(s.channel.ID(), msg.Clone(), src, m, arrival); err != nil {
			return err
		}
	}

	return nil
}

func contains(ids []topology.NodeID, id topology.NodeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}

	return false
}
