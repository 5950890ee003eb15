package medium

import (
	"fmt"

	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

// PointToPoint delivers to the other end of a link after the propagation
// delay.
type PointToPoint struct {
	base

	link *topology.Link
}

// NewPointToPoint creates the model of a link.
func NewPointToPoint(
	link *topology.Link,
	engine timing.EventScheduler,
	receivers Receivers,
) *PointToPoint {
	return &PointToPoint{
		base: base{engine: engine, receivers: receivers},
		link: link,
	}
}

// ID returns the link id.
func (p *PointToPoint) ID() topology.MediumID {
	return p.link.ID()
}

// Send schedules the message on the peer of src.
func (p *PointToPoint) Send(msg *packet.Message, src topology.NodeID) error {
	if err := p.checkMTU(p.link.ID(), p.link.MTU(), msg); err != nil {
		return err
	}

	peer, ok := p.link.Peer(src)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrNotAttached, src, p.link.ID())
	}

	spec := p.link.Spec()
	arrival := p.engine.Now() + spec.Delay
	if spec.SerializationDelay && spec.DataRate > 0 {
		arrival += float64(msg.Size*8) / spec.DataRate
	}

	return p.deliver(p.link.ID(), msg, src, peer, arrival)
}
