package topology

import "fmt"

// MediumKind tells a point-to-point link from a shared channel.
type MediumKind int

// The two kinds of media.
const (
	PointToPoint MediumKind = iota
	SharedChannel
)

func (k MediumKind) String() string {
	if k == SharedChannel {
		return "channel"
	}

	return "link"
}

// MediumID identifies a link or a channel within one graph.
type MediumID int

// String returns the id as "medium<n>".
func (id MediumID) String() string {
	return fmt.Sprintf("medium%d", int(id))
}

// Medium is what links and channels have in common: an ordered list of
// attached interfaces.
type Medium interface {
	ID() MediumID
	Kind() MediumKind
	MTU() int

	// Endpoints returns the attached interfaces in the order the caller
	// listed the nodes.
	Endpoints() []*Interface
}

// DefaultMTU is used when a spec leaves the MTU unset.
const DefaultMTU = 1500

// LinkSpec configures a point-to-point link.
type LinkSpec struct {
	// Delay is the propagation delay in seconds.
	Delay float64

	// DataRate is in bits per second.
	DataRate float64

	// MTU in bytes. Zero means DefaultMTU.
	MTU int

	// SerializationDelay adds Size*8/DataRate to the propagation delay.
	SerializationDelay bool
}

// Link connects exactly two nodes.
type Link struct {
	id   MediumID
	spec LinkSpec
	ends [2]*Interface
}

// ID returns the medium id.
func (l *Link) ID() MediumID { return l.id }

// Kind returns PointToPoint.
func (l *Link) Kind() MediumKind { return PointToPoint }

// MTU returns the maximum transmission unit in bytes.
func (l *Link) MTU() int { return l.spec.MTU }

// Spec returns the link configuration.
func (l *Link) Spec() LinkSpec { return l.spec }

// Endpoints returns both ends, in AddLink argument order.
func (l *Link) Endpoints() []*Interface {
	return []*Interface{l.ends[0], l.ends[1]}
}

// Peer returns the end opposite to n.
func (l *Link) Peer(n NodeID) (NodeID, bool) {
	switch n {
	case l.ends[0].Node:
		return l.ends[1].Node, true
	case l.ends[1].Node:
		return l.ends[0].Node, true
	}

	return 0, false
}

// ChannelSpec configures a shared channel.
type ChannelSpec struct {
	// MTU in bytes. Zero means DefaultMTU.
	MTU int
}

// Channel is a shared medium such as a wireless network.
type Channel struct {
	id          MediumID
	spec        ChannelSpec
	members     []*Interface
	coordinator *NodeID
}

// ID returns the medium id.
func (c *Channel) ID() MediumID { return c.id }

// Kind returns SharedChannel.
func (c *Channel) Kind() MediumKind { return SharedChannel }

// MTU returns the maximum transmission unit in bytes.
func (c *Channel) MTU() int { return c.spec.MTU }

// Endpoints returns the member interfaces in AddChannel order.
func (c *Channel) Endpoints() []*Interface {
	ends := make([]*Interface, len(c.members))
	copy(ends, c.members)

	return ends
}

// Members returns the member node ids in AddChannel order.
func (c *Channel) Members() []NodeID {
	ids := make([]NodeID, 0, len(c.members))
	for _, m := range c.members {
		ids = append(ids, m.Node)
	}

	return ids
}

// Coordinator returns the node acting as access point, if any.
func (c *Channel) Coordinator() (NodeID, bool) {
	if c.coordinator == nil {
		return 0, false
	}

	return *c.coordinator, true
}

func (c *Channel) hasMember(n NodeID) bool {
	for _, m := range c.members {
		if m.Node == n {
			return true
		}
	}

	return false
}
