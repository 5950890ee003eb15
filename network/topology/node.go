// Package topology describes what is connected to what: nodes, the
// point-to-point links between them and the shared channels they join.
package topology

import (
	"fmt"
	"net/netip"
	"sync"
)

// NodeID identifies a node within one graph. IDs are dense and allocated in
// creation order starting at 0.
type NodeID int

// String returns the id as "node<n>".
func (id NodeID) String() string {
	return fmt.Sprintf("node%d", int(id))
}

// Position is a point on the simulation plane, in meters.
type Position struct {
	X, Y float64
}

// Interface is the attachment point of a node on a link or channel.
type Interface struct {
	Node   NodeID
	Medium MediumID
	Index  int

	// Addr is the zero Addr until a subnet is assigned to the medium.
	Addr netip.Addr
}

// Node is a host, router or access point.
type Node struct {
	id   NodeID
	name string

	lock       sync.RWMutex
	position   Position
	interfaces []*Interface
	removed    bool
}

// ID returns the node id.
func (n *Node) ID() NodeID {
	return n.id
}

// Name returns the name given at creation.
func (n *Node) Name() string {
	return n.name
}

// Position returns the current position.
func (n *Node) Position() Position {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.position
}

// SetPosition moves the node.
func (n *Node) SetPosition(p Position) {
	n.lock.Lock()
	n.position = p
	n.lock.Unlock()
}

// Interfaces returns the node's attachments in attach order.
func (n *Node) Interfaces() []*Interface {
	n.lock.RLock()
	defer n.lock.RUnlock()

	ifaces := make([]*Interface, len(n.interfaces))
	copy(ifaces, n.interfaces)

	return ifaces
}

// InterfaceOn returns the node's interface on the given medium.
func (n *Node) InterfaceOn(m MediumID) (*Interface, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()

	for _, iface := range n.interfaces {
		if iface.Medium == m {
			return iface, true
		}
	}

	return nil, false
}

// Addresses lists the addresses assigned to the node.
func (n *Node) Addresses() []netip.Addr {
	n.lock.RLock()
	defer n.lock.RUnlock()

	var addrs []netip.Addr
	for _, iface := range n.interfaces {
		if iface.Addr.IsValid() {
			addrs = append(addrs, iface.Addr)
		}
	}

	return addrs
}

// Removed tells if the node was torn down.
func (n *Node) Removed() bool {
	n.lock.RLock()
	defer n.lock.RUnlock()

	return n.removed
}

func (n *Node) attach(m MediumID) *Interface {
	n.lock.Lock()
	defer n.lock.Unlock()

	iface := &Interface{Node: n.id, Medium: m, Index: len(n.interfaces)}
	n.interfaces = append(n.interfaces, iface)

	return iface
}

// SetAddress binds addr to the node's interface on medium m.
func (n *Node) SetAddress(m MediumID, addr netip.Addr) bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	for _, iface := range n.interfaces {
		if iface.Medium == m {
			iface.Addr = addr
			return true
		}
	}

	return false
}
