// Package addressing hands out IPv4 addresses to the interfaces of links and
// channels, one subnet per medium.
package addressing

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"net/netip"

	"github.com/sarchlab/netsim/network/topology"
)

// Binding ties an address to the interface that holds it.
type Binding struct {
	Addr   netip.Addr
	Node   topology.NodeID
	Medium topology.MediumID
}

// Subnet is the address block given to one medium.
type Subnet struct {
	Prefix   netip.Prefix
	Bindings []Binding
}

// Broadcast returns the all-ones host address of the subnet.
func (s *Subnet) Broadcast() netip.Addr {
	network := toUint32(s.Prefix.Addr())
	hostBits := 32 - s.Prefix.Bits()

	return fromUint32(network | (1<<hostBits - 1))
}

// AddressOf returns the address of node n in this subnet.
func (s *Subnet) AddressOf(n topology.NodeID) (netip.Addr, bool) {
	for _, b := range s.Bindings {
		if b.Node == n {
			return b.Addr, true
		}
	}

	return netip.Addr{}, false
}

// Allocator keeps track of every subnet of one simulation.
type Allocator struct {
	graph   *topology.Graph
	subnets map[topology.MediumID]*Subnet
	inUse   map[netip.Addr]Binding
}

// NewAllocator creates an allocator for the nodes of g.
func NewAllocator(g *topology.Graph) *Allocator {
	return &Allocator{
		graph:   g,
		subnets: make(map[topology.MediumID]*Subnet),
		inUse:   make(map[netip.Addr]Binding),
	}
}

// AssignSubnet gives every interface of the medium the next address of the
// range, in endpoint order. When base is the network address itself, the
// first host gets network+1. The broadcast address is never assigned.
func (a *Allocator) AssignSubnet(
	m topology.Medium,
	base, mask netip.Addr,
) (*Subnet, error) {
	if existing, ok := a.subnets[m.ID()]; ok {
		return nil, &DuplicateAssignmentError{Medium: m.ID(), Existing: existing}
	}

	prefix, err := prefixOf(base, mask)
	if err != nil {
		return nil, err
	}

	first := toUint32(base)
	network := toUint32(prefix.Addr())
	if first == network {
		first++
	}

	broadcast := network | (1<<(32-prefix.Bits()) - 1)
	ends := m.Endpoints()

	available := 0
	if broadcast > first {
		available = int(broadcast - first)
	}

	if len(ends) > available {
		return nil, &AddressExhaustedError{
			Medium:    m.ID(),
			Need:      len(ends),
			Available: available,
		}
	}

	subnet := &Subnet{Prefix: prefix}
	for i, end := range ends {
		addr := fromUint32(first + uint32(i))
		if owner, taken := a.inUse[addr]; taken {
			return nil, fmt.Errorf("%w: %s held by %s on %s",
				ErrAddressInUse, addr, owner.Node, owner.Medium)
		}

		subnet.Bindings = append(subnet.Bindings,
			Binding{Addr: addr, Node: end.Node, Medium: m.ID()})
	}

	if err := a.bind(subnet); err != nil {
		return nil, err
	}

	return subnet, nil
}

func (a *Allocator) bind(subnet *Subnet) error {
	for _, b := range subnet.Bindings {
		n, err := a.graph.Node(b.Node)
		if err != nil {
			return err
		}

		n.SetAddress(b.Medium, b.Addr)
		a.inUse[b.Addr] = b
	}

	a.subnets[subnet.Bindings[0].Medium] = subnet

	return nil
}

// Subnet returns the subnet assigned to a medium.
func (a *Allocator) Subnet(m topology.MediumID) (*Subnet, bool) {
	s, ok := a.subnets[m]
	return s, ok
}

// Lookup finds the interface holding addr.
func (a *Allocator) Lookup(addr netip.Addr) (Binding, bool) {
	b, ok := a.inUse[addr]
	return b, ok
}

func prefixOf(base, mask netip.Addr) (netip.Prefix, error) {
	if !base.Is4() || !mask.Is4() {
		return netip.Prefix{}, ErrNotIPv4
	}

	m := toUint32(mask)
	ones := bits.LeadingZeros32(^m)
	if bits.TrailingZeros32(m) != 32-ones {
		return netip.Prefix{}, fmt.Errorf("%w: %s", ErrInvalidMask, mask)
	}

	if ones >= 31 {
		return netip.Prefix{}, fmt.Errorf(
			"%w: /%d leaves no host addresses", ErrInvalidMask, ones)
	}

	return netip.PrefixFrom(base, ones).Masked(), nil
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return netip.AddrFrom4(b)
}
