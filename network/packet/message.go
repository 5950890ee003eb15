// Package packet defines the message that travels between nodes.
package packet

import (
	"fmt"

	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

// DefaultTTL is the hop budget of a freshly sent message.
const DefaultTTL = 64

// Message is a datagram. It is owned by exactly one party at a time: the
// sending application, a medium in flight, or the receiving stack.
type Message struct {
	ID      uint64
	Src     topology.NodeID
	Dst     topology.NodeID
	SrcPort uint16
	DstPort uint16

	// Size is the length on the wire in bytes.
	Size    int
	Payload []byte

	// NextHop is the link-layer receiver. Other members of a shared channel
	// discard the frame.
	NextHop topology.NodeID
	TTL     int
	Hops    int

	SendTime timing.VTimeInSec
	RecvTime timing.VTimeInSec
}

// Meta returns a one-line description used in logs and traces.
func (m *Message) Meta() string {
	return fmt.Sprintf("msg %d %s:%d -> %s:%d (%d B)",
		m.ID, m.Src, m.SrcPort, m.Dst, m.DstPort, m.Size)
}

// Reply builds the response to m, swapping the endpoints.
func (m *Message) Reply(id uint64, size int) *Message {
	return &Message{
		ID:      id,
		Src:     m.Dst,
		Dst:     m.Src,
		SrcPort: m.DstPort,
		DstPort: m.SrcPort,
		Size:    size,
		TTL:     DefaultTTL,
	}
}

// Clone copies m so a broadcast can hand each receiver its own message.
func (m *Message) Clone() *Message {
	c := *m
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}

	return &c
}
