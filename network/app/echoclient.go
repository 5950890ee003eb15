package app

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

// ErrStartInPast is returned when a client is installed after its start
// time.
var ErrStartInPast = errors.New("app: start time already passed")

// ErrInvalidInterval is returned when a client that sends more than one
// message has no positive interval between them.
var ErrInvalidInterval = errors.New("app: interval must be positive")

// seqLen is the size of the sequence number carried in the payload.
const seqLen = 8

// SendEvent triggers one transmission of an echo client.
type SendEvent struct {
	timing.EventBase

	Seq int
}

// Describe implements timing.Describer.
func (e *SendEvent) Describe() string {
	return fmt.Sprintf("%s send #%d", e.Handler().(Application).Name(), e.Seq)
}

// EchoClientStats counts what an echo client did.
type EchoClientStats struct {
	Sent     int
	Received int

	// SendTimes holds the time of each transmission, in order.
	SendTimes []timing.VTimeInSec

	// RoundTrips holds the round trip time of each answered message, in
	// arrival order.
	RoundTrips []timing.VTimeInSec
}

// EchoClient sends MaxPackets messages to a server, one every Interval
// starting at Start. Nothing is sent at or after Stop, when the client
// releases its port.
type EchoClient struct {
	name        string
	dst         topology.NodeID
	dstPort     uint16
	maxPackets  int
	interval    timing.VTimeInSec
	packetSize  int
	start, stop timing.VTimeInSec

	host  Host
	port  uint16
	bound bool
	stats EchoClientStats
}

// EchoClientBuilder builds echo clients.
type EchoClientBuilder struct {
	dst         topology.NodeID
	dstPort     uint16
	maxPackets  int
	interval    timing.VTimeInSec
	packetSize  int
	start, stop timing.VTimeInSec
}

// MakeEchoClientBuilder returns a builder with the classic echo client
// defaults: one 1024 byte packet per second to port 9.
func MakeEchoClientBuilder() EchoClientBuilder {
	return EchoClientBuilder{
		dstPort:    9,
		maxPackets: 1,
		interval:   1,
		packetSize: 1024,
		stop:       timing.Forever,
	}
}

// WithDestination sets the server node and port.
func (b EchoClientBuilder) WithDestination(
	dst topology.NodeID,
	port uint16,
) EchoClientBuilder {
	b.dst = dst
	b.dstPort = port

	return b
}

// WithMaxPackets sets how many messages are sent at most.
func (b EchoClientBuilder) WithMaxPackets(n int) EchoClientBuilder {
	b.maxPackets = n
	return b
}

// WithInterval sets the time between two messages.
func (b EchoClientBuilder) WithInterval(i timing.VTimeInSec) EchoClientBuilder {
	b.interval = i
	return b
}

// WithPacketSize sets the message size in bytes.
func (b EchoClientBuilder) WithPacketSize(size int) EchoClientBuilder {
	b.packetSize = size
	return b
}

// WithWindow sets when the client starts and stops.
func (b EchoClientBuilder) WithWindow(
	start, stop timing.VTimeInSec,
) EchoClientBuilder {
	b.start = start
	b.stop = stop

	return b
}

// Build creates the client.
func (b EchoClientBuilder) Build(name string) *EchoClient {
	size := b.packetSize
	if size < seqLen {
		size = seqLen
	}

	return &EchoClient{
		name:       name,
		dst:        b.dst,
		dstPort:    b.dstPort,
		maxPackets: b.maxPackets,
		interval:   b.interval,
		packetSize: size,
		start:      b.start,
		stop:       b.stop,
	}
}

// Name returns the name of the client.
func (c *EchoClient) Name() string {
	return c.name
}

// Stats returns a copy of the counters of the client.
func (c *EchoClient) Stats() EchoClientStats {
	st := c.stats
	st.SendTimes = append([]timing.VTimeInSec(nil), c.stats.SendTimes...)
	st.RoundTrips = append([]timing.VTimeInSec(nil), c.stats.RoundTrips...)

	return st
}

// Install binds an ephemeral port and schedules the first send at the start
// time and the end of the window at the stop time.
func (c *EchoClient) Install(h Host) error {
	engine := h.Engine()
	if c.start < engine.Now() {
		return fmt.Errorf("installing %s: %w", c.name, ErrStartInPast)
	}

	if c.maxPackets > 1 && c.interval <= 0 {
		return fmt.Errorf("installing %s: %w: %g",
			c.name, ErrInvalidInterval, c.interval)
	}

	port, err := h.BindEphemeral(c)
	if err != nil {
		return fmt.Errorf("installing %s: %w", c.name, err)
	}

	c.host = h
	c.port = port
	c.bound = true

	if c.maxPackets > 0 {
		send := &SendEvent{EventBase: timing.NewEventBase(c.start, c)}
		if _, err := engine.Schedule(send); err != nil {
			return err
		}
	}

	if c.stop < timing.Forever {
		stop := &StopEvent{EventBase: timing.NewEventBase(c.stop, c)}
		if _, err := engine.Schedule(stop); err != nil {
			return err
		}
	}

	return nil
}

// Handle processes the client's own events.
func (c *EchoClient) Handle(evt timing.Event) error {
	switch e := evt.(type) {
	case *SendEvent:
		return c.send(e)
	case *StopEvent:
		c.close()
		return nil
	default:
		return fmt.Errorf("%s cannot handle %T", c.name, evt)
	}
}

func (c *EchoClient) send(e *SendEvent) error {
	if !c.bound || c.stats.Sent >= c.maxPackets || c.pastStop(e.Time()) {
		return nil
	}

	payload := make([]byte, seqLen)
	binary.BigEndian.PutUint64(payload, uint64(e.Seq))

	msg := &packet.Message{
		ID:      c.host.NextMessageID(),
		Dst:     c.dst,
		SrcPort: c.port,
		DstPort: c.dstPort,
		Size:    c.packetSize,
		Payload: payload,
	}

	c.stats.Sent++
	c.stats.SendTimes = append(c.stats.SendTimes, e.Time())

	sendErr := c.host.Send(msg)
	schedErr := c.scheduleNext(e.Seq + 1)

	if sendErr != nil {
		return fmt.Errorf("%s sending #%d: %w", c.name, e.Seq, sendErr)
	}

	return schedErr
}

func (c *EchoClient) scheduleNext(seq int) error {
	if seq >= c.maxPackets {
		return nil
	}

	next := c.start + float64(seq)*c.interval
	if c.pastStop(next) {
		return nil
	}

	evt := &SendEvent{EventBase: timing.NewEventBase(next, c), Seq: seq}
	if _, err := c.host.Engine().Schedule(evt); err != nil {
		return fmt.Errorf("%s scheduling #%d: %w", c.name, seq, err)
	}

	return nil
}

// pastStop tells if t falls at or after the stop time.
func (c *EchoClient) pastStop(t timing.VTimeInSec) bool {
	return c.stop < timing.Forever && t >= c.stop-timeEpsilon
}

func (c *EchoClient) close() {
	if !c.bound {
		return
	}

	c.host.Unbind(c.port)
	c.bound = false
}

// Receive records the round trip of an echoed message.
func (c *EchoClient) Receive(msg *packet.Message) error {
	if len(msg.Payload) < seqLen {
		return fmt.Errorf("%s: reply without sequence number", c.name)
	}

	raw := binary.BigEndian.Uint64(msg.Payload)
	if raw >= uint64(len(c.stats.SendTimes)) {
		return fmt.Errorf("%s: reply to unknown message #%d", c.name, raw)
	}

	seq := int(raw)

	c.stats.Received++
	c.stats.RoundTrips = append(c.stats.RoundTrips,
		msg.RecvTime-c.stats.SendTimes[seq])

	return nil
}
