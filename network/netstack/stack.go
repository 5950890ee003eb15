package netstack

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sarchlab/netsim/network/medium"
	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
)

// Hook positions of a stack. The hook item is always the message.
var (
	// HookPosSend is triggered when a local application sends a message.
	HookPosSend = &hooking.HookPos{Name: "Send"}

	// HookPosDeliver is triggered when a message reaches its application.
	HookPosDeliver = &hooking.HookPos{Name: "Deliver"}

	// HookPosForward is triggered when a transit message is passed on.
	HookPosForward = &hooking.HookPos{Name: "Forward"}

	// HookPosDrop is triggered when a message is lost. The detail is the
	// DropReason.
	HookPosDrop = &hooking.HookPos{Name: "Drop"}
)

// DropReason tells why a message was lost.
type DropReason string

// Reasons for losing a message.
const (
	DropNoRoute         DropReason = "no-route"
	DropTTLExpired      DropReason = "ttl-expired"
	DropPortUnreachable DropReason = "port-unreachable"
	DropNodeDown        DropReason = "node-down"
	DropMediumRejected  DropReason = "medium-rejected"
)

// FirstEphemeralPort is the first port handed out by BindEphemeral.
const FirstEphemeralPort uint16 = 49153

// A Receiver is an application bound to a port.
type Receiver interface {
	Receive(msg *packet.Message) error
}

// Stats counts what a stack has seen.
type Stats struct {
	Sent      uint64
	Received  uint64
	Forwarded uint64

	// Filtered counts frames of a shared channel addressed to another node.
	Filtered uint64
	Dropped  map[DropReason]uint64
}

// Stack is the protocol stack of one node. It handles the DeliveryEvents
// that media schedule for the node.
type Stack struct {
	hooking.HookableBase

	net  *Network
	node *topology.Node

	ports         map[uint16]Receiver
	nextEphemeral uint16

	statsLock sync.Mutex
	stats     Stats
}

func newStack(n *Network, node *topology.Node) *Stack {
	return &Stack{
		net:           n,
		node:          node,
		ports:         make(map[uint16]Receiver),
		nextEphemeral: FirstEphemeralPort,
		stats:         Stats{Dropped: make(map[DropReason]uint64)},
	}
}

// Name returns the node name.
func (s *Stack) Name() string {
	return s.node.Name()
}

// Node returns the node the stack runs on.
func (s *Stack) Node() *topology.Node {
	return s.node
}

// Engine returns the scheduler applications use for their own events.
func (s *Stack) Engine() timing.EventScheduler {
	return s.net.engine
}

// Logger returns the logger of the network.
func (s *Stack) Logger() *slog.Logger {
	return s.net.logger
}

// NextMessageID returns a message id unique within the simulation.
func (s *Stack) NextMessageID() uint64 {
	return s.net.ids.Next()
}

// Stats returns a copy of the counters. It is safe to call while the
// simulation runs.
func (s *Stack) Stats() Stats {
	s.statsLock.Lock()
	defer s.statsLock.Unlock()

	st := s.stats
	st.Dropped = make(map[DropReason]uint64, len(s.stats.Dropped))
	for k, v := range s.stats.Dropped {
		st.Dropped[k] = v
	}

	return st
}

// Bind attaches r to port.
func (s *Stack) Bind(port uint16, r Receiver) error {
	if _, taken := s.ports[port]; taken {
		return fmt.Errorf("%w: %d on %s", ErrPortInUse, port, s.node.Name())
	}

	s.ports[port] = r

	return nil
}

// BindEphemeral attaches r to the next free ephemeral port.
func (s *Stack) BindEphemeral(r Receiver) (uint16, error) {
	for port := s.nextEphemeral; port != 0; port++ {
		if _, taken := s.ports[port]; taken {
			continue
		}

		s.ports[port] = r
		s.nextEphemeral = port + 1

		return port, nil
	}

	return 0, ErrPortsExhausted
}

// Unbind releases a port.
func (s *Stack) Unbind(port uint16) {
	delete(s.ports, port)
}

// Send routes a message originated by a local application. Unroutable
// messages are dropped, not returned as errors. Errors report messages the
// medium refuses, such as oversized ones.
func (s *Stack) Send(msg *packet.Message) error {
	msg.Src = s.node.ID()
	msg.SendTime = s.net.engine.Now()
	if msg.ID == 0 {
		msg.ID = s.NextMessageID()
	}
	if msg.TTL == 0 {
		msg.TTL = packet.DefaultTTL
	}

	s.count(func(st *Stats) { st.Sent++ })
	s.invoke(HookPosSend, msg, nil)

	if s.node.Removed() {
		s.drop(msg, DropNodeDown)
		return nil
	}

	if msg.Dst == s.node.ID() {
		return s.deliverLocal(msg)
	}

	return s.transmit(msg, false)
}

func (s *Stack) transmit(msg *packet.Message, forwarding bool) error {
	route, ok := s.net.route(s.node.ID(), msg.Dst)
	if !ok {
		s.drop(msg, DropNoRoute)
		return nil
	}

	m, ok := s.net.Medium(route.Medium)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMedium, route.Medium)
	}

	msg.NextHop = route.NextHop

	err := m.Send(msg, s.node.ID())
	if err != nil {
		if forwarding {
			s.net.logger.Debug("medium rejected transit message",
				"node", s.node.Name(), "msg", msg.Meta(), "err", err)
			s.drop(msg, DropMediumRejected)

			return nil
		}

		return err
	}

	if forwarding {
		s.count(func(st *Stats) { st.Forwarded++ })
		s.invoke(HookPosForward, msg, route.NextHop)
	}

	return nil
}

// Handle processes a frame delivered by a medium.
func (s *Stack) Handle(evt timing.Event) error {
	d, ok := evt.(*medium.DeliveryEvent)
	if !ok {
		return fmt.Errorf("netstack: %s cannot handle %T", s.node.Name(), evt)
	}

	msg := d.Msg
	if msg.NextHop != s.node.ID() {
		s.count(func(st *Stats) { st.Filtered++ })
		return nil
	}

	if s.node.Removed() {
		s.drop(msg, DropNodeDown)
		return nil
	}

	msg.Hops++

	if msg.Dst == s.node.ID() {
		return s.deliverLocal(msg)
	}

	msg.TTL--
	if msg.TTL <= 0 {
		s.drop(msg, DropTTLExpired)
		return nil
	}

	return s.transmit(msg, true)
}

func (s *Stack) deliverLocal(msg *packet.Message) error {
	msg.RecvTime = s.net.engine.Now()

	r, ok := s.ports[msg.DstPort]
	if !ok {
		s.drop(msg, DropPortUnreachable)
		return nil
	}

	s.count(func(st *Stats) { st.Received++ })
	s.invoke(HookPosDeliver, msg, nil)

	return r.Receive(msg)
}

func (s *Stack) drop(msg *packet.Message, reason DropReason) {
	s.count(func(st *Stats) { st.Dropped[reason]++ })

	s.net.logger.Debug("message dropped",
		"node", s.node.Name(),
		"msg", msg.Meta(),
		"reason", string(reason),
		"time", s.net.engine.Now())

	s.invoke(HookPosDrop, msg, reason)
}

func (s *Stack) count(update func(st *Stats)) {
	s.statsLock.Lock()
	update(&s.stats)
	s.statsLock.Unlock()
}

func (s *Stack) invoke(pos *hooking.HookPos, msg *packet.Message, detail any) {
	ctx := hooking.HookCtx{Domain: s, Pos: pos, Item: msg, Detail: detail}
	s.InvokeHook(ctx)
	s.net.InvokeHook(ctx)
}
