// Package medium moves messages across links and channels by scheduling
// delivery events on the receivers.
package medium

import (
	"fmt"

	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
)

// HookPosTransmit is triggered once per receiver a frame is scheduled for.
// The hook item is the message and the detail is a Transmission.
var HookPosTransmit = &hooking.HookPos{Name: "Transmit"}

// Transmission describes one scheduled delivery.
type Transmission struct {
	Medium  topology.MediumID
	From    topology.NodeID
	To      topology.NodeID
	Arrival timing.VTimeInSec
}

// A Medium carries messages between the nodes attached to it.
type Medium interface {
	hooking.Hookable

	ID() topology.MediumID

	// Send schedules the delivery of msg, sent by src at the current time.
	Send(msg *packet.Message, src topology.NodeID) error
}

// Receivers resolves the handler that accepts frames for a node. Nodes
// without a receiver silently lose frames.
type Receivers interface {
	ReceiverOf(n topology.NodeID) (timing.Handler, bool)
}

// ReceiverMap is the plain Receivers implementation.
type ReceiverMap map[topology.NodeID]timing.Handler

// ReceiverOf returns the handler registered for n.
func (m ReceiverMap) ReceiverOf(n topology.NodeID) (timing.Handler, bool) {
	h, ok := m[n]
	return h, ok
}

// DeliveryEvent hands a message to the receiving node.
type DeliveryEvent struct {
	timing.EventBase

	Msg    *packet.Message
	Medium topology.MediumID
	From   topology.NodeID
	To     topology.NodeID
}

// Describe implements timing.Describer.
func (e *DeliveryEvent) Describe() string {
	return fmt.Sprintf("deliver %s to %s via %s", e.Msg.Meta(), e.To, e.Medium)
}

type base struct {
	hooking.HookableBase

	engine    timing.EventScheduler
	receivers Receivers
}

func (b *base) checkMTU(id topology.MediumID, mtu int, msg *packet.Message) error {
	if msg.Size > mtu {
		return &FragmentationRequiredError{Medium: id, Size: msg.Size, MTU: mtu}
	}

	return nil
}

func (b *base) deliver(
	id topology.MediumID,
	msg *packet.Message,
	from, to topology.NodeID,
	arrival timing.VTimeInSec,
) error {
	h, ok := b.receivers.ReceiverOf(to)
	if !ok {
		return nil
	}

	evt := &DeliveryEvent{
		EventBase: timing.NewEventBase(arrival, h),
		Msg:       msg,
		Medium:    id,
		From:      from,
		To:        to,
	}

	if _, err := b.engine.Schedule(evt); err != nil {
		return fmt.Errorf("medium: scheduling delivery: %w", err)
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    HookPosTransmit,
		Item:   msg,
		Detail: Transmission{Medium: id, From: from, To: to, Arrival: arrival},
	})

	return nil
}
