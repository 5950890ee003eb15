package app

import (
	"fmt"

	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/sim/timing"
)

// EchoServerStats counts what an echo server did.
type EchoServerStats struct {
	Received uint64
	Replied  uint64
	Dropped  uint64
}

// EchoServer answers every message with one of the same size, as long as
// the message arrives within [Start, Stop].
type EchoServer struct {
	name              string
	port              uint16
	start, stop       timing.VTimeInSec
	dropOutsideWindow bool

	host  Host
	stats EchoServerStats
}

// EchoServerBuilder builds echo servers.
type EchoServerBuilder struct {
	port              uint16
	start, stop       timing.VTimeInSec
	dropOutsideWindow bool
}

// MakeEchoServerBuilder returns a builder for a server on port 9 that is
// always active and drops messages outside its window.
func MakeEchoServerBuilder() EchoServerBuilder {
	return EchoServerBuilder{
		port:              9,
		stop:              timing.Forever,
		dropOutsideWindow: true,
	}
}

// WithPort sets the port the server listens on.
func (b EchoServerBuilder) WithPort(port uint16) EchoServerBuilder {
	b.port = port
	return b
}

// WithWindow sets the active window.
func (b EchoServerBuilder) WithWindow(
	start, stop timing.VTimeInSec,
) EchoServerBuilder {
	b.start = start
	b.stop = stop

	return b
}

// WithDropOutsideWindow sets whether messages arriving outside the active
// window are dropped (the default) or answered anyway.
func (b EchoServerBuilder) WithDropOutsideWindow(drop bool) EchoServerBuilder {
	b.dropOutsideWindow = drop
	return b
}

// Build creates the server.
func (b EchoServerBuilder) Build(name string) *EchoServer {
	return &EchoServer{
		name:              name,
		port:              b.port,
		start:             b.start,
		stop:              b.stop,
		dropOutsideWindow: b.dropOutsideWindow,
	}
}

// Name returns the name of the server.
func (s *EchoServer) Name() string {
	return s.name
}

// Port returns the port the server listens on.
func (s *EchoServer) Port() uint16 {
	return s.port
}

// Stats returns the counters of the server.
func (s *EchoServer) Stats() EchoServerStats {
	return s.stats
}

// Install binds the server port.
func (s *EchoServer) Install(h Host) error {
	if err := h.Bind(s.port, s); err != nil {
		return fmt.Errorf("installing %s: %w", s.name, err)
	}

	s.host = h

	return nil
}

// Handle rejects every event. The server only reacts to messages.
func (s *EchoServer) Handle(evt timing.Event) error {
	return fmt.Errorf("%s cannot handle %T", s.name, evt)
}

// Receive echoes msg back to its sender.
func (s *EchoServer) Receive(msg *packet.Message) error {
	s.stats.Received++

	now := s.host.Engine().Now()
	if s.dropOutsideWindow && (now < s.start || now > s.stop) {
		s.stats.Dropped++
		return nil
	}

	reply := msg.Reply(s.host.NextMessageID(), msg.Size)
	reply.Payload = msg.Payload

	if err := s.host.Send(reply); err != nil {
		return fmt.Errorf("%s replying to %s: %w", s.name, msg.Meta(), err)
	}

	s.stats.Replied++

	return nil
}
