package app

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/netsim/network/medium"
	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/id"
	"github.com/sarchlab/netsim/sim/timing"
)

var _ = Describe("EchoClient", func() {
	var (
		engine         *timing.SerialEngine
		net            *netstack.Network
		server, client *topology.Node
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		g := topology.NewGraph()
		net = netstack.NewNetwork(g, engine, id.NewGenerator(),
			slog.New(slog.NewTextHandler(io.Discard, nil)))

		server = g.AddNode("server")
		client = g.AddNode("client")
		l, err := g.AddLink(server.ID(), client.ID(),
			topology.LinkSpec{Delay: 0.005, DataRate: 1e8})
		Expect(err).NotTo(HaveOccurred())
		net.AddMedium(medium.NewPointToPoint(l, engine, net))
	})

	build := func() *EchoClient {
		return MakeEchoClientBuilder().
			WithDestination(server.ID(), 9).
			WithMaxPackets(100).
			WithInterval(0.1).
			WithPacketSize(1024).
			WithWindow(2.0, 15.0).
			Build("client.echo")
	}

	It("should send exactly MaxPackets, the last at 11.9s", func() {
		c := build()
		Expect(c.Install(net.Stack(client))).To(Succeed())

		Expect(engine.Run(15.0)).To(Succeed())

		st := c.Stats()
		Expect(st.Sent).To(Equal(100))
		Expect(st.SendTimes[0]).To(BeNumerically("~", 2.0, 1e-9))
		Expect(st.SendTimes[99]).To(BeNumerically("~", 11.9, 1e-9))
		Expect(st.Received).To(BeZero())
	})

	It("should stop sending at the stop time", func() {
		c := MakeEchoClientBuilder().
			WithDestination(server.ID(), 9).
			WithMaxPackets(100).
			WithInterval(0.1).
			WithWindow(2.0, 2.3).
			Build("client.echo")
		Expect(c.Install(net.Stack(client))).To(Succeed())

		Expect(engine.Run(timing.Forever)).To(Succeed())

		st := c.Stats()
		Expect(st.Sent).To(Equal(3))
		Expect(st.SendTimes[2]).To(BeNumerically("~", 2.2, 1e-9))
	})

	It("should not send when a send falls on the stop time", func() {
		s := MakeEchoServerBuilder().Build("server.echo")
		Expect(s.Install(net.Stack(server))).To(Succeed())
		c := MakeEchoClientBuilder().
			WithDestination(server.ID(), 9).
			WithMaxPackets(10).
			WithInterval(1).
			WithWindow(0, 3).
			Build("client.echo")
		Expect(c.Install(net.Stack(client))).To(Succeed())

		Expect(engine.Run(timing.Forever)).To(Succeed())

		st := c.Stats()
		Expect(st.Sent).To(Equal(3))
		Expect(st.Received).To(Equal(st.Sent))
		Expect(s.Stats().Replied).To(Equal(uint64(3)))
		Expect(net.Stack(client).Stats().Dropped).To(BeEmpty())
	})

	It("should refuse a non-positive interval for several messages", func() {
		c := MakeEchoClientBuilder().
			WithDestination(server.ID(), 9).
			WithMaxPackets(3).
			WithInterval(-1).
			Build("client.echo")

		err := c.Install(net.Stack(client))

		Expect(errors.Is(err, ErrInvalidInterval)).To(BeTrue())
		Expect(engine.Pending()).To(BeZero())
	})

	It("should accept a zero interval for a single message", func() {
		c := MakeEchoClientBuilder().
			WithDestination(server.ID(), 9).
			WithInterval(0).
			Build("client.echo")

		Expect(c.Install(net.Stack(client))).To(Succeed())
		Expect(engine.Run(timing.Forever)).To(Succeed())

		Expect(c.Stats().Sent).To(Equal(1))
	})

	It("should reject replies with an unknown sequence number", func() {
		c := build()
		Expect(c.Install(net.Stack(client))).To(Succeed())

		payload := make([]byte, 8)
		binary.BigEndian.PutUint64(payload, 1<<63)

		var err error
		Expect(func() {
			err = c.Receive(&packet.Message{Payload: payload, RecvTime: 1})
		}).NotTo(Panic())
		Expect(err).To(HaveOccurred())
		Expect(c.Stats().Received).To(BeZero())
	})

	It("should measure round trips against an echo server", func() {
		s := MakeEchoServerBuilder().WithWindow(1.0, 15.0).Build("server.echo")
		Expect(s.Install(net.Stack(server))).To(Succeed())
		c := build()
		Expect(c.Install(net.Stack(client))).To(Succeed())

		Expect(engine.Run(15.0)).To(Succeed())

		st := c.Stats()
		Expect(st.Received).To(Equal(100))
		Expect(s.Stats().Replied).To(Equal(uint64(100)))
		for _, rtt := range st.RoundTrips {
			Expect(rtt).To(BeNumerically("~", 0.010, 1e-9))
		}
	})

	It("should stop listening after the stop time", func() {
		s := MakeEchoServerBuilder().Build("server.echo")
		Expect(s.Install(net.Stack(server))).To(Succeed())
		c := MakeEchoClientBuilder().
			WithDestination(server.ID(), 9).
			WithWindow(1.0, 1.001).
			Build("client.echo")
		Expect(c.Install(net.Stack(client))).To(Succeed())

		Expect(engine.Run(timing.Forever)).To(Succeed())

		Expect(c.Stats().Sent).To(Equal(1))
		Expect(c.Stats().Received).To(BeZero())
		Expect(net.Stack(client).Stats().Dropped[netstack.DropPortUnreachable]).
			To(Equal(uint64(1)))
	})

	It("should refuse to start in the past", func() {
		engine.Schedule(&StopEvent{EventBase: timing.NewEventBase(5, build())})
		Expect(engine.Run(5)).To(Succeed())

		err := build().Install(net.Stack(client))

		Expect(errors.Is(err, ErrStartInPast)).To(BeTrue())
	})
})
