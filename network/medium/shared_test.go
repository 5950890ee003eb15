package medium

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/netsim/network/packet"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

type arrival struct {
	node topology.NodeID
	time timing.VTimeInSec
	msg  *packet.Message
}

type collectingReceiver struct {
	node topology.NodeID
	log  *[]arrival
}

func (r *collectingReceiver) Handle(e timing.Event) error {
	d := e.(*DeliveryEvent)
	*r.log = append(*r.log, arrival{node: r.node, time: e.Time(), msg: d.Msg})

	return nil
}

var _ = Describe("Shared", func() {
	var (
		engine    *timing.SerialEngine
		g         *topology.Graph
		channel   *topology.Channel
		receivers ReceiverMap
		log       []arrival
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		g = topology.NewGraph()
		log = nil
		receivers = ReceiverMap{}

		var ids []topology.NodeID
		for i := 0; i < 4; i++ {
			id := g.AddNode("").ID()
			ids = append(ids, id)
			receivers[id] = &collectingReceiver{node: id, log: &log}
		}

		var err error
		channel, err = g.AddChannel(ids, topology.ChannelSpec{MTU: 2000})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should broadcast to every other member with a fixed delay", func() {
		s := NewShared(channel, FixedDelayBroadcast{Delay: 0.001}, engine, receivers)
		msg := &packet.Message{ID: 9, Size: 1024, Payload: []byte("x")}

		Expect(s.Send(msg, 2)).To(Succeed())
		Expect(engine.Run(timing.Forever)).To(Succeed())

		Expect(log).To(HaveLen(3))
		for i, want := range []topology.NodeID{0, 1, 3} {
			Expect(log[i].node).To(Equal(want))
			Expect(log[i].time).To(BeNumerically("~", 0.001, 1e-12))
			Expect(log[i].msg.ID).To(Equal(uint64(9)))
			Expect(log[i].msg).NotTo(BeIdenticalTo(msg))
		}
	})

	It("should serialize frames on a busy channel", func() {
		policy := &SerializedBroadcast{Delay: 0.001, DataRate: 8000}
		s := NewShared(channel, policy, engine, receivers)

		Expect(s.Send(&packet.Message{ID: 1, Size: 1000}, 0)).To(Succeed())
		Expect(s.Send(&packet.Message{ID: 2, Size: 1000}, 1)).To(Succeed())
		Expect(engine.Run(timing.Forever)).To(Succeed())

		Expect(log).To(HaveLen(6))
		Expect(log[0].time).To(BeNumerically("~", 1.001, 1e-9))
		Expect(log[0].msg.ID).To(Equal(uint64(1)))
		Expect(log[5].time).To(BeNumerically("~", 2.001, 1e-9))
		Expect(log[5].msg.ID).To(Equal(uint64(2)))
	})

	It("should skip members without a receiver", func() {
		delete(receivers, 3)
		s := NewShared(channel, FixedDelayBroadcast{}, engine, receivers)

		Expect(s.Send(&packet.Message{Size: 10}, 0)).To(Succeed())
		Expect(engine.Run(timing.Forever)).To(Succeed())

		Expect(log).To(HaveLen(2))
	})

	It("should reject oversized frames and strangers", func() {
		s := NewShared(channel, FixedDelayBroadcast{}, engine, receivers)
		stranger := g.AddNode("stranger").ID()

		err := s.Send(&packet.Message{Size: 2001}, 0)
		Expect(errors.Is(err, ErrFragmentationRequired)).To(BeTrue())

		err = s.Send(&packet.Message{Size: 10}, stranger)
		Expect(errors.Is(err, ErrNotAttached)).To(BeTrue())
		Expect(engine.Pending()).To(Equal(0))
	})
})
