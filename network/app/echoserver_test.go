package app

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/netsim/network/packet"
)

var _ = Describe("EchoServer", func() {
	var (
		mockCtrl  *gomock.Controller
		host      *MockHost
		scheduler *MockEventScheduler
		server    *EchoServer
	)

	request := func() *packet.Message {
		return &packet.Message{
			ID: 1, Src: 4, Dst: 0, SrcPort: 49153, DstPort: 9,
			Size: 1024, Payload: []byte{0, 0, 0, 0, 0, 0, 0, 3},
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		host = NewMockHost(mockCtrl)
		scheduler = NewMockEventScheduler(mockCtrl)
		host.EXPECT().Engine().Return(scheduler).AnyTimes()

		server = MakeEchoServerBuilder().
			WithPort(9).
			WithWindow(1.0, 15.0).
			Build("server.echo")
		host.EXPECT().Bind(uint16(9), server).Return(nil)
		Expect(server.Install(host)).To(Succeed())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	for _, now := range []float64{1.0, 7.5, 15.0} {
		It(fmt.Sprintf("should reply inside the window at %gs", now), func() {
			scheduler.EXPECT().Now().Return(now)
			host.EXPECT().NextMessageID().Return(uint64(2))
			host.EXPECT().
				Send(gomock.Any()).
				DoAndReturn(func(reply *packet.Message) error {
					Expect(reply.ID).To(Equal(uint64(2)))
					Expect(reply.Dst).To(BeEquivalentTo(4))
					Expect(reply.DstPort).To(Equal(uint16(49153)))
					Expect(reply.SrcPort).To(Equal(uint16(9)))
					Expect(reply.Size).To(Equal(1024))
					Expect(reply.Payload).To(Equal(request().Payload))
					return nil
				})

			Expect(server.Receive(request())).To(Succeed())
			Expect(server.Stats()).To(Equal(
				EchoServerStats{Received: 1, Replied: 1}))
		})
	}

	for _, now := range []float64{0.0, 0.999, 15.001, 20.0} {
		It(fmt.Sprintf("should drop silently outside the window at %gs", now), func() {
			scheduler.EXPECT().Now().Return(now)

			Expect(server.Receive(request())).To(Succeed())
			Expect(server.Stats()).To(Equal(
				EchoServerStats{Received: 1, Dropped: 1}))
		})
	}

	It("should reply outside the window when told to", func() {
		server = MakeEchoServerBuilder().
			WithPort(7).
			WithWindow(1.0, 15.0).
			WithDropOutsideWindow(false).
			Build("server.echo7")
		host.EXPECT().Bind(uint16(7), server).Return(nil)
		Expect(server.Install(host)).To(Succeed())

		scheduler.EXPECT().Now().Return(20.0)
		host.EXPECT().NextMessageID().Return(uint64(2))
		host.EXPECT().Send(gomock.Any()).Return(nil)

		Expect(server.Receive(request())).To(Succeed())
		Expect(server.Stats().Replied).To(Equal(uint64(1)))
	})
})
