package timing

import (
	"errors"
	"fmt"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/netsim/sim/hooking"
)

type recordingHandler struct {
	name   string
	calls  *[]string
	onCall func(e Event)
	err    error
}

func (h *recordingHandler) Handle(e Event) error {
	evt := e.(*labeledEvent)
	*h.calls = append(*h.calls, fmt.Sprintf("%s:%d", h.name, evt.label))

	if h.onCall != nil {
		h.onCall(e)
	}

	return h.err
}

func (h *recordingHandler) Name() string {
	return h.name
}

func eventFor(h Handler, t VTimeInSec, label int) *labeledEvent {
	return &labeledEvent{EventBase: NewEventBase(t, h), label: label}
}

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
		calls    []string
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine().
			WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
		calls = nil
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := NewMockEvent(mockCtrl)
		evt2 := NewMockEvent(mockCtrl)
		evt3 := NewMockEvent(mockCtrl)
		evt4 := NewMockEvent(mockCtrl)

		evt1.EXPECT().Time().Return(4.0).AnyTimes()
		evt1.EXPECT().Handler().Return(handler1).AnyTimes()
		evt2.EXPECT().Time().Return(2.0).AnyTimes()
		evt2.EXPECT().Handler().Return(handler2).AnyTimes()
		evt3.EXPECT().Time().Return(3.0).AnyTimes()
		evt3.EXPECT().Handler().Return(handler1).AnyTimes()
		evt4.EXPECT().Time().Return(5.0).AnyTimes()
		evt4.EXPECT().Handler().Return(handler1).AnyTimes()

		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(_ Event) {
			_, _ = engine.Schedule(evt3)
			_, _ = engine.Schedule(evt4)
		})
		handleEvt3 := handler1.EXPECT().Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().Handle(evt1).After(handleEvt3)
		handler1.EXPECT().Handle(evt4).After(handleEvt1)

		_, err := engine.Schedule(evt1)
		Expect(err).ToNot(HaveOccurred())
		_, err = engine.Schedule(evt2)
		Expect(err).ToNot(HaveOccurred())

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(engine.Now()).To(Equal(5.0))
		Expect(engine.Dispatched()).To(Equal(uint64(4)))
	})

	It("should dispatch same-time events in schedule order", func() {
		h := &recordingHandler{name: "h", calls: &calls}
		for i := 0; i < 5; i++ {
			_, _ = engine.Schedule(eventFor(h, 1.0, i))
		}

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(calls).To(Equal([]string{"h:0", "h:1", "h:2", "h:3", "h:4"}))
	})

	It("should reject events in the past", func() {
		var scheduleErr error

		h := &recordingHandler{name: "h", calls: &calls}
		h.onCall = func(e Event) {
			_, scheduleErr = engine.Schedule(eventFor(h, 1.0, 99))
		}
		_, _ = engine.Schedule(eventFor(h, 2.0, 0))

		Expect(engine.Run(Forever)).To(Succeed())

		Expect(errors.Is(scheduleErr, ErrInvalidTime)).To(BeTrue())
		var invalidTime *InvalidTimeError
		Expect(errors.As(scheduleErr, &invalidTime)).To(BeTrue())
		Expect(invalidTime.EventTime).To(Equal(1.0))
		Expect(invalidTime.Now).To(Equal(2.0))
		Expect(calls).To(Equal([]string{"h:0"}))
	})

	It("should stop before events later than the stop time", func() {
		h := &recordingHandler{name: "h", calls: &calls}
		_, _ = engine.Schedule(eventFor(h, 1.0, 0))
		_, _ = engine.Schedule(eventFor(h, 2.0, 1))
		_, _ = engine.Schedule(eventFor(h, 2.5, 2))

		Expect(engine.Run(2.0)).To(Succeed())

		Expect(calls).To(Equal([]string{"h:0", "h:1"}))
		Expect(engine.Now()).To(Equal(2.0))
		Expect(engine.Pending()).To(Equal(1))
		Expect(engine.State()).To(Equal(Stopped))
	})

	It("should refuse to run twice", func() {
		Expect(engine.State()).To(Equal(Idle))
		Expect(engine.Now()).To(Equal(0.0))
		Expect(engine.Run(1.0)).To(Succeed())

		err := engine.Run(2.0)

		Expect(errors.Is(err, ErrAlreadyStopped)).To(BeTrue())
	})

	It("should refuse to run from inside a handler", func() {
		var runErr error

		h := &recordingHandler{name: "h", calls: &calls}
		h.onCall = func(Event) {
			Expect(engine.State()).To(Equal(Running))
			runErr = engine.Run(Forever)
		}
		_, _ = engine.Schedule(eventFor(h, 1.0, 0))

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(runErr).To(MatchError(ErrAlreadyRunning))
	})

	It("should skip cancelled events", func() {
		h := &recordingHandler{name: "h", calls: &calls}
		_, _ = engine.Schedule(eventFor(h, 1.0, 0))
		cancelled, _ := engine.Schedule(eventFor(h, 2.0, 1))
		_, _ = engine.Schedule(eventFor(h, 3.0, 2))

		cancelled.Cancel()

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(calls).To(Equal([]string{"h:0", "h:2"}))
		Expect(cancelled.Cancelled()).To(BeTrue())
	})

	It("should stop when asked by a handler", func() {
		h := &recordingHandler{name: "h", calls: &calls}
		h.onCall = func(e Event) {
			if e.(*labeledEvent).label == 1 {
				engine.Stop()
			}
		}
		for i := 0; i < 4; i++ {
			_, _ = engine.Schedule(eventFor(h, VTimeInSec(i), i))
		}

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(calls).To(Equal([]string{"h:0", "h:1"}))
	})

	It("should keep running when a handler fails", func() {
		h := &recordingHandler{
			name:  "h",
			calls: &calls,
			err:   errors.New("boom"),
		}
		_, _ = engine.Schedule(eventFor(h, 1.0, 0))
		_, _ = engine.Schedule(eventFor(h, 2.0, 1))

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(calls).To(HaveLen(2))
	})

	It("should call simulation end handlers", func() {
		h := &recordingHandler{name: "h", calls: &calls}
		_, _ = engine.Schedule(eventFor(h, 1.5, 0))

		endHandler := NewMockSimulationEndHandler(mockCtrl)
		endHandler.EXPECT().Handle(1.5)
		engine.RegisterSimulationEndHandler(endHandler)

		Expect(engine.Run(Forever)).To(Succeed())
	})

	It("should invoke hooks around every event", func() {
		var positions []string
		var ids []uint64
		engine.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos.Name)
			ids = append(ids, ctx.Item.(*ScheduledEvent).ID)
		}))

		h := &recordingHandler{name: "h", calls: &calls}
		_, _ = engine.Schedule(eventFor(h, 1.0, 0))
		_, _ = engine.Schedule(eventFor(h, 2.0, 1))

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(positions).To(Equal([]string{
			"BeforeEvent", "AfterEvent", "BeforeEvent", "AfterEvent",
		}))
		Expect(ids).To(Equal([]uint64{1, 1, 2, 2}))
	})

	It("should describe events by type and handler", func() {
		h := &recordingHandler{name: "node0", calls: &calls}

		Expect(DescribeEvent(eventFor(h, 1, 0))).
			To(Equal("*timing.labeledEvent -> node0"))
	})
})
