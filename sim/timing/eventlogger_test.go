package timing

import (
	"bytes"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventLogger", func() {
	It("should log dispatched events", func() {
		buf := new(bytes.Buffer)
		logger := slog.New(slog.NewTextHandler(buf, nil))

		engine := NewSerialEngine()
		engine.AcceptHook(NewEventLogger(logger, slog.LevelInfo))

		var calls []string
		h := &recordingHandler{name: "server", calls: &calls}
		_, _ = engine.Schedule(eventFor(h, 0.25, 0))

		Expect(engine.Run(Forever)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("time=0.25"))
		Expect(buf.String()).To(ContainSubstring("labeledEvent -> server"))
	})
})
