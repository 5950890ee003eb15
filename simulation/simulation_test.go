package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/network/app"
	"github.com/sarchlab/netsim/network/mobility"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
	"github.com/sarchlab/netsim/tracing"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type cloudBiz struct {
	sim     *Simulation
	server  *topology.Node
	clients []*topology.Node
	echo    *app.EchoServer
	pingers []*app.EchoClient
}

func buildCloudBiz(b Builder) *cloudBiz {
	s, err := b.WithLogger(quiet).Build()
	Expect(err).NotTo(HaveOccurred())

	cb := &cloudBiz{sim: s}
	cb.server = s.AddNode("server")
	router := s.AddNode("router")
	ap := s.AddNode("ap")
	for i := 0; i < 5; i++ {
		cb.clients = append(cb.clients, s.AddNode(""))
	}

	spec := topology.LinkSpec{Delay: 0.005, DataRate: 1e8}
	core, err := s.AddLink(cb.server.ID(), router.ID(), spec)
	Expect(err).NotTo(HaveOccurred())
	edge, err := s.AddLink(router.ID(), ap.ID(), spec)
	Expect(err).NotTo(HaveOccurred())

	members := []topology.NodeID{}
	ids := []topology.NodeID{}
	for _, c := range cb.clients {
		members = append(members, c.ID())
		ids = append(ids, c.ID())
	}
	members = append(members, ap.ID())

	wifi, err := s.AddChannel(members, topology.ChannelSpec{}, nil)
	Expect(err).NotTo(HaveOccurred())
	Expect(s.SetCoordinator(wifi.ID(), ap.ID())).To(Succeed())

	mask := netip.MustParseAddr("255.255.255.0")
	for m, base := range map[topology.MediumID]string{
		core.ID(): "10.1.1.0",
		edge.ID(): "10.1.2.0",
		wifi.ID(): "192.168.1.0",
	} {
		_, err := s.AssignSubnet(m, netip.MustParseAddr(base), mask)
		Expect(err).NotTo(HaveOccurred())
	}

	Expect(s.InstallMobility(ids, mobility.RandomWalkBounded{
		Bounds:   mobility.Rect{MinX: -50, MaxX: 50, MinY: -50, MaxY: 50},
		Interval: 1,
		StepSize: 3,
		Placement: mobility.Grid{
			DeltaX: 5, DeltaY: 10, GridWidth: 3, Layout: mobility.RowFirst,
		},
	})).To(Succeed())

	cb.echo = app.MakeEchoServerBuilder().
		WithWindow(1, 15).
		Build("server.echo")
	Expect(s.InstallApplication(cb.server.ID(), cb.echo)).To(Succeed())

	for _, c := range cb.clients {
		p := app.MakeEchoClientBuilder().
			WithDestination(cb.server.ID(), 9).
			WithMaxPackets(100).
			WithInterval(0.1).
			WithPacketSize(1024).
			WithWindow(2, 15).
			Build(c.Name() + ".echo")
		Expect(s.InstallApplication(c.ID(), p)).To(Succeed())
		cb.pingers = append(cb.pingers, p)
	}

	s.PopulateRoutingTables()

	return cb
}

type timelineEntry struct {
	ID   uint64
	Time timing.VTimeInSec
	What string
}

type positionSample struct {
	Node topology.NodeID
	Time timing.VTimeInSec
	Pos  topology.Position
}

func record(s *Simulation) (*[]timelineEntry, *[]positionSample) {
	timeline := &[]timelineEntry{}
	positions := &[]positionSample{}

	s.OnEventDispatched(func(id uint64, t timing.VTimeInSec, what string) {
		*timeline = append(*timeline, timelineEntry{id, t, what})
	})
	s.OnPositionUpdate(func(n topology.NodeID, t timing.VTimeInSec, p topology.Position) {
		*positions = append(*positions, positionSample{n, t, p})
	})

	return timeline, positions
}

var _ = Describe("Simulation", func() {
	It("should echo every client message through the router", func() {
		cb := buildCloudBiz(MakeBuilder())

		Expect(cb.sim.Run(15)).To(Succeed())
		Expect(cb.sim.Terminate()).To(Succeed())

		for _, p := range cb.pingers {
			st := p.Stats()
			Expect(st.Sent).To(Equal(100))
			Expect(st.Received).To(Equal(100))
			Expect(st.SendTimes[99]).To(BeNumerically("~", 11.9, 1e-9))
		}
		Expect(cb.echo.Stats().Replied).To(Equal(uint64(500)))
	})

	It("should reproduce the same run from the same seed", func() {
		a := buildCloudBiz(MakeBuilder().WithSeed(7))
		timelineA, positionsA := record(a.sim)
		b := buildCloudBiz(MakeBuilder().WithSeed(7))
		timelineB, positionsB := record(b.sim)

		Expect(a.sim.Run(15)).To(Succeed())
		Expect(b.sim.Run(15)).To(Succeed())

		Expect(*timelineA).NotTo(BeEmpty())
		Expect(*timelineA).To(Equal(*timelineB))
		Expect(*positionsA).To(Equal(*positionsB))
	})

	It("should walk differently with another seed", func() {
		a := buildCloudBiz(MakeBuilder().WithSeed(1))
		_, positionsA := record(a.sim)
		b := buildCloudBiz(MakeBuilder().WithSeed(2))
		_, positionsB := record(b.sim)

		Expect(a.sim.Run(5)).To(Succeed())
		Expect(b.sim.Run(5)).To(Succeed())

		Expect(*positionsA).NotTo(Equal(*positionsB))
	})

	It("should keep walkers inside their bounds", func() {
		cb := buildCloudBiz(MakeBuilder().WithSeed(3))
		_, positions := record(cb.sim)
		bounds := mobility.Rect{MinX: -50, MaxX: 50, MinY: -50, MaxY: 50}

		Expect(cb.sim.Run(15)).To(Succeed())

		Expect(*positions).NotTo(BeEmpty())
		for _, p := range *positions {
			Expect(bounds.Contains(p.Pos)).To(BeTrue())
		}
	})

	It("should refuse to run twice", func() {
		cb := buildCloudBiz(MakeBuilder())

		Expect(cb.sim.Run(3)).To(Succeed())
		err := cb.sim.Run(4)

		Expect(errors.Is(err, timing.ErrAlreadyStopped)).To(BeTrue())
		Expect(cb.sim.Now()).To(BeNumerically("<=", 3))
	})

	It("should find nodes by address", func() {
		cb := buildCloudBiz(MakeBuilder())

		n, ok := cb.sim.NodeByAddress(netip.MustParseAddr("10.1.1.1"))
		Expect(ok).To(BeTrue())
		Expect(n).To(BeIdenticalTo(cb.server))

		n, ok = cb.sim.NodeByAddress(netip.MustParseAddr("192.168.1.6"))
		Expect(ok).To(BeTrue())
		Expect(n.Name()).To(Equal("ap"))

		_, ok = cb.sim.NodeByAddress(netip.MustParseAddr("172.16.0.1"))
		Expect(ok).To(BeFalse())
	})

	It("should stop moving removed nodes", func() {
		cb := buildCloudBiz(MakeBuilder())
		_, positions := record(cb.sim)
		gone := cb.clients[0].ID()

		Expect(cb.sim.RemoveNode(gone)).To(Succeed())
		Expect(cb.sim.Mobility().Moving(gone)).To(BeFalse())
		Expect(cb.sim.Run(5)).To(Succeed())

		for _, p := range *positions {
			Expect(p.Node).NotTo(Equal(gone))
		}
		Expect(cb.sim.InstallApplication(gone, app.MakeEchoServerBuilder().
			Build("late"))).To(MatchError(topology.ErrUnknownNode))
	})

	It("should count events in the registered metrics", func() {
		reg := prometheus.NewRegistry()
		cb := buildCloudBiz(MakeBuilder().WithMetricsRegisterer(reg))

		Expect(cb.sim.Run(15)).To(Succeed())

		Expect(testutil.ToFloat64(cb.sim.collector.EventsDispatched)).
			To(Equal(float64(cb.sim.Engine().Dispatched())))
		Expect(testutil.ToFloat64(
			cb.sim.collector.Messages.WithLabelValues("sent"))).
			To(Equal(1000.0))
	})

	It("should record traces to SQLite", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		cb := buildCloudBiz(MakeBuilder().WithOutputFileName(path))

		Expect(cb.sim.Run(3)).To(Succeed())
		Expect(cb.sim.Terminate()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		type positionRow struct {
			Node int
			Time float64
			X, Y float64
		}
		reader.MapTable(tracing.NodePositionsTable, positionRow{})

		rows, total, err := reader.Query(context.Background(),
			tracing.NodePositionsTable, datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(len(rows)))
		// 5 placements, then one move per walker per second.
		Expect(total).To(Equal(5 + 5*3))
	})

	It("should serve node details while the simulation runs", func() {
		cb := buildCloudBiz(MakeBuilder().WithMonitor())
		router := cb.sim.Monitor().Router()
		nodes := len(cb.sim.Graph().Nodes())

		done := make(chan struct{})
		var (
			wg     sync.WaitGroup
			failed []int
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-done:
					return
				default:
				}

				path := fmt.Sprintf("/api/node/%d", i%nodes)
				if i%5 == 0 {
					path = "/api/progress"
				}

				rec := httptest.NewRecorder()
				router.ServeHTTP(rec,
					httptest.NewRequest(http.MethodGet, path, nil))
				if rec.Code != http.StatusOK {
					failed = append(failed, rec.Code)
				}
			}
		}()

		Expect(cb.sim.Run(15)).To(Succeed())
		close(done)
		wg.Wait()
		Expect(cb.sim.Terminate()).To(Succeed())

		Expect(failed).To(BeEmpty())
		Expect(cb.pingers[0].Stats().Received).To(Equal(100))
	})

	It("should track the running millisecond as in progress", func() {
		cb := buildCloudBiz(MakeBuilder().WithMonitor())
		engine := cb.sim.Engine()
		bar := cb.sim.trackProgress(15)

		mismatches := 0
		engine.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos != timing.HookPosAfterEvent {
				return
			}

			snap := bar.Snapshot()
			if snap.Finished+snap.InProgress != uint64(engine.Now()*1000) {
				mismatches++
			}
		}))

		Expect(engine.Run(15)).To(Succeed())
		Expect(mismatches).To(BeZero())

		snap := bar.Snapshot()
		Expect(snap.InProgress).To(BeZero())
		Expect(snap.Finished).To(BeNumerically("<=", 15000))

		cb.sim.completeProgress(bar)
		Expect(bar.Snapshot().Finished).To(Equal(uint64(15000)))
		Expect(cb.sim.Terminate()).To(Succeed())
	})

	It("should panic on a monitor port without monitor", func() {
		Expect(func() {
			_, _ = MakeBuilder().WithMonitorPort(8080).Build()
		}).To(Panic())
	})
})
