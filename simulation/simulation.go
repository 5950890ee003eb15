// Package simulation composes the engine, the topology, the network and the
// observers into one simulation that a scenario can be built on.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/netip"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/monitoring"
	"github.com/sarchlab/netsim/network/addressing"
	"github.com/sarchlab/netsim/network/app"
	"github.com/sarchlab/netsim/network/medium"
	"github.com/sarchlab/netsim/network/mobility"
	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/network/routing"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/id"
	"github.com/sarchlab/netsim/sim/timing"
	"github.com/sarchlab/netsim/tracing"
)

const tracerName = "github.com/sarchlab/netsim/simulation"

// A Simulation owns everything one run needs. Two simulations share nothing.
type Simulation struct {
	id     string
	seed   int64
	logger *slog.Logger

	engine    *timing.SerialEngine
	rng       *rand.Rand
	ids       id.Generator
	graph     *topology.Graph
	allocator *addressing.Allocator
	network   *netstack.Network
	mobility  *mobility.Engine
	apps      []app.Application

	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	collector    *monitoring.Collector
	monitor      *monitoring.Monitor
	monitorURL   string

	terminated bool
}

// ID returns the run id. Recordings are named after it.
func (s *Simulation) ID() string {
	return s.id
}

// Seed returns the seed of the random number generator.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// Engine returns the engine that drives the simulation.
func (s *Simulation) Engine() *timing.SerialEngine {
	return s.engine
}

// Graph returns the topology.
func (s *Simulation) Graph() *topology.Graph {
	return s.graph
}

// Network returns the node stacks and media.
func (s *Simulation) Network() *netstack.Network {
	return s.network
}

// Mobility returns the mobility engine.
func (s *Simulation) Mobility() *mobility.Engine {
	return s.mobility
}

// Applications returns the installed applications in install order.
func (s *Simulation) Applications() []app.Application {
	return s.apps
}

// DataRecorder returns the recorder, or nil when recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns where the monitor listens, or "".
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// AddNode adds a node.
func (s *Simulation) AddNode(name string) *topology.Node {
	return s.graph.AddNode(name)
}

// AddLink connects two nodes with a point-to-point link.
func (s *Simulation) AddLink(
	a, b topology.NodeID,
	spec topology.LinkSpec,
) (*topology.Link, error) {
	l, err := s.graph.AddLink(a, b, spec)
	if err != nil {
		return nil, err
	}

	s.network.AddMedium(medium.NewPointToPoint(l, s.engine, s.network))

	return l, nil
}

// AddChannel creates a shared channel. A nil policy delivers to every
// member without delay.
func (s *Simulation) AddChannel(
	members []topology.NodeID,
	spec topology.ChannelSpec,
	policy medium.ContentionPolicy,
) (*topology.Channel, error) {
	c, err := s.graph.AddChannel(members, spec)
	if err != nil {
		return nil, err
	}

	if policy == nil {
		policy = medium.FixedDelayBroadcast{}
	}

	s.network.AddMedium(medium.NewShared(c, policy, s.engine, s.network))

	return c, nil
}

// SetCoordinator marks the coordinator of a channel.
func (s *Simulation) SetCoordinator(
	channel topology.MediumID,
	n topology.NodeID,
) error {
	return s.graph.SetCoordinator(channel, n)
}

// AssignSubnet numbers the endpoints of a medium from base.
func (s *Simulation) AssignSubnet(
	m topology.MediumID,
	base, mask netip.Addr,
) (*addressing.Subnet, error) {
	med, err := s.graph.Medium(m)
	if err != nil {
		return nil, err
	}

	return s.allocator.AssignSubnet(med, base, mask)
}

// InstallMobility places the nodes with model and keeps moving them if the
// model moves.
func (s *Simulation) InstallMobility(
	nodes []topology.NodeID,
	model mobility.Model,
) error {
	targets := make([]*topology.Node, 0, len(nodes))
	for _, nid := range nodes {
		n, err := s.liveNode(nid)
		if err != nil {
			return err
		}

		targets = append(targets, n)
	}

	return s.mobility.Install(targets, model)
}

// InstallApplication runs a on node n.
func (s *Simulation) InstallApplication(
	n topology.NodeID,
	a app.Application,
) error {
	node, err := s.liveNode(n)
	if err != nil {
		return err
	}

	if err := a.Install(s.network.Stack(node)); err != nil {
		return err
	}

	s.apps = append(s.apps, a)

	return nil
}

// PopulateRoutingTables computes the shortest-hop routes of every node.
// Without it, routes are computed on the first send.
func (s *Simulation) PopulateRoutingTables() *routing.Tables {
	return s.network.PopulateRoutes()
}

// RemoveNode tears a node down and withdraws its pending moves.
func (s *Simulation) RemoveNode(n topology.NodeID) error {
	if err := s.graph.RemoveNode(n); err != nil {
		return err
	}

	s.mobility.Cancel(n)

	return nil
}

// NodeByAddress returns the node that holds addr.
func (s *Simulation) NodeByAddress(addr netip.Addr) (*topology.Node, bool) {
	b, ok := s.allocator.Lookup(addr)
	if !ok {
		return nil, false
	}

	n, err := s.graph.Node(b.Node)
	if err != nil {
		return nil, false
	}

	return n, true
}

// OnPositionUpdate calls f on every placement and move.
func (s *Simulation) OnPositionUpdate(
	f func(n topology.NodeID, t timing.VTimeInSec, pos topology.Position),
) {
	s.mobility.AcceptHook(tracing.NewPositionTracer(
		func(u mobility.PositionUpdate) {
			f(u.Node, u.Time, u.Position)
		}))
}

// OnEventDispatched calls f before every dispatched event.
func (s *Simulation) OnEventDispatched(
	f func(eventID uint64, t timing.VTimeInSec, what string),
) {
	s.engine.AcceptHook(tracing.NewEventTimelineTracer(
		func(r tracing.EventRecord) {
			f(r.ID, r.Time, r.What)
		}))
}

// Run dispatches events until the queue is empty or the next event is later
// than stopTime. A simulation runs once.
func (s *Simulation) Run(stopTime timing.VTimeInSec) error {
	_, span := otel.Tracer(tracerName).Start(context.Background(),
		"simulation.Run",
		trace.WithAttributes(
			attribute.String("netsim.run_id", s.id),
			attribute.Int64("netsim.seed", s.seed),
			attribute.Float64("netsim.stop_time", stopTime),
		))
	defer span.End()

	bar := s.trackProgress(stopTime)

	s.logger.Info("simulation started",
		"run", s.id,
		"stop", stopTime,
		"nodes", len(s.graph.Nodes()),
		"media", len(s.graph.Media()))

	err := s.engine.Run(stopTime)

	s.completeProgress(bar)

	span.SetAttributes(
		attribute.Int64("netsim.dispatched", int64(s.engine.Dispatched())),
		attribute.Float64("netsim.end_time", s.engine.Now()),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("simulation: %w", err)
	}

	s.logger.Info("simulation finished",
		"run", s.id,
		"now", s.engine.Now(),
		"dispatched", s.engine.Dispatched())

	return nil
}

func (s *Simulation) trackProgress(
	stopTime timing.VTimeInSec,
) *monitoring.ProgressBar {
	if s.monitor == nil || stopTime >= timing.Forever {
		return nil
	}

	bar := s.monitor.CreateProgressBar("simulated ms", uint64(stopTime*1000))

	// The millisecond an event runs in is in progress until the event
	// returns.
	var claimed uint64
	s.engine.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
		switch ctx.Pos {
		case timing.HookPosBeforeEvent:
			ms := uint64(s.engine.Now() * 1000)
			if ms > bar.Total {
				ms = bar.Total
			}

			if ms > claimed {
				bar.IncrementInProgress(ms - claimed)
				claimed = ms
			}
		case timing.HookPosAfterEvent:
			bar.MoveInProgressToFinished(claimed)
		}
	}))

	return bar
}

func (s *Simulation) completeProgress(bar *monitoring.ProgressBar) {
	if bar == nil {
		return
	}

	done := bar.Snapshot().Finished
	if done < bar.Total {
		bar.IncrementFinished(bar.Total - done)
	}

	s.monitor.CompleteProgressBar(bar)
}

// Now returns the simulated time.
func (s *Simulation) Now() timing.VTimeInSec {
	return s.engine.Now()
}

// Stop makes Run return after the current event.
func (s *Simulation) Stop() {
	s.engine.Stop()
}

// Terminate flushes the recording and stops the monitor.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	if s.monitor != nil {
		if err := s.monitor.StopServer(context.Background()); err != nil {
			s.logger.Warn("stopping monitor failed", "err", err)
		}
	}

	var err error
	if s.dbTracer != nil {
		err = s.dbTracer.Terminate()
	}

	if cerr := s.closeRecorder(); err == nil {
		err = cerr
	}

	return err
}

func (s *Simulation) closeRecorder() error {
	if s.dataRecorder == nil {
		return nil
	}

	return s.dataRecorder.Close()
}

func (s *Simulation) liveNode(n topology.NodeID) (*topology.Node, error) {
	node, err := s.graph.Node(n)
	if err != nil {
		return nil, err
	}

	if node.Removed() {
		return nil, &topology.UnknownNodeError{Node: n}
	}

	return node, nil
}
