package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/monitoring"
	"github.com/sarchlab/netsim/network/addressing"
	"github.com/sarchlab/netsim/network/mobility"
	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/id"
	"github.com/sarchlab/netsim/sim/timing"
	"github.com/sarchlab/netsim/tracing"
)

// DefaultSeed seeds the random number generator when no seed is given.
const DefaultSeed int64 = 1

// Builder can be used to build a simulation.
type Builder struct {
	seed           int64
	logger         *slog.Logger
	recording      bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
	registerer     prometheus.Registerer
}

// MakeBuilder creates a new builder. Recording and monitoring are off.
func MakeBuilder() Builder {
	return Builder{
		seed: DefaultSeed,
	}
}

// WithSeed sets the seed of the random number generator.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithRecording stores the traces in a SQLite database.
func (b Builder) WithRecording() Builder {
	b.recording = true
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
// It implies WithRecording.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.recording = true
	b.outputFileName = filename

	return b
}

// WithMonitor starts the monitoring server when the simulation is built.
func (b Builder) WithMonitor() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithMetricsRegisterer registers the Prometheus metrics of the simulation
// against reg.
func (b Builder) WithMetricsRegisterer(reg prometheus.Registerer) Builder {
	b.registerer = reg
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Simulation{
		id:     xid.New().String(),
		seed:   b.seed,
		logger: logger,
		rng:    rand.New(rand.NewSource(b.seed)),
		ids:    id.NewGenerator(),
		graph:  topology.NewGraph(),
	}

	s.engine = timing.NewSerialEngine().WithLogger(logger)
	s.allocator = addressing.NewAllocator(s.graph)
	s.network = netstack.NewNetwork(s.graph, s.engine, s.ids, logger)
	s.mobility = mobility.NewEngine(s.engine, s.rng)

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		s.engine.AcceptHook(timing.NewEventLogger(logger, slog.LevelDebug))
	}

	if err := b.buildRecording(s); err != nil {
		return nil, err
	}

	reg := b.registerer
	if reg == nil && b.monitorOn {
		reg = prometheus.NewRegistry()
	}

	if reg != nil {
		collector, err := monitoring.NewCollector(reg)
		if err != nil {
			_ = s.closeRecorder()
			return nil, err
		}

		s.collector = collector
		s.engine.AcceptHook(collector)
		s.network.AcceptHook(collector)
	}

	if b.monitorOn {
		if err := b.buildMonitor(s, reg); err != nil {
			_ = s.closeRecorder()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildRecording(s *Simulation) error {
	if !b.recording {
		return nil
	}

	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "netsim_" + s.id
	}

	recorder, err := datarecording.New(outputPath)
	if err != nil {
		return fmt.Errorf("simulation: opening recorder: %w", err)
	}

	tracer, err := tracing.NewDBTracer(s.engine, recorder)
	if err != nil {
		_ = recorder.Close()
		return fmt.Errorf("simulation: creating trace tables: %w", err)
	}

	s.dataRecorder = recorder
	s.dbTracer = tracer
	s.engine.AcceptHook(tracer)
	s.mobility.AcceptHook(tracer)
	s.network.AcceptHook(tracer)

	return nil
}

func (b Builder) buildMonitor(s *Simulation, reg prometheus.Registerer) error {
	s.monitor = monitoring.NewMonitor().WithLogger(s.logger)
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		s.monitor.WithGatherer(g)
	}

	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterNetwork(s.graph, s.network)

	url, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	s.monitorURL = url

	return nil
}
