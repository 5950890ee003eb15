package monitoring

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
)

// Collector is a hook that turns engine and network activity into
// Prometheus metrics. Register it on the engine and on the network.
type Collector struct {
	EventsDispatched prometheus.Counter
	SimulatedTime    prometheus.Gauge
	Messages         *prometheus.CounterVec
	Drops            *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	events := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsim_events_dispatched_total",
		Help: "Number of events dispatched by the engine.",
	})
	simTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netsim_simulated_time_seconds",
		Help: "Simulated time of the last dispatched event.",
	})
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsim_messages_total",
		Help: "Messages seen by the node stacks, labeled by action.",
	}, []string{"action"})
	drops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsim_messages_dropped_total",
		Help: "Messages lost, labeled by reason.",
	}, []string{"reason"})

	for _, c := range []prometheus.Collector{events, simTime, messages, drops} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("monitoring: registering metrics: %w", err)
		}
	}

	return &Collector{
		EventsDispatched: events,
		SimulatedTime:    simTime,
		Messages:         messages,
		Drops:            drops,
	}, nil
}

// Func implements hooking.Hook.
func (c *Collector) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosAfterEvent:
		c.EventsDispatched.Inc()
		if evt, ok := ctx.Item.(*timing.ScheduledEvent); ok {
			c.SimulatedTime.Set(evt.Time())
		}
	case netstack.HookPosSend:
		c.Messages.WithLabelValues("sent").Inc()
	case netstack.HookPosDeliver:
		c.Messages.WithLabelValues("delivered").Inc()
	case netstack.HookPosForward:
		c.Messages.WithLabelValues("forwarded").Inc()
	case netstack.HookPosDrop:
		c.Messages.WithLabelValues("dropped").Inc()
		if reason, ok := ctx.Detail.(netstack.DropReason); ok {
			c.Drops.WithLabelValues(string(reason)).Inc()
		}
	}
}
