package scenario

import (
	"sort"

	"github.com/sarchlab/netsim/network/netstack"
	"github.com/sarchlab/netsim/sim/timing"
)

// AppReport sums up one application.
type AppReport struct {
	Name     string
	Kind     string
	Sent     uint64
	Received uint64
	Dropped  uint64

	// MeanRTT is zero for servers and for clients without replies.
	MeanRTT timing.VTimeInSec
}

// Report sums up a finished run.
type Report struct {
	Name       string
	RunID      string
	Seed       int64
	EndTime    timing.VTimeInSec
	Dispatched uint64
	Nodes      int
	Forwarded  uint64
	Drops      map[netstack.DropReason]uint64
	Apps       []AppReport
}

// DropReasons returns the reasons seen, sorted.
func (r Report) DropReasons() []netstack.DropReason {
	reasons := make([]netstack.DropReason, 0, len(r.Drops))
	for reason := range r.Drops {
		reasons = append(reasons, reason)
	}

	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	return reasons
}

// Report collects the counters of the simulation and its applications.
func (s *Scenario) Report() Report {
	r := Report{
		Name:       s.Config.Name,
		RunID:      s.Sim.ID(),
		Seed:       s.Sim.Seed(),
		EndTime:    s.Sim.Now(),
		Dispatched: s.Sim.Engine().Dispatched(),
		Nodes:      len(s.Sim.Graph().Nodes()),
		Drops:      make(map[netstack.DropReason]uint64),
	}

	for _, st := range s.Sim.Network().Stacks() {
		stats := st.Stats()
		r.Forwarded += stats.Forwarded
		for reason, n := range stats.Dropped {
			r.Drops[reason] += n
		}
	}

	for _, srv := range s.Servers {
		st := srv.Stats()
		r.Apps = append(r.Apps, AppReport{
			Name:     srv.Name(),
			Kind:     "echo_server",
			Sent:     st.Replied,
			Received: st.Received,
			Dropped:  st.Dropped,
		})
	}

	for _, c := range s.Clients {
		st := c.Stats()
		rep := AppReport{
			Name:     c.Name(),
			Kind:     "echo_client",
			Sent:     uint64(st.Sent),
			Received: uint64(st.Received),
		}

		var total timing.VTimeInSec
		for _, rtt := range st.RoundTrips {
			total += rtt
		}
		if len(st.RoundTrips) > 0 {
			rep.MeanRTT = total / timing.VTimeInSec(len(st.RoundTrips))
		}

		r.Apps = append(r.Apps, rep)
	}

	return r
}
