package scenario

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/sarchlab/netsim/network/app"
	"github.com/sarchlab/netsim/network/medium"
	"github.com/sarchlab/netsim/network/mobility"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
	"github.com/sarchlab/netsim/simulation"
)

var (
	// ErrUnknownName is returned for references to undeclared nodes.
	ErrUnknownName = errors.New("scenario: unknown node name")

	// ErrNotSingle is returned when a group is used where one node is
	// expected.
	ErrNotSingle = errors.New("scenario: name refers to more than one node")

	// ErrDuplicateName is returned when two node groups share a name.
	ErrDuplicateName = errors.New("scenario: node name declared twice")

	// ErrBadAddress is returned for malformed IPv4 addresses.
	ErrBadAddress = errors.New("scenario: malformed IPv4 address")

	// ErrBadModel is returned when a mobility model lacks its parameters.
	ErrBadModel = errors.New("scenario: incomplete mobility model")
)

// Scenario is a built scenario, ready to run.
type Scenario struct {
	Config  *Config
	Sim     *simulation.Simulation
	Servers []*app.EchoServer
	Clients []*app.EchoClient

	names map[string][]topology.NodeID
}

// Build creates the simulation from b and populates it. The seed of the
// configuration, when set, overrides the seed of b.
func (c *Config) Build(b simulation.Builder) (*Scenario, error) {
	if c.Seed != 0 {
		b = b.WithSeed(c.Seed)
	}

	sim, err := b.Build()
	if err != nil {
		return nil, err
	}

	s := &Scenario{
		Config: c,
		Sim:    sim,
		names:  make(map[string][]topology.NodeID),
	}

	steps := []func() error{
		s.addNodes,
		s.addLinks,
		s.addChannels,
		s.installMobility,
		s.populateRoutes,
		s.installApplications,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = sim.Terminate()
			return nil, err
		}
	}

	return s, nil
}

// Run runs the simulation until the stop time of the configuration.
func (s *Scenario) Run() error {
	return s.Sim.Run(s.Config.StopTime)
}

// Nodes resolves a node or group name.
func (s *Scenario) Nodes(name string) ([]topology.NodeID, bool) {
	ids, ok := s.names[name]
	return ids, ok
}

func (s *Scenario) addNodes() error {
	for _, g := range s.Config.Nodes {
		if _, taken := s.names[g.Name]; taken {
			return fmt.Errorf("%w: %q", ErrDuplicateName, g.Name)
		}

		if g.Count == 0 {
			s.names[g.Name] = []topology.NodeID{s.Sim.AddNode(g.Name).ID()}
			continue
		}

		for i := 0; i < g.Count; i++ {
			name := g.Name + strconv.Itoa(i)
			if _, taken := s.names[name]; taken {
				return fmt.Errorf("%w: %q", ErrDuplicateName, name)
			}

			n := s.Sim.AddNode(name)
			s.names[name] = []topology.NodeID{n.ID()}
			s.names[g.Name] = append(s.names[g.Name], n.ID())
		}
	}

	return nil
}

func (s *Scenario) resolve(names []string) ([]topology.NodeID, error) {
	var ids []topology.NodeID
	for _, name := range names {
		group, ok := s.names[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
		}

		ids = append(ids, group...)
	}

	return ids, nil
}

func (s *Scenario) single(name string) (topology.NodeID, error) {
	ids, err := s.resolve([]string{name})
	if err != nil {
		return 0, err
	}

	if len(ids) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrNotSingle, name)
	}

	return ids[0], nil
}

func (s *Scenario) addLinks() error {
	for _, l := range s.Config.Links {
		a, err := s.single(l.A)
		if err != nil {
			return err
		}

		b, err := s.single(l.B)
		if err != nil {
			return err
		}

		link, err := s.Sim.AddLink(a, b, topology.LinkSpec{
			Delay:              l.Delay,
			DataRate:           l.DataRate,
			MTU:                l.MTU,
			SerializationDelay: l.SerializationDelay,
		})
		if err != nil {
			return fmt.Errorf("scenario: link %s-%s: %w", l.A, l.B, err)
		}

		if err := s.assign(link.ID(), l.Subnet); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scenario) addChannels() error {
	for _, c := range s.Config.Channels {
		members, err := s.resolve(c.Members)
		if err != nil {
			return err
		}

		var policy medium.ContentionPolicy = medium.FixedDelayBroadcast{
			Delay: c.Delay,
		}
		if c.DataRate > 0 {
			policy = &medium.SerializedBroadcast{
				Delay:    c.Delay,
				DataRate: c.DataRate,
			}
		}

		ch, err := s.Sim.AddChannel(members,
			topology.ChannelSpec{MTU: c.MTU}, policy)
		if err != nil {
			return fmt.Errorf("scenario: channel %s: %w", c.Name, err)
		}

		if c.Coordinator != "" {
			coordinator, err := s.single(c.Coordinator)
			if err != nil {
				return err
			}

			if err := s.Sim.SetCoordinator(ch.ID(), coordinator); err != nil {
				return fmt.Errorf("scenario: channel %s: %w", c.Name, err)
			}
		}

		if err := s.assign(ch.ID(), c.Subnet); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scenario) assign(m topology.MediumID, subnet *Subnet) error {
	if subnet == nil {
		return nil
	}

	base, err := parseIPv4(subnet.Base)
	if err != nil {
		return err
	}

	mask, err := parseIPv4(subnet.Mask)
	if err != nil {
		return err
	}

	if _, err := s.Sim.AssignSubnet(m, base, mask); err != nil {
		return fmt.Errorf("scenario: subnet %s: %w", subnet.Base, err)
	}

	return nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}

	return addr, nil
}

func (s *Scenario) installMobility() error {
	for _, m := range s.Config.Mobility {
		nodes, err := s.resolve(m.Nodes)
		if err != nil {
			return err
		}

		model, err := modelOf(m)
		if err != nil {
			return err
		}

		if err := s.Sim.InstallMobility(nodes, model); err != nil {
			return fmt.Errorf("scenario: mobility %s: %w", m.Model, err)
		}
	}

	return nil
}

func modelOf(m Mobility) (mobility.Model, error) {
	var placement mobility.Model
	switch {
	case m.Grid != nil:
		placement = gridOf(*m.Grid)
	case len(m.Positions) > 0:
		placement = stationaryOf(m.Positions)
	}

	switch m.Model {
	case "stationary":
		return stationaryOf(m.Positions), nil
	case "grid":
		if m.Grid == nil {
			return nil, fmt.Errorf("%w: grid needs a grid section", ErrBadModel)
		}

		return placement, nil
	case "random_walk":
		if m.Bounds == nil || m.Interval <= 0 || m.StepSize <= 0 {
			return nil, fmt.Errorf(
				"%w: random_walk needs bounds, interval and step_size",
				ErrBadModel)
		}

		return mobility.RandomWalkBounded{
			Bounds: mobility.Rect{
				MinX: m.Bounds.MinX, MaxX: m.Bounds.MaxX,
				MinY: m.Bounds.MinY, MaxY: m.Bounds.MaxY,
			},
			Interval:  m.Interval,
			StepSize:  m.StepSize,
			Placement: placement,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown model %q", ErrBadModel, m.Model)
}

func gridOf(g Grid) mobility.Grid {
	layout := mobility.RowFirst
	if g.Layout == "column_first" {
		layout = mobility.ColumnFirst
	}

	return mobility.Grid{
		MinX:      g.MinX,
		MinY:      g.MinY,
		DeltaX:    g.DeltaX,
		DeltaY:    g.DeltaY,
		GridWidth: g.Width,
		Layout:    layout,
	}
}

func stationaryOf(ps []Position) mobility.Stationary {
	at := make([]topology.Position, 0, len(ps))
	for _, p := range ps {
		at = append(at, topology.Position{X: p.X, Y: p.Y})
	}

	return mobility.Stationary{At: at}
}

func (s *Scenario) populateRoutes() error {
	if s.Config.PopulateRoutes {
		s.Sim.PopulateRoutingTables()
	}

	return nil
}

func (s *Scenario) installApplications() error {
	for _, a := range s.Config.Applications {
		nodes, err := s.resolve(a.Nodes)
		if err != nil {
			return err
		}

		for _, n := range nodes {
			if err := s.installApplication(a, n); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Scenario) installApplication(a Application, n topology.NodeID) error {
	node, err := s.Sim.Graph().Node(n)
	if err != nil {
		return err
	}

	stop := timing.Forever
	if a.Stop > 0 {
		stop = a.Stop
	}

	port := a.Port
	if port == 0 {
		port = 9
	}

	var application app.Application
	switch a.Type {
	case "echo_server":
		b := app.MakeEchoServerBuilder().
			WithPort(port).
			WithWindow(a.Start, stop)
		if a.DropOutsideWindow != nil {
			b = b.WithDropOutsideWindow(*a.DropOutsideWindow)
		}

		server := b.Build(node.Name() + ".echo_server")
		s.Servers = append(s.Servers, server)
		application = server
	case "echo_client":
		dst, err := s.server(a.Server)
		if err != nil {
			return err
		}

		b := app.MakeEchoClientBuilder().
			WithDestination(dst, port).
			WithWindow(a.Start, stop)
		if a.MaxPackets > 0 {
			b = b.WithMaxPackets(a.MaxPackets)
		}
		if a.Interval > 0 {
			b = b.WithInterval(a.Interval)
		}
		if a.PacketSize > 0 {
			b = b.WithPacketSize(a.PacketSize)
		}

		client := b.Build(node.Name() + ".echo_client")
		s.Clients = append(s.Clients, client)
		application = client
	default:
		return fmt.Errorf("scenario: unknown application %q", a.Type)
	}

	if err := s.Sim.InstallApplication(n, application); err != nil {
		return fmt.Errorf("scenario: installing %s: %w", application.Name(), err)
	}

	return nil
}

func (s *Scenario) server(ref string) (topology.NodeID, error) {
	if addr, err := netip.ParseAddr(ref); err == nil {
		n, ok := s.Sim.NodeByAddress(addr)
		if !ok {
			return 0, fmt.Errorf("%w: no node holds %s", ErrUnknownName, addr)
		}

		return n.ID(), nil
	}

	return s.single(ref)
}
