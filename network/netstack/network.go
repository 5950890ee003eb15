// Package netstack is the per-node protocol stack: it binds applications to
// ports, routes what they send and forwards what is passing through.
package netstack

import (
	"log/slog"
	"sync"

	"github.com/sarchlab/netsim/network/medium"
	"github.com/sarchlab/netsim/network/routing"
	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/id"
	"github.com/sarchlab/netsim/sim/timing"
)

// Network owns the stacks of all nodes and the models of all media. Hooks
// registered on the network observe every stack.
type Network struct {
	hooking.HookableBase

	graph  *topology.Graph
	engine timing.EventScheduler
	ids    id.Generator
	logger *slog.Logger

	media  map[topology.MediumID]medium.Medium
	tables *routing.Tables

	stacksLock sync.RWMutex
	stacks     map[topology.NodeID]*Stack
}

// NewNetwork creates a network over the nodes of g.
func NewNetwork(
	g *topology.Graph,
	engine timing.EventScheduler,
	ids id.Generator,
	logger *slog.Logger,
) *Network {
	if logger == nil {
		logger = slog.Default()
	}

	return &Network{
		graph:  g,
		engine: engine,
		ids:    ids,
		logger: logger,
		media:  make(map[topology.MediumID]medium.Medium),
		stacks: make(map[topology.NodeID]*Stack),
	}
}

// AddMedium registers the model of a link or channel.
func (n *Network) AddMedium(m medium.Medium) {
	n.media[m.ID()] = m
}

// Medium returns the model of a link or channel.
func (n *Network) Medium(id topology.MediumID) (medium.Medium, bool) {
	m, ok := n.media[id]
	return m, ok
}

// Stack returns the stack of a node, creating it on first use.
func (n *Network) Stack(node *topology.Node) *Stack {
	n.stacksLock.RLock()
	s, ok := n.stacks[node.ID()]
	n.stacksLock.RUnlock()

	if ok {
		return s
	}

	n.stacksLock.Lock()
	defer n.stacksLock.Unlock()

	s, ok = n.stacks[node.ID()]
	if !ok {
		s = newStack(n, node)
		n.stacks[node.ID()] = s
	}

	return s
}

// LookupStack returns the stack of a node without creating it.
func (n *Network) LookupStack(id topology.NodeID) (*Stack, bool) {
	n.stacksLock.RLock()
	defer n.stacksLock.RUnlock()

	s, ok := n.stacks[id]

	return s, ok
}

// Stacks returns a copy of the stacks created so far, keyed by node. It is
// safe to call while the simulation runs.
func (n *Network) Stacks() map[topology.NodeID]*Stack {
	n.stacksLock.RLock()
	defer n.stacksLock.RUnlock()

	stacks := make(map[topology.NodeID]*Stack, len(n.stacks))
	for id, s := range n.stacks {
		stacks[id] = s
	}

	return stacks
}

// ReceiverOf implements medium.Receivers. Removed nodes have no receiver.
func (n *Network) ReceiverOf(id topology.NodeID) (timing.Handler, bool) {
	node, err := n.graph.Node(id)
	if err != nil || node.Removed() {
		return nil, false
	}

	return n.Stack(node), true
}

// PopulateRoutes recomputes every routing table.
func (n *Network) PopulateRoutes() *routing.Tables {
	n.tables = routing.Populate(n.graph)
	return n.tables
}

// Routes returns the current routing tables, recomputing them if the
// topology changed since they were built.
func (n *Network) Routes() *routing.Tables {
	if n.tables.Stale(n.graph) {
		n.logger.Debug("routing tables stale, repopulating",
			"version", n.graph.Version())
		n.PopulateRoutes()
	}

	return n.tables
}

func (n *Network) route(
	src, dst topology.NodeID,
) (routing.Route, bool) {
	t, ok := n.Routes().Of(src)
	if !ok {
		return routing.Route{}, false
	}

	return t.Lookup(dst)
}
