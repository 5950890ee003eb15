// Package routing fills static routing tables from the topology, the way a
// global routing helper does: shortest hop count, ties broken by interface
// order.
package routing

import (
	"github.com/sarchlab/netsim/network/topology"
)

// Route tells how to reach a destination: which medium to put the message on
// and which neighbor should pick it up.
type Route struct {
	Medium  topology.MediumID
	NextHop topology.NodeID
	Hops    int
}

// Table is the routing table of one node.
type Table struct {
	Owner  topology.NodeID
	routes map[topology.NodeID]Route
}

// Lookup returns the route towards dst.
func (t *Table) Lookup(dst topology.NodeID) (Route, bool) {
	r, ok := t.routes[dst]
	return r, ok
}

// Len returns the number of reachable destinations.
func (t *Table) Len() int {
	return len(t.routes)
}

// Tables holds the routing table of every node, stamped with the graph
// version it was computed from.
type Tables struct {
	Version uint64
	tables  map[topology.NodeID]*Table
}

// Of returns the table of node n.
func (ts *Tables) Of(n topology.NodeID) (*Table, bool) {
	t, ok := ts.tables[n]
	return t, ok
}

// Stale tells if g changed since the tables were computed.
func (ts *Tables) Stale(g *topology.Graph) bool {
	return ts == nil || ts.Version != g.Version()
}

// Populate computes the tables of every live node of g.
func Populate(g *topology.Graph) *Tables {
	ts := &Tables{
		Version: g.Version(),
		tables:  make(map[topology.NodeID]*Table),
	}

	for _, n := range g.Nodes() {
		ts.tables[n.ID()] = search(g, n.ID())
	}

	return ts
}

// search runs a breadth first search from src. The first hop of every
// destination is inherited from the neighbor it was discovered through.
func search(g *topology.Graph, src topology.NodeID) *Table {
	t := &Table{Owner: src, routes: make(map[topology.NodeID]Route)}
	visited := map[topology.NodeID]bool{src: true}

	queue := []topology.NodeID{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, adj := range g.Neighbors(cur) {
			if visited[adj.Node] {
				continue
			}
			visited[adj.Node] = true

			route := Route{Medium: adj.Via, NextHop: adj.Node, Hops: 1}
			if cur != src {
				route = t.routes[cur]
				route.Hops++
			}

			t.routes[adj.Node] = route
			queue = append(queue, adj.Node)
		}
	}

	return t
}
