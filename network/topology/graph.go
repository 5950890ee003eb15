package topology

import "fmt"

// Adjacency is a neighbor reachable over one medium.
type Adjacency struct {
	Via  MediumID
	Node NodeID
}

// Graph owns all nodes, links and channels of one simulation.
type Graph struct {
	nodes   []*Node
	media   []Medium
	version uint64
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Version changes every time the graph is modified.
func (g *Graph) Version() uint64 {
	return g.version
}

// AddNode creates a node. An empty name defaults to the node id.
func (g *Graph) AddNode(name string) *Node {
	id := NodeID(len(g.nodes))
	if name == "" {
		name = id.String()
	}

	n := &Node{id: id, name: name}
	g.nodes = append(g.nodes, n)
	g.version++

	return n
}

// AddLink connects a and b with a point-to-point link.
func (g *Graph) AddLink(a, b NodeID, spec LinkSpec) (*Link, error) {
	if a == b {
		return nil, &SelfLoopError{Node: a}
	}

	nodeA, err := g.liveNode(a)
	if err != nil {
		return nil, err
	}

	nodeB, err := g.liveNode(b)
	if err != nil {
		return nil, err
	}

	if spec.MTU <= 0 {
		spec.MTU = DefaultMTU
	}

	l := &Link{id: MediumID(len(g.media)), spec: spec}
	l.ends[0] = nodeA.attach(l.id)
	l.ends[1] = nodeB.attach(l.id)

	g.media = append(g.media, l)
	g.version++

	return l, nil
}

// AddChannel creates a shared channel with the given members, in order.
func (g *Graph) AddChannel(
	members []NodeID,
	spec ChannelSpec,
) (*Channel, error) {
	if len(members) == 0 {
		return nil, ErrEmptyChannel
	}

	seen := make(map[NodeID]bool, len(members))
	nodes := make([]*Node, 0, len(members))
	for _, id := range members {
		if seen[id] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, id)
		}
		seen[id] = true

		n, err := g.liveNode(id)
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, n)
	}

	if spec.MTU <= 0 {
		spec.MTU = DefaultMTU
	}

	c := &Channel{id: MediumID(len(g.media)), spec: spec}
	for _, n := range nodes {
		c.members = append(c.members, n.attach(c.id))
	}

	g.media = append(g.media, c)
	g.version++

	return c, nil
}

// SetCoordinator marks n as the coordinator of the channel. Calling it again
// replaces the previous coordinator.
func (g *Graph) SetCoordinator(channel MediumID, n NodeID) error {
	c, err := g.Channel(channel)
	if err != nil {
		return err
	}

	if !c.hasMember(n) {
		return fmt.Errorf("%w: %s on %s", ErrNotMember, n, channel)
	}

	coordinator := n
	c.coordinator = &coordinator
	g.version++

	return nil
}

// RemoveNode tears a node down. Its id is never reused; links and channels
// stop reaching it.
func (g *Graph) RemoveNode(id NodeID) error {
	n, err := g.liveNode(id)
	if err != nil {
		return err
	}

	n.lock.Lock()
	n.removed = true
	n.lock.Unlock()

	g.version++

	return nil
}

// Node returns the node with the given id, removed nodes included.
func (g *Graph) Node(id NodeID) (*Node, error) {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, &UnknownNodeError{Node: id}
	}

	return g.nodes[id], nil
}

func (g *Graph) liveNode(id NodeID) (*Node, error) {
	n, err := g.Node(id)
	if err != nil {
		return nil, err
	}

	if n.Removed() {
		return nil, &UnknownNodeError{Node: id}
	}

	return n, nil
}

// Nodes returns the nodes that have not been removed, in id order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.Removed() {
			nodes = append(nodes, n)
		}
	}

	return nodes
}

// Medium returns the link or channel with the given id.
func (g *Graph) Medium(id MediumID) (Medium, error) {
	if id < 0 || int(id) >= len(g.media) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMedium, id)
	}

	return g.media[id], nil
}

// Media returns all links and channels in creation order.
func (g *Graph) Media() []Medium {
	media := make([]Medium, len(g.media))
	copy(media, g.media)

	return media
}

// Link returns the point-to-point link with the given id.
func (g *Graph) Link(id MediumID) (*Link, error) {
	m, err := g.Medium(id)
	if err != nil {
		return nil, err
	}

	l, ok := m.(*Link)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a channel", ErrUnknownMedium, id)
	}

	return l, nil
}

// Channel returns the shared channel with the given id.
func (g *Graph) Channel(id MediumID) (*Channel, error) {
	m, err := g.Medium(id)
	if err != nil {
		return nil, err
	}

	c, ok := m.(*Channel)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a link", ErrUnknownMedium, id)
	}

	return c, nil
}

// Neighbors lists the live nodes directly reachable from id. The order
// follows the node's interface order, then the member order of each medium.
func (g *Graph) Neighbors(id NodeID) []Adjacency {
	n, err := g.liveNode(id)
	if err != nil {
		return nil
	}

	var adj []Adjacency
	for _, iface := range n.Interfaces() {
		for _, end := range g.media[iface.Medium].Endpoints() {
			if end.Node == id || g.nodes[end.Node].Removed() {
				continue
			}

			adj = append(adj, Adjacency{Via: iface.Medium, Node: end.Node})
		}
	}

	return adj
}
