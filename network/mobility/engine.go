package mobility

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/hooking"
	"github.com/sarchlab/netsim/sim/timing"
)

// ErrInvalidInterval is returned when a moving model has no positive step
// interval.
var ErrInvalidInterval = errors.New("mobility: step interval must be positive")

// HookPosPositionUpdate is triggered on every placement and every move. The
// hook item is a PositionUpdate.
var HookPosPositionUpdate = &hooking.HookPos{Name: "PositionUpdate"}

// PositionUpdate reports where a node is at a given time.
type PositionUpdate struct {
	Node     topology.NodeID
	Time     timing.VTimeInSec
	Position topology.Position
}

// TickEvent moves one node.
type TickEvent struct {
	timing.EventBase

	Node topology.NodeID
}

// Describe implements timing.Describer.
func (e *TickEvent) Describe() string {
	return fmt.Sprintf("mobility tick %s", e.Node)
}

type trajectory struct {
	node    *topology.Node
	mover   Mover
	pending *timing.ScheduledEvent
}

// Engine drives the models installed on nodes.
type Engine struct {
	hooking.HookableBase

	scheduler    timing.EventScheduler
	rng          *rand.Rand
	trajectories map[topology.NodeID]*trajectory
}

// NewEngine creates a mobility engine that draws directions from rng.
func NewEngine(scheduler timing.EventScheduler, rng *rand.Rand) *Engine {
	return &Engine{
		scheduler:    scheduler,
		rng:          rng,
		trajectories: make(map[topology.NodeID]*trajectory),
	}
}

// Name returns "mobility".
func (e *Engine) Name() string {
	return "mobility"
}

// Install places the nodes with model and, if the model moves, schedules
// their first tick one interval from now. Installing on a node again
// replaces its previous model.
func (e *Engine) Install(nodes []*topology.Node, model Model) error {
	mover, moving := model.(Mover)
	if moving && mover.StepInterval() <= 0 {
		return ErrInvalidInterval
	}

	now := e.scheduler.Now()
	for i, n := range nodes {
		e.Cancel(n.ID())

		pos := model.Place(i, n.Position())
		n.SetPosition(pos)
		e.report(n.ID(), now, pos)

		if !moving {
			continue
		}

		t := &trajectory{node: n, mover: mover}
		e.trajectories[n.ID()] = t

		if err := e.scheduleTick(t, now); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) scheduleTick(t *trajectory, now timing.VTimeInSec) error {
	evt := &TickEvent{
		EventBase: timing.NewEventBase(now+t.mover.StepInterval(), e),
		Node:      t.node.ID(),
	}

	pending, err := e.scheduler.Schedule(evt)
	if err != nil {
		return fmt.Errorf("mobility: scheduling tick of %s: %w", t.node.ID(), err)
	}

	t.pending = pending

	return nil
}

// Handle moves the node of a TickEvent and schedules its next tick.
func (e *Engine) Handle(evt timing.Event) error {
	tick, ok := evt.(*TickEvent)
	if !ok {
		return fmt.Errorf("mobility: cannot handle %T", evt)
	}

	t, ok := e.trajectories[tick.Node]
	if !ok || t.node.Removed() {
		return nil
	}

	pos := t.mover.Step(t.node.Position(), e.rng)
	t.node.SetPosition(pos)
	e.report(t.node.ID(), tick.Time(), pos)

	return e.scheduleTick(t, tick.Time())
}

// Cancel stops moving a node and withdraws its pending tick.
func (e *Engine) Cancel(n topology.NodeID) {
	t, ok := e.trajectories[n]
	if !ok {
		return
	}

	if t.pending != nil {
		t.pending.Cancel()
	}

	delete(e.trajectories, n)
}

// Moving tells if a node has a pending move.
func (e *Engine) Moving(n topology.NodeID) bool {
	_, ok := e.trajectories[n]
	return ok
}

func (e *Engine) report(
	n topology.NodeID,
	now timing.VTimeInSec,
	pos topology.Position,
) {
	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    HookPosPositionUpdate,
		Item:   PositionUpdate{Node: n, Time: now, Position: pos},
	})
}
