// Package mobility places nodes on the plane and moves the ones that walk.
package mobility

import (
	"math"
	"math/rand"

	"github.com/sarchlab/netsim/network/topology"
	"github.com/sarchlab/netsim/sim/timing"
)

// A Model gives each node of an Install call its initial position. The index
// is the node's position in that call.
type Model interface {
	Place(index int, current topology.Position) topology.Position
}

// A Mover is a Model that keeps moving nodes after placement.
type Mover interface {
	Model

	// StepInterval is the simulated time between two moves.
	StepInterval() timing.VTimeInSec

	// Step returns the position after one move from cur.
	Step(cur topology.Position, rng *rand.Rand) topology.Position
}

// Stationary never moves. Nodes take the At position of their index, or stay
// where they are when At is too short.
type Stationary struct {
	At []topology.Position
}

// Place implements Model.
func (s Stationary) Place(index int, current topology.Position) topology.Position {
	if index < len(s.At) {
		return s.At[index]
	}

	return current
}

// GridLayout tells whether a grid fills rows or columns first.
type GridLayout int

// Grid layouts.
const (
	RowFirst GridLayout = iota
	ColumnFirst
)

// Grid places nodes on a regular grid, GridWidth nodes per row (or column
// with ColumnFirst). It does not move them afterwards.
type Grid struct {
	MinX, MinY     float64
	DeltaX, DeltaY float64
	GridWidth      int
	Layout         GridLayout
}

// Place implements Model.
func (g Grid) Place(index int, _ topology.Position) topology.Position {
	width := g.GridWidth
	if width <= 0 {
		width = 1
	}

	major, minor := index%width, index/width
	if g.Layout == ColumnFirst {
		return topology.Position{
			X: g.MinX + g.DeltaX*float64(minor),
			Y: g.MinY + g.DeltaY*float64(major),
		}
	}

	return topology.Position{
		X: g.MinX + g.DeltaX*float64(major),
		Y: g.MinY + g.DeltaY*float64(minor),
	}
}

// Rect is an axis aligned rectangle.
type Rect struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Contains tells if p is inside r, borders included.
func (r Rect) Contains(p topology.Position) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Clamp moves p to the closest point inside r.
func (r Rect) Clamp(p topology.Position) topology.Position {
	return topology.Position{
		X: math.Min(math.Max(p.X, r.MinX), r.MaxX),
		Y: math.Min(math.Max(p.Y, r.MinY), r.MaxY),
	}
}

// RandomWalkBounded moves a node by StepSize in a random direction every
// Interval, bouncing off the borders of Bounds.
type RandomWalkBounded struct {
	Bounds   Rect
	Interval timing.VTimeInSec
	StepSize float64

	// Placement gives the initial positions. Without it nodes start where
	// they are, pulled inside Bounds.
	Placement Model
}

// Place implements Model.
func (w RandomWalkBounded) Place(index int, current topology.Position) topology.Position {
	if w.Placement != nil {
		current = w.Placement.Place(index, current)
	}

	return w.Bounds.Clamp(current)
}

// StepInterval implements Mover.
func (w RandomWalkBounded) StepInterval() timing.VTimeInSec {
	return w.Interval
}

// Step implements Mover.
func (w RandomWalkBounded) Step(
	cur topology.Position,
	rng *rand.Rand,
) topology.Position {
	angle := rng.Float64() * 2 * math.Pi
	next := topology.Position{
		X: bounce(cur.X+w.StepSize*math.Cos(angle), w.Bounds.MinX, w.Bounds.MaxX),
		Y: bounce(cur.Y+w.StepSize*math.Sin(angle), w.Bounds.MinY, w.Bounds.MaxY),
	}

	return w.Bounds.Clamp(next)
}

func bounce(v, lo, hi float64) float64 {
	switch {
	case v > hi:
		return 2*hi - v
	case v < lo:
		return 2*lo - v
	default:
		return v
	}
}
