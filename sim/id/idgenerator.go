// Package id generates identifiers that are unique within one simulation.
package id

import (
	"strconv"
	"sync/atomic"
)

// Generator hands out identifiers.
type Generator interface {
	// Next returns the next numeric id. The first id is 1.
	Next() uint64

	// Generate returns the next id formatted as a string.
	Generate() string
}

// NewGenerator returns a sequential generator. Each simulation owns its own
// generator so that two runs with the same input produce the same ids.
func NewGenerator() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	nextID uint64
}

func (g *sequentialGenerator) Next() uint64 {
	return atomic.AddUint64(&g.nextID, 1)
}

func (g *sequentialGenerator) Generate() string {
	return strconv.FormatUint(g.Next(), 10)
}
