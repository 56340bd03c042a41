// Package telemetry publishes values from the audio goroutine to readers on
// other goroutines through lock-free cells.
package telemetry

import (
	"math"
	"sort"
	"sync/atomic"
)

// Cell holds one float64 value written by a single goroutine and read by any.
type Cell struct {
	name string
	bits atomic.Uint64
}

// Name returns the cell name.
func (c *Cell) Name() string {
	return c.name
}

// Store publishes v.
func (c *Cell) Store(v float64) {
	c.bits.Store(math.Float64bits(v))
}

// Load returns the most recently published value.
func (c *Cell) Load() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Set is a named collection of cells. Cells are added while the owner is
// being constructed; afterwards the set is read-only and safe to share.
type Set struct {
	cells []*Cell
	index map[string]*Cell
}

// NewSet returns a set holding one cell per name.
func NewSet(names ...string) *Set {
	s := &Set{index: make(map[string]*Cell, len(names))}
	for _, name := range names {
		s.Add(name)
	}
	return s
}

// Add creates a cell, or returns the existing one with the same name.
// It must not be called once the set is shared with other goroutines.
func (s *Set) Add(name string) *Cell {
	if c, ok := s.index[name]; ok {
		return c
	}
	c := &Cell{name: name}
	s.cells = append(s.cells, c)
	s.index[name] = c
	return c
}

// Cell returns the cell with the given name, or nil.
func (s *Set) Cell(name string) *Cell {
	if s == nil {
		return nil
	}
	return s.index[name]
}

// Len returns the number of cells.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.cells)
}

// Names returns the cell names in sorted order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.cells))
	for _, c := range s.cells {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

// Values returns a point-in-time copy of every cell value.
func (s *Set) Values() map[string]float64 {
	if s == nil {
		return nil
	}
	out := make(map[string]float64, len(s.cells))
	for _, c := range s.cells {
		out[c.name] = c.Load()
	}
	return out
}
