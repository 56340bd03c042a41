package module

import (
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Base implements the bookkeeping parts of Module. Built-in modules embed
// it and provide Process.
type Base struct {
	shape      Shape
	params     *param.Bank
	cells      *telemetry.Set
	sampleRate float64
	maxBlock   int
}

// NewBase returns a Base with the given shape, parameters and telemetry cells.
func NewBase(shape Shape, params *param.Bank, cells ...string) Base {
	if params == nil {
		params = param.MustBank()
	}
	return Base{shape: shape, params: params, cells: telemetry.NewSet(cells...)}
}

// Shape implements Module.
func (b *Base) Shape() Shape { return b.shape }

// Params implements Module.
func (b *Base) Params() *param.Bank { return b.params }

// Telemetry implements Telemetered.
func (b *Base) Telemetry() *telemetry.Set { return b.cells }

// Cell returns the named telemetry cell.
func (b *Base) Cell(name string) *telemetry.Cell { return b.cells.Cell(name) }

// Param returns the named parameter and panics if it does not exist. It is
// meant for module constructors wiring up their own static parameters.
func (b *Base) Param(name string) *param.Param {
	p, ok := b.params.Get(name)
	if !ok {
		panic("module: unknown parameter " + name)
	}
	return p
}

// Prepare records the processing configuration.
func (b *Base) Prepare(sampleRate float64, maxBlockSize int) error {
	b.sampleRate = sampleRate
	b.maxBlock = maxBlockSize
	return nil
}

// SampleRate returns the rate the module was prepared with.
func (b *Base) SampleRate() float64 { return b.sampleRate }

// MaxBlockSize returns the block size the module was prepared with.
func (b *Base) MaxBlockSize() int { return b.maxBlock }

// Release implements Module.
func (b *Base) Release() {}
