package modules

import (
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Monitor is the permanent system monitor. It has no buses and publishes
// engine statistics and transport state as telemetry.
type Monitor struct {
	module.Base
	load, blocks, generation, modules *telemetry.Cell
	faults, underruns, dropped        *telemetry.Cell
	beats, tempo, playing             *telemetry.Cell
}

// NewMonitor returns the monitor module.
func NewMonitor() *Monitor {
	m := &Monitor{
		Base: module.NewBase(module.Shape{}, nil,
			"load", "blocks", "generation", "modules",
			"faults", "underruns", "midi_dropped",
			"beats", "tempo", "playing"),
	}
	m.load = m.Cell("load")
	m.blocks = m.Cell("blocks")
	m.generation = m.Cell("generation")
	m.modules = m.Cell("modules")
	m.faults = m.Cell("faults")
	m.underruns = m.Cell("underruns")
	m.dropped = m.Cell("midi_dropped")
	m.beats = m.Cell("beats")
	m.tempo = m.Cell("tempo")
	m.playing = m.Cell("playing")
	return m
}

// Process implements module.Module.
func (m *Monitor) Process(b *module.Block) {
	s := b.System.Stats
	if s.BudgetNanos > 0 {
		m.load.Store(float64(s.RenderNanos) / float64(s.BudgetNanos))
	}
	m.blocks.Store(float64(s.Blocks))
	m.generation.Store(float64(s.Generation))
	m.modules.Store(float64(s.Modules))
	m.faults.Store(float64(s.Faults))
	m.underruns.Store(float64(s.Underruns))
	m.dropped.Store(float64(s.MIDIDropped))

	tr := b.Transport
	m.beats.Store(tr.Beats())
	m.tempo.Store(tr.Tempo)
	if tr.Playing() {
		m.playing.Store(1)
	} else {
		m.playing.Store(0)
	}
}
