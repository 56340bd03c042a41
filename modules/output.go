package modules

import (
	"github.com/cwbudde/algo-vecmath"
	"github.com/viterin/vek"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Output is the permanent audio output. Its stereo input is scaled by the
// level parameter into the sink buffers the engine hands to the device.
type Output struct {
	module.Base
	level *param.Param
	sink  [][]float64
	peaks [2]*telemetry.Cell
}

// NewOutput returns the output module.
func NewOutput() *Output {
	m := &Output{
		Base: module.NewBase(
			module.Shape{Inputs: []module.Bus{module.Stereo("In")}},
			mustParams(param.Spec{
				Name: "level", Range: linear(0, 1), Default: 1,
				ModChannel: param.NoModulation,
			}),
			"peak.L", "peak.R",
		),
	}
	m.level = m.Param("level")
	m.peaks = [2]*telemetry.Cell{m.Cell("peak.L"), m.Cell("peak.R")}
	return m
}

// Prepare implements module.Module.
func (m *Output) Prepare(sampleRate float64, maxBlockSize int) error {
	if len(m.sink) != 2 {
		m.sink = make([][]float64, 2)
	}
	for ch := range m.sink {
		if cap(m.sink[ch]) < maxBlockSize {
			m.sink[ch] = make([]float64, maxBlockSize)
		}
		m.sink[ch] = m.sink[ch][:maxBlockSize]
	}
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Sink implements module.Sink.
func (m *Output) Sink() [][]float64 { return m.sink }

// Process implements module.Module.
func (m *Output) Process(b *module.Block) {
	level := m.level.Base()
	m.level.Publish(level)
	for ch := range m.sink {
		dst := m.sink[ch][:b.Frames]
		vecmath.ScaleBlock(dst, b.Input(ch), level)
		if b.Frames > 0 {
			m.peaks[ch].Store(max(vek.Max(dst), -vek.Min(dst)))
		}
	}
}

// Release implements module.Module.
func (m *Output) Release() { m.sink = nil }
