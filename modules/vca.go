package modules

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
)

// VCA channels.
const (
	VCAIn = iota
	VCACV
)

// VCA multiplies its input by the gain parameter, which the CV input
// modulates per sample.
type VCA struct {
	module.Base
	gain  *param.Param
	gains []float64
}

// NewVCA returns a voltage-controlled amplifier.
func NewVCA() *VCA {
	m := &VCA{
		Base: module.NewBase(
			module.Shape{
				Inputs:  []module.Bus{module.Mono("In"), module.Mono("CV")},
				Outputs: []module.Bus{module.Mono("Out")},
			},
			mustParams(param.Spec{
				Name: "gain", Range: linear(0, 1), Default: 1,
				ModChannel: VCACV, Span: 1,
			}),
		),
	}
	m.gain = m.Param("gain")
	return m
}

// Prepare implements module.Module.
func (m *VCA) Prepare(sampleRate float64, maxBlockSize int) error {
	m.gains = make([]float64, maxBlockSize)
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *VCA) Process(b *module.Block) {
	r, cv := b.Modulation(m.gain)
	in, out := b.Input(VCAIn), b.Output(0)

	if !r.Active() {
		vecmath.ScaleBlock(out, in, r.Base())
		m.gain.Publish(r.Base())
		return
	}

	gains := m.gains[:b.Frames]
	for i, c := range cv {
		gains[i] = r.Value(c)
	}
	vecmath.MulBlock(out, in, gains)
	if b.Frames > 0 {
		m.gain.Publish(gains[b.Frames-1])
	}
}

// Release implements module.Module.
func (m *VCA) Release() { m.gains = nil }
