package modules

import (
	"strconv"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
)

// Mixer channels.
const (
	MixerInputs = 4
	// MixerSum accepts any number of cables, which are added at unity gain.
	MixerSum     = MixerInputs
	MixerLevelCV = MixerInputs + 1
)

// Mixer adds four level-controlled inputs and a summing bus, then applies
// the master level.
type Mixer struct {
	module.Base
	levels [MixerInputs]*param.Param
	master *param.Param

	scratch []float64
	gains   []float64
}

// NewMixer returns a mixer.
func NewMixer() *Mixer {
	labels := make([]string, MixerInputs)
	specs := make([]param.Spec, 0, MixerInputs+1)
	for i := range MixerInputs {
		n := strconv.Itoa(i + 1)
		labels[i] = "In " + n
		specs = append(specs, param.Spec{
			Name: "level " + n, Range: linear(0, 1), Default: 0.8,
			ModChannel: param.NoModulation,
		})
	}
	specs = append(specs, param.Spec{
		Name: "master", Range: linear(0, 1), Default: 1,
		ModChannel: MixerLevelCV, Span: 1,
	})

	m := &Mixer{
		Base: module.NewBase(
			module.Shape{
				Inputs: []module.Bus{
					{Name: "In", Channels: labels},
					{Name: "Sum", Channels: []string{"Sum"}, Summing: true},
					module.Mono("Level CV"),
				},
				Outputs: []module.Bus{module.Mono("Out")},
			},
			mustParams(specs...),
		),
	}
	for i := range m.levels {
		m.levels[i] = m.Param("level " + strconv.Itoa(i+1))
	}
	m.master = m.Param("master")
	return m
}

// Prepare implements module.Module.
func (m *Mixer) Prepare(sampleRate float64, maxBlockSize int) error {
	m.scratch = make([]float64, maxBlockSize)
	m.gains = make([]float64, maxBlockSize)
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Mixer) Process(b *module.Block) {
	out := b.Output(0)
	copy(out, b.Input(MixerSum))

	scratch := m.scratch[:b.Frames]
	for i, p := range m.levels {
		g := p.Base()
		p.Publish(g)
		if !b.Connected(i) || g == 0 {
			continue
		}
		vecmath.ScaleBlock(scratch, b.Input(i), g)
		vecmath.AddBlockInPlace(out, scratch)
	}

	r, cv := b.Modulation(m.master)
	if !r.Active() {
		vecmath.ScaleBlockInPlace(out, r.Base())
		m.master.Publish(r.Base())
		return
	}
	gains := m.gains[:b.Frames]
	for i, c := range cv {
		gains[i] = r.Value(c)
	}
	vecmath.MulBlockInPlace(out, gains)
	if b.Frames > 0 {
		m.master.Publish(gains[b.Frames-1])
	}
}

// Release implements module.Module.
func (m *Mixer) Release() { m.scratch, m.gains = nil, nil }
