package modules

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
)

// AudioIn exposes the first two device input channels.
type AudioIn struct {
	module.Base
	gain *param.Param
}

// NewAudioIn returns an audio input module.
func NewAudioIn() *AudioIn {
	m := &AudioIn{
		Base: module.NewBase(
			module.Shape{Outputs: []module.Bus{module.Stereo("Out")}},
			mustParams(param.Spec{
				Name: "gain", Range: linear(0, 2), Default: 1,
				ModChannel: param.NoModulation,
			}),
		),
	}
	m.gain = m.Param("gain")
	return m
}

// Process implements module.Module.
func (m *AudioIn) Process(b *module.Block) {
	g := m.gain.Base()
	m.gain.Publish(g)
	for ch := range 2 {
		if !b.OutputConnected(ch) {
			continue
		}
		out := b.Output(ch)
		if ch >= len(b.System.Audio) {
			core.Zero(out)
			continue
		}
		vecmath.ScaleBlock(out, b.System.Audio[ch][:b.Frames], g)
	}
}
