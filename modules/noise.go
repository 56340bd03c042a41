package modules

import (
	"math/rand/v2"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
)

// Noise outputs.
const (
	NoiseWhite = iota
	NoiseRandom
)

// Noise generates white noise and a stepped random CV that is resampled
// "rate" times per second. The generator is seeded, so two instances with
// the same seed produce the same signal after Prepare.
type Noise struct {
	module.Base
	level, rate *param.Param

	seed uint64
	pcg  *rand.PCG
	rng  *rand.Rand

	held  float64
	phase float64
}

// NewNoise returns a noise source with the given seed.
func NewNoise(seed uint64) *Noise {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	m := &Noise{
		Base: module.NewBase(
			module.Shape{Outputs: []module.Bus{module.Mono("White"), module.Mono("Random")}},
			mustParams(
				param.Spec{
					Name: "level", Range: linear(0, 1), Default: 0.5,
					ModChannel: param.NoModulation,
				},
				param.Spec{
					Name: "rate", Unit: "Hz", Range: exponential(0.1, 100), Default: 4,
					ModChannel: param.NoModulation,
				},
			),
		),
		seed: seed,
		pcg:  pcg,
		rng:  rand.New(pcg),
	}
	m.level = m.Param("level")
	m.rate = m.Param("rate")
	return m
}

// Prepare implements module.Module.
func (m *Noise) Prepare(sampleRate float64, maxBlockSize int) error {
	m.pcg.Seed(m.seed, m.seed^0x9e3779b97f4a7c15)
	m.held = m.rng.Float64()
	m.phase = 0
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Noise) Process(b *module.Block) {
	level, rate := m.level.Base(), m.rate.Base()
	m.level.Publish(level)
	m.rate.Publish(rate)

	white, random := b.Output(NoiseWhite), b.Output(NoiseRandom)
	dt := rate / m.SampleRate()
	for i := range b.Frames {
		white[i] = level * (2*m.rng.Float64() - 1)
		m.phase += dt
		if m.phase >= 1 {
			m.phase -= 1
			m.held = m.rng.Float64()
		}
		random[i] = m.held
	}
}
