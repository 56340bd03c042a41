package modules

import (
	"math"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Stage is an envelope segment.
type Stage int

// Envelope stages.
const (
	Idle Stage = iota
	Attack
	Decay
	Sustain
	Release
)

var stageNames = [...]string{"idle", "attack", "decay", "sustain", "release"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Envelope channels.
const (
	EnvGateIn = iota
	EnvRetrigIn
)

const (
	EnvOut = iota
	EnvEOCOut
)

// Decay and release run to within this distance of their target.
const envEpsilon = 1e-4

// Envelope is an ADSR generator. The attack is linear, decay and release
// are exponential and reach their target after the set time. EOC pulses
// for one sample when a release finishes.
type Envelope struct {
	module.Base
	attack, decay, sustain, release *param.Param

	stage Stage
	level float64
	gate  edge
	retr  edge

	stageCell, levelCell *telemetry.Cell
}

// NewEnvelope returns an ADSR envelope.
func NewEnvelope() *Envelope {
	seconds := exponential(0.001, 10)
	m := &Envelope{
		Base: module.NewBase(
			module.Shape{
				Inputs:  []module.Bus{module.Mono("Gate"), module.Mono("Retrig")},
				Outputs: []module.Bus{module.Mono("Env"), module.Mono("EOC")},
			},
			mustParams(
				param.Spec{Name: "attack", Unit: "s", Range: seconds, Default: 0.01, ModChannel: param.NoModulation},
				param.Spec{Name: "decay", Unit: "s", Range: seconds, Default: 0.2, ModChannel: param.NoModulation},
				param.Spec{Name: "sustain", Range: linear(0, 1), Default: 0.7, ModChannel: param.NoModulation},
				param.Spec{Name: "release", Unit: "s", Range: seconds, Default: 0.3, ModChannel: param.NoModulation},
			),
			"stage", "level",
		),
	}
	m.attack = m.Param("attack")
	m.decay = m.Param("decay")
	m.sustain = m.Param("sustain")
	m.release = m.Param("release")
	m.stageCell = m.Cell("stage")
	m.levelCell = m.Cell("level")
	return m
}

// Prepare implements module.Module.
func (m *Envelope) Prepare(sampleRate float64, maxBlockSize int) error {
	m.stage, m.level = Idle, 0
	m.gate.reset()
	m.retr.reset()
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Envelope) Process(b *module.Block) {
	if b.Transport.Reset {
		m.stage, m.level = Idle, 0
	}

	sr := m.SampleRate()
	a, d, s, r := m.attack.Base(), m.decay.Base(), m.sustain.Base(), m.release.Base()
	attackStep := 1 / (a * sr)
	decayCoef := segmentCoef(d, sr)
	releaseCoef := segmentCoef(r, sr)

	gate, retrig := b.Input(EnvGateIn), b.Input(EnvRetrigIn)
	out, eoc := b.Output(EnvOut), b.Output(EnvEOCOut)

	for i := range b.Frames {
		wasHigh := m.gate.high
		rose, again := m.gate.rising(gate[i]), m.retr.rising(retrig[i])
		if rose || (m.gate.high && again) {
			m.stage = Attack
		} else if wasHigh && !m.gate.high && m.stage != Idle {
			m.stage = Release
		}

		eoc[i] = 0
		switch m.stage {
		case Attack:
			m.level += attackStep
			if m.level >= 1 {
				m.level = 1
				m.stage = Decay
			}
		case Decay:
			m.level = s + (m.level-s)*decayCoef
			if math.Abs(m.level-s) < envEpsilon {
				m.level = s
				m.stage = Sustain
			}
		case Sustain:
			m.level = s
		case Release:
			m.level *= releaseCoef
			if m.level < envEpsilon {
				m.level = 0
				m.stage = Idle
				eoc[i] = 1
			}
		}
		out[i] = m.level
	}

	m.attack.Publish(a)
	m.decay.Publish(d)
	m.sustain.Publish(s)
	m.release.Publish(r)
	m.stageCell.Store(float64(m.stage))
	m.levelCell.Store(m.level)
}

// State returns the current stage and level.
func (m *Envelope) State() (Stage, float64) { return m.stage, m.level }

// segmentCoef returns the per-sample factor that shrinks a distance to
// envEpsilon over seconds.
func segmentCoef(seconds, sampleRate float64) float64 {
	return math.Exp(math.Log(envEpsilon) / (seconds * sampleRate))
}
