package modules

import (
	"math"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// LFO channels.
const (
	LFORateIn = iota
	LFOResetIn
)

const (
	LFOUnipolar = iota
	LFOBipolar
)

// LFO is a low-frequency CV oscillator. With sync enabled it follows the
// transport and completes one cycle every "beats" beats; otherwise it free
// runs at "rate". A rising edge on Reset and a transport reset both restart
// the cycle.
type LFO struct {
	module.Base
	rate, shape, sync, beats *param.Param

	phase float64
	reset edge

	phaseCell *telemetry.Cell
}

// NewLFO returns a low-frequency oscillator.
func NewLFO() *LFO {
	m := &LFO{
		Base: module.NewBase(
			module.Shape{
				Inputs:  []module.Bus{module.Mono("Rate CV"), module.Mono("Reset")},
				Outputs: []module.Bus{module.Mono("CV"), module.Mono("Bipolar")},
			},
			mustParams(
				param.Spec{
					Name: "rate", Unit: "Hz", Range: exponential(0.01, 50), Default: 1,
					ModChannel: LFORateIn, Span: 3,
				},
				param.Spec{
					Name: "waveform", Range: linear(0, 3), Default: float64(Sine),
					ModChannel: param.NoModulation, Discrete: true,
				},
				param.Spec{
					Name: "sync", Range: linear(0, 1), Default: 0,
					ModChannel: param.NoModulation, Discrete: true,
				},
				param.Spec{
					Name: "beats", Range: exponential(0.25, 16), Default: 1,
					ModChannel: param.NoModulation,
				},
			),
			"phase",
		),
	}
	m.rate = m.Param("rate")
	m.shape = m.Param("waveform")
	m.sync = m.Param("sync")
	m.beats = m.Param("beats")
	m.phaseCell = m.Cell("phase")
	return m
}

// Prepare implements module.Module.
func (m *LFO) Prepare(sampleRate float64, maxBlockSize int) error {
	m.phase = 0
	m.reset.reset()
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *LFO) Process(b *module.Block) {
	if b.Frames == 0 {
		return
	}
	tr := b.Transport
	if tr.Reset {
		m.phase = 0
	}

	wave := Waveform(m.shape.Base())
	synced := m.sync.Base() >= 0.5 && tr.Playing()
	beats := m.beats.Base()
	rr, rcv := b.Modulation(m.rate)
	resetIn := b.Input(LFOResetIn)
	resettable := b.Connected(LFOResetIn)

	uni, bi := b.Output(LFOUnipolar), b.Output(LFOBipolar)
	sr := m.SampleRate()

	var rate float64
	if synced {
		rate = tr.Tempo / 60 / beats
		m.phase = wrap(tr.Beats() / beats)
	}
	for i := range b.Frames {
		if !synced {
			rate = rr.Value(rcv[i])
		}
		if resettable && m.reset.rising(resetIn[i]) {
			m.phase = 0
		}
		v := lfoSample(wave, m.phase)
		bi[i] = v
		uni[i] = 0.5 + 0.5*v
		m.phase = wrap(m.phase + rate/sr)
	}

	m.rate.Publish(rate)
	m.phaseCell.Store(m.phase)
}

// lfoSample returns the naive waveform value in [-1, 1].
func lfoSample(w Waveform, phase float64) float64 {
	switch w {
	case Saw:
		return 2*phase - 1
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
