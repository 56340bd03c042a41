package modules

import (
	"math"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Waveform selects the oscillator shape.
type Waveform int

// Oscillator and LFO waveforms.
const (
	Sine Waveform = iota
	Saw
	Square
	Triangle
)

var waveformNames = [...]string{"sine", "saw", "square", "triangle"}

func (w Waveform) String() string {
	if w < 0 || int(w) >= len(waveformNames) {
		return "unknown"
	}
	return waveformNames[w]
}

// Oscillator channels.
const (
	OscPitchIn = iota
	OscFMIn
	OscPWIn
	OscSyncIn
)

const (
	OscOut = iota
	OscSyncOut
)

// Oscillator is a band-limited audio oscillator. A cable on Pitch replaces
// the frequency base with the note it carries; FM modulates around that.
// The Sync output emits a one-sample pulse at the start of every cycle and
// a rising edge on the Sync input restarts the cycle.
type Oscillator struct {
	module.Base
	freq, shape, pw, level *param.Param

	phase float64
	sync  edge

	phaseCell, freqCell *telemetry.Cell
}

// NewOscillator returns an oscillator.
func NewOscillator() *Oscillator {
	m := &Oscillator{
		Base: module.NewBase(
			module.Shape{
				Inputs: []module.Bus{
					module.Mono("Pitch"), module.Mono("FM"),
					module.Mono("PW"), module.Mono("Sync"),
				},
				Outputs: []module.Bus{module.Mono("Out"), module.Mono("Sync")},
			},
			mustParams(
				param.Spec{
					Name: "frequency", Unit: "Hz", Range: exponential(20, 20000), Default: 220,
					ModChannel: OscFMIn, Span: 2,
				},
				param.Spec{
					Name: "waveform", Range: linear(0, 3), Default: float64(Sine),
					ModChannel: param.NoModulation, Discrete: true,
				},
				param.Spec{
					Name: "pulse width", Range: linear(0.05, 0.95), Default: 0.5,
					ModChannel: OscPWIn, Span: 0.45,
				},
				param.Spec{
					Name: "level", Range: linear(0, 1), Default: 0.8,
					ModChannel: param.NoModulation,
				},
			),
			"phase", "frequency",
		),
	}
	m.freq = m.Param("frequency")
	m.shape = m.Param("waveform")
	m.pw = m.Param("pulse width")
	m.level = m.Param("level")
	m.phaseCell = m.Cell("phase")
	m.freqCell = m.Cell("frequency")
	return m
}

// Prepare implements module.Module.
func (m *Oscillator) Prepare(sampleRate float64, maxBlockSize int) error {
	m.phase = 0
	m.sync.reset()
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Oscillator) Process(b *module.Block) {
	if b.Frames == 0 {
		return
	}
	sr := m.SampleRate()
	fr, fm := b.Modulation(m.freq)
	pr, pwcv := b.Modulation(m.pw)
	wave := Waveform(m.shape.Base())
	level := m.level.Base()

	pitched := b.Connected(OscPitchIn)
	pitch := b.Input(OscPitchIn)
	syncIn := b.Input(OscSyncIn)
	hardSync := b.Connected(OscSyncIn)

	out, syncOut := b.Output(OscOut), b.Output(OscSyncOut)

	var f, width float64
	for i := range b.Frames {
		f = fr.Value(fm[i])
		if pitched {
			f = PitchToHz(pitch[i]) * f / fr.Base()
		}
		f = math.Min(math.Max(f, 0.1), 0.45*sr)
		width = pr.Value(pwcv[i])

		if hardSync && m.sync.rising(syncIn[i]) {
			m.phase = 0
		}

		dt := f / sr
		out[i] = level * waveSample(wave, m.phase, dt, width)

		syncOut[i] = 0
		if m.phase < dt {
			syncOut[i] = 1
		}
		m.phase = wrap(m.phase + dt)
	}

	m.freq.Publish(f)
	m.pw.Publish(width)
	m.shape.Publish(float64(wave))
	m.level.Publish(level)
	m.phaseCell.Store(m.phase)
	m.freqCell.Store(f)
}

func waveSample(w Waveform, phase, dt, width float64) float64 {
	switch w {
	case Saw:
		return 2*phase - 1 - polyBLEP(phase, dt)
	case Square:
		v := -1.0
		if phase < width {
			v = 1
		}
		return v + polyBLEP(phase, dt) - polyBLEP(wrap(phase-width+1), dt)
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
