package modules

import (
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/param"
)

// GateThreshold is the level at which gate and trigger inputs read high.
const GateThreshold = 0.5

// PitchToNote converts pitch CV to a fractional MIDI note.
func PitchToNote(cv float64) float64 { return core.Clamp(cv, 0, 1) * 127 }

// NoteToPitch converts a MIDI note to pitch CV.
func NoteToPitch(note float64) float64 { return core.Clamp(note/127, 0, 1) }

// PitchToHz converts pitch CV to a frequency.
func PitchToHz(cv float64) float64 { return core.NoteToHz(PitchToNote(cv)) }

// edge detects rising edges on a gate signal.
type edge struct{ high bool }

func (e *edge) rising(x float64) bool {
	was := e.high
	e.high = x >= GateThreshold
	return e.high && !was
}

func (e *edge) reset() { e.high = false }

// mustParams panics on invalid static specs; they are fixed at compile time.
func mustParams(specs ...param.Spec) *param.Bank { return param.MustBank(specs...) }

func linear(min, max float64) param.Range {
	return param.Range{Min: min, Max: max, Curve: param.Linear}
}

func exponential(min, max float64) param.Range {
	return param.Range{Min: min, Max: max, Curve: param.Exponential}
}

// wrap keeps an oscillator phase in [0, 1).
func wrap(phase float64) float64 {
	if phase >= 1 || phase < 0 {
		phase -= math.Floor(phase)
	}
	return phase
}

// polyBLEP is the two-sample band-limited step correction.
func polyBLEP(t, dt float64) float64 {
	switch {
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	default:
		return 0
	}
}
