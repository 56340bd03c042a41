// Package ladder implements a four-pole transistor ladder low-pass after
// Huovilainen's nonlinear model.
//
// Coefficients are cheap enough to be updated at control rate, so the
// filter exposes Set for per-segment modulation instead of validating
// setters.
package ladder

import (
	"errors"
	"math"
)

const (
	thermalVoltage = 5.0
	stateLimit     = 32.0

	// MaxResonance is the self-oscillation region upper bound.
	MaxResonance = 4.0
)

// ErrInvalidSampleRate is returned by New for non-positive rates.
var ErrInvalidSampleRate = errors.New("ladder: sample rate must be > 0")

// Filter is a single-channel ladder. The zero value is not usable.
type Filter struct {
	sampleRate float64

	g          float64
	feedback   float64
	shape      float64
	outputGain float64

	stage [4]float64
	prev  float64
}

// New returns a filter at 1 kHz with no resonance and unity drive.
func New(sampleRate float64) (*Filter, error) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		return nil, ErrInvalidSampleRate
	}
	f := &Filter{sampleRate: sampleRate}
	f.Set(1000, 0, 1)
	return f, nil
}

// SampleRate returns the configured rate.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

// Set updates cutoff, resonance and drive. Out-of-range values are clamped:
// cutoff to (0, 0.45*sampleRate), resonance to [0, MaxResonance] and drive
// to at least 0.01.
func (f *Filter) Set(cutoffHz, resonance, drive float64) {
	cutoffHz = math.Min(math.Max(cutoffHz, 1), 0.45*f.sampleRate)
	resonance = math.Min(math.Max(resonance, 0), MaxResonance)
	drive = math.Max(drive, 0.01)

	fc := cutoffHz / f.sampleRate
	fcr := max(0, 1.8730*fc*fc*fc+0.4955*fc*fc-0.6490*fc+0.9988)
	comp := max(0, -3.9364*fc*fc+1.8409*fc+0.9968)

	f.g = 2 * thermalVoltage * (1 - math.Exp(-2*math.Pi*fcr*fc))
	f.feedback = resonance * comp
	f.shape = 0.5 * drive / thermalVoltage
	// Resonance eats passband level; give some of it back.
	f.outputGain = 1 + 0.5*resonance
}

// Reset clears the stage memory.
func (f *Filter) Reset() {
	f.stage = [4]float64{}
	f.prev = 0
}

// ProcessSample filters one sample.
func (f *Filter) ProcessSample(x float64) float64 {
	s := &f.stage
	in := x - f.feedback*0.5*(s[3]+f.prev)

	k := f.shape
	t := math.Tanh(k * in)
	for i := range s {
		ts := math.Tanh(k * s[i])
		s[i] = clip(s[i] + f.g*(t-ts))
		t = math.Tanh(k * s[i])
	}
	f.prev = s[3]

	return f.outputGain * s[3]
}

// ProcessTo filters src into dst. The slices may alias.
func (f *Filter) ProcessTo(dst, src []float64) {
	for i, x := range src[:len(dst)] {
		dst[i] = f.ProcessSample(x)
	}
}

func clip(v float64) float64 {
	return math.Min(math.Max(v, -stateLimit), stateLimit)
}
