package param

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// NoModulation marks a parameter without a modulation input.
const NoModulation = -1

// ErrNotFinite is returned when a NaN or infinite value is set.
var ErrNotFinite = errors.New("param: value is not finite")

// Spec describes one parameter.
type Spec struct {
	Name    string
	Unit    string
	Range   Range
	Default float64
	// ModChannel is the flat input channel index carrying this parameter's
	// CV, or NoModulation.
	ModChannel int
	// Span is the relative excursion reached at full CV deflection: octaves
	// for exponential parameters, native units for linear ones.
	Span float64
	// Absolute selects absolute CV mapping as the initial mode.
	Absolute bool
	// Discrete rounds resolved values to whole numbers.
	Discrete bool
}

// Validate reports whether s describes a usable parameter.
func (s Spec) Validate() error {
	if s.Name == "" {
		return errors.New("param: empty name")
	}
	if err := s.Range.Validate(); err != nil {
		return fmt.Errorf("param %q: %w", s.Name, err)
	}
	if !core.IsFinite(s.Default) || s.Default < s.Range.Min || s.Default > s.Range.Max {
		return fmt.Errorf("param %q: default %v outside [%v, %v]", s.Name, s.Default, s.Range.Min, s.Range.Max)
	}
	if s.ModChannel < NoModulation {
		return fmt.Errorf("param %q: invalid modulation channel %d", s.Name, s.ModChannel)
	}
	return nil
}

// Param is one automatable value. The base value and the mapping mode are
// written only from the control side; the live value is written only by the
// audio goroutine.
type Param struct {
	spec      Spec
	base      atomic.Uint64
	live      atomic.Uint64
	absolute  atomic.Bool
	modulated atomic.Bool
}

// New returns a parameter initialised to its default value.
func New(spec Spec) (*Param, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	p := &Param{spec: spec}
	p.base.Store(math.Float64bits(spec.Default))
	p.live.Store(math.Float64bits(spec.Default))
	p.absolute.Store(spec.Absolute)
	return p, nil
}

// Spec returns the parameter description.
func (p *Param) Spec() Spec { return p.spec }

// Name returns the parameter name.
func (p *Param) Name() string { return p.spec.Name }

// Set stores a new base value clamped to the native range and returns the
// stored value.
func (p *Param) Set(v float64) (float64, error) {
	if !core.IsFinite(v) {
		return p.Base(), fmt.Errorf("%w: %s=%v", ErrNotFinite, p.spec.Name, v)
	}
	v = p.spec.Range.Clamp(v)
	if p.spec.Discrete {
		v = math.Round(v)
	}
	p.base.Store(math.Float64bits(v))
	return v, nil
}

// Reset restores the default base value.
func (p *Param) Reset() {
	p.base.Store(math.Float64bits(p.spec.Default))
}

// Base returns the control-side value.
func (p *Param) Base() float64 { return math.Float64frombits(p.base.Load()) }

// Live returns the value the audio goroutine last resolved.
func (p *Param) Live() float64 { return math.Float64frombits(p.live.Load()) }

// Publish stores the resolved value for display. Audio goroutine only.
func (p *Param) Publish(v float64) { p.live.Store(math.Float64bits(v)) }

// SetAbsolute selects absolute (true) or relative (false) CV mapping.
func (p *Param) SetAbsolute(absolute bool) { p.absolute.Store(absolute) }

// Absolute reports whether CV is mapped absolutely.
func (p *Param) Absolute() bool { return p.absolute.Load() }

// SetModulated records whether a cable currently drives the modulation input.
func (p *Param) SetModulated(modulated bool) { p.modulated.Store(modulated) }

// Modulated reports whether a cable currently drives the modulation input.
func (p *Param) Modulated() bool { return p.modulated.Load() }

// Resolver captures everything needed to resolve the parameter for one
// block. connected tells whether the modulation input has an active edge.
func (p *Param) Resolver(connected bool) Resolver {
	return Resolver{
		base:     p.Base(),
		rng:      p.spec.Range,
		span:     p.spec.Span,
		absolute: p.Absolute(),
		active:   connected && p.spec.ModChannel != NoModulation,
		discrete: p.spec.Discrete,
	}
}

// Resolver resolves a parameter against incoming CV without touching shared
// state. It is a value type so the audio goroutine can keep it on the stack.
type Resolver struct {
	base     float64
	rng      Range
	span     float64
	absolute bool
	active   bool
	discrete bool
}

// Active reports whether CV drives the parameter.
func (r Resolver) Active() bool { return r.active }

// Base returns the base value captured at block start.
func (r Resolver) Base() float64 { return r.base }

// Value resolves the parameter for one CV sample in [0,1]. Without an
// active modulation source the base value is returned unchanged.
func (r Resolver) Value(cv float64) float64 {
	if !r.active || math.IsNaN(cv) {
		return r.base
	}
	cv = core.Clamp(cv, 0, 1)

	var v float64
	switch {
	case r.absolute:
		v = r.rng.FromNormalized(cv)
	case r.rng.Curve == Exponential:
		v = r.base * math.Exp2((cv-0.5)*2*r.span)
	default:
		v = r.base + (cv-0.5)*2*r.span
	}

	v = r.rng.Clamp(v)
	if r.discrete {
		v = math.Round(v)
	}
	return v
}
