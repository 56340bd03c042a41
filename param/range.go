package param

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
)

// Curve selects how normalized values map onto the native range.
type Curve int

const (
	// Linear maps normalized values proportionally.
	Linear Curve = iota
	// Exponential maps normalized values logarithmically, for frequency-like
	// parameters. Both bounds must be positive.
	Exponential
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("Curve(%d)", int(c))
	}
}

// Range is the native value range of a parameter.
type Range struct {
	Min, Max float64
	Curve    Curve
	// Skew shapes the normalized value before mapping (n^Skew). Zero and one
	// both mean no skew.
	Skew float64
}

var errInvalidRange = errors.New("param: invalid range")

// Validate reports whether the range is usable.
func (r Range) Validate() error {
	if !core.IsFinite(r.Min) || !core.IsFinite(r.Max) || r.Min >= r.Max {
		return fmt.Errorf("%w: [%v, %v]", errInvalidRange, r.Min, r.Max)
	}
	if r.Curve == Exponential && r.Min <= 0 {
		return fmt.Errorf("%w: exponential curve needs positive bounds, min=%v", errInvalidRange, r.Min)
	}
	if r.Skew < 0 || !core.IsFinite(r.Skew) {
		return fmt.Errorf("%w: skew %v", errInvalidRange, r.Skew)
	}
	return nil
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	return core.Clamp(v, r.Min, r.Max)
}

// FromNormalized maps n in [0,1] onto the native range.
func (r Range) FromNormalized(n float64) float64 {
	n = core.Clamp(n, 0, 1)
	if r.Skew > 0 && r.Skew != 1 {
		n = math.Pow(n, r.Skew)
	}
	if r.Curve == Exponential {
		return r.Clamp(r.Min * math.Pow(r.Max/r.Min, n))
	}
	return r.Clamp(r.Min + (r.Max-r.Min)*n)
}

// ToNormalized is the inverse of FromNormalized.
func (r Range) ToNormalized(v float64) float64 {
	v = r.Clamp(v)
	var n float64
	if r.Curve == Exponential {
		n = math.Log(v/r.Min) / math.Log(r.Max/r.Min)
	} else {
		n = (v - r.Min) / (r.Max - r.Min)
	}
	if r.Skew > 0 && r.Skew != 1 {
		n = math.Pow(n, 1/r.Skew)
	}
	return core.Clamp(n, 0, 1)
}
