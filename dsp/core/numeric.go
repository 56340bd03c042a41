package core

import "math"

// denormalFloor is the magnitude below which feedback paths are snapped to
// zero.
const denormalFloor = 1e-30

// Clamp limits v to [lo, hi]. Swapped bounds are accepted.
func Clamp(v, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// NearlyEqual compares a and b with an absolute tolerance near zero and a
// relative one elsewhere. A non-positive eps selects 1e-12.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = 1e-12
	}
	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}
	return diff <= eps*math.Max(math.Abs(a), math.Abs(b))
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// FlushDenormals snaps values that would decay into the denormal range of a
// recirculating path to exact zero.
func FlushDenormals(x float64) float64 {
	if math.Abs(x) < denormalFloor {
		return 0
	}
	return x
}

// NoteToHz converts a (possibly fractional) MIDI note to Hz, A4 = 69 = 440 Hz.
func NoteToHz(note float64) float64 { return 440 * math.Exp2((note-69)/12) }
