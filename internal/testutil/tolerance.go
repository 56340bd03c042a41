package testutil

import (
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails unless got and want have the same length
// and every pair of samples lies within eps of each other.
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i, g := range got {
		if d := math.Abs(g - want[i]); d > eps || math.IsNaN(d) {
			t.Fatalf("sample %d = %v, want %v (|diff| %g > %g)", i, g, want[i], d, eps)
		}
	}
}

// RequireFinite fails on the first NaN or infinite sample.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d is %v", i, v)
		}
	}
}

// RequireSilent fails unless every sample is exactly zero.
func RequireSilent(t *testing.T, what string, data []float64) {
	t.Helper()
	for i, v := range data {
		if v != 0 {
			t.Fatalf("%s: sample %d = %v, want silence", what, i, v)
		}
	}
}

// RequireSignal fails if the signal is not finite or peaks below minPeak.
func RequireSignal(t *testing.T, what string, data []float64, minPeak float64) {
	t.Helper()
	RequireFinite(t, data)
	if p := Peak(data); p < minPeak {
		t.Fatalf("%s: peak %v, want >= %v", what, p, minPeak)
	}
}
