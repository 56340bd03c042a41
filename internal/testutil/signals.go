// Package testutil holds signal generators, assertions and a single-module
// test rig shared by the package tests.
package testutil

import (
	"math"
	"math/rand/v2"
)

// fill returns a length-sample slice with out[i] = f(i).
func fill(length int, f func(i int) float64) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

// Sine returns amplitude*sin(2*pi*freqHz*i/sampleRate), starting at phase 0.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	w := 2 * math.Pi * freqHz / sampleRate
	return fill(length, func(i int) float64 { return amplitude * math.Sin(w*float64(i)) })
}

// Noise returns uniform white noise in [-amplitude, amplitude). The same
// seed always yields the same samples.
func Noise(seed uint64, amplitude float64, length int) []float64 {
	rng := rand.New(rand.NewPCG(seed, 0))
	return fill(length, func(int) float64 { return amplitude * (2*rng.Float64() - 1) })
}

// Impulse returns a single 1 at pos. Out-of-range positions give silence.
func Impulse(length, pos int) []float64 {
	return fill(length, func(i int) float64 {
		if i == pos {
			return 1
		}
		return 0
	})
}

// DC returns a constant signal.
func DC(value float64, length int) []float64 {
	return fill(length, func(int) float64 { return value })
}

// Gate returns a signal that is 1 on [on, off) and 0 elsewhere.
func Gate(length, on, off int) []float64 {
	return fill(length, func(i int) float64 {
		if i >= on && i < off {
			return 1
		}
		return 0
	})
}

// Peak returns the largest absolute sample.
func Peak(data []float64) float64 {
	var p float64
	for _, v := range data {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

// CountRisingZeroCrossings counts transitions from below zero to zero or
// above.
func CountRisingZeroCrossings(data []float64) int {
	n := 0
	for i := 1; i < len(data); i++ {
		if data[i-1] < 0 && data[i] >= 0 {
			n++
		}
	}
	return n
}
