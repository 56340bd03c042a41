package spectrum

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// FloorDB is the level reported for empty bands.
const FloorDB = -120.0

// ErrInvalidSize is returned for frame sizes that are not a power of two
// of at least 16.
var ErrInvalidSize = errors.New("spectrum: size must be a power of two >= 16")

// Analyzer computes Hann-windowed power spectra of fixed-size frames.
type Analyzer struct {
	size   int
	plan   *algofft.Plan[complex128]
	window []float64
	norm   float64

	bins   []complex128
	re, im []float64
	power  []float64
}

// NewAnalyzer returns an analyzer for frames of size samples.
func NewAnalyzer(size int) (*Analyzer, error) {
	if size < 16 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("spectrum: fft plan: %w", err)
	}

	a := &Analyzer{
		size:   size,
		plan:   plan,
		window: make([]float64, size),
		bins:   make([]complex128, size),
		re:     make([]float64, size/2+1),
		im:     make([]float64, size/2+1),
		power:  make([]float64, size/2+1),
	}
	var sum float64
	for i := range a.window {
		a.window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
		sum += a.window[i]
	}
	// Full-scale sine reads 1 in its peak bin.
	a.norm = 4 / (sum * sum)
	return a, nil
}

// Size returns the frame length.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of power bins, size/2+1.
func (a *Analyzer) Bins() int { return len(a.power) }

// Analyze windows frame, transforms it and returns the one-sided power
// spectrum. The returned slice is owned by the analyzer and overwritten by
// the next call.
func (a *Analyzer) Analyze(frame []float64) ([]float64, error) {
	if len(frame) != a.size {
		return nil, fmt.Errorf("spectrum: frame length %d, want %d", len(frame), a.size)
	}
	for i, x := range frame {
		a.bins[i] = complex(x*a.window[i], 0)
	}
	if err := a.plan.Forward(a.bins, a.bins); err != nil {
		return nil, fmt.Errorf("spectrum: forward fft: %w", err)
	}
	for k := range a.re {
		a.re[k] = real(a.bins[k])
		a.im[k] = imag(a.bins[k])
	}
	vecmath.Power(a.power, a.re, a.im)
	for k := range a.power {
		a.power[k] *= a.norm
	}
	return a.power, nil
}

// BinFrequency returns the centre frequency of bin k.
func (a *Analyzer) BinFrequency(k int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(a.size)
}

// Peak returns the index of the strongest bin above DC.
func Peak(power []float64) int {
	best := 0
	for k := 1; k < len(power); k++ {
		if best == 0 || power[k] > power[best] {
			best = k
		}
	}
	return best
}

// OctaveBands sums power into len(dst) octave bands starting at lowHz and
// stores their levels in dB. The last band extends to Nyquist; bins below
// lowHz are ignored.
func OctaveBands(dst, power []float64, sampleRate, lowHz float64) {
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) == 0 || len(power) < 2 {
		return
	}

	binHz := sampleRate / float64(2*(len(power)-1))
	for k := 1; k < len(power); k++ {
		f := float64(k) * binHz
		if f < lowHz {
			continue
		}
		b := min(int(math.Log2(f/lowHz)), len(dst)-1)
		dst[b] += power[k]
	}
	for i, p := range dst {
		if p <= 0 {
			dst[i] = FloorDB
			continue
		}
		dst[i] = math.Max(10*math.Log10(p), FloorDB)
	}
}
