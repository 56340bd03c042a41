// Package delay provides the circular delay line behind the delay module.
package delay

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// ErrInvalidSize is returned for a non-positive line length.
var ErrInvalidSize = errors.New("delay: size must be > 0")

// Line is a circular delay line whose storage is a power of two long, so
// read positions wrap with a mask.
type Line struct {
	buf  []float64
	mask int
	head int // next write position
}

// New returns a line holding at least size samples.
func New(size int) (*Line, error) {
	l := &Line{}
	if err := l.Resize(size); err != nil {
		return nil, err
	}
	return l, nil
}

// Len returns the storage length, size rounded up to a power of two.
func (l *Line) Len() int { return len(l.buf) }

// Resize reallocates the line for at least size samples and clears it. It
// may allocate and must not run concurrently with processing.
func (l *Line) Resize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	n := 1 << bits.Len(uint(size-1))
	if cap(l.buf) >= n {
		l.buf = l.buf[:n]
	} else {
		l.buf = make([]float64, n)
	}
	l.mask = n - 1
	l.Reset()
	return nil
}

// Write pushes one sample.
func (l *Line) Write(x float64) {
	l.buf[l.head] = x
	l.head = (l.head + 1) & l.mask
}

// Read returns the sample written delay writes ago; Read(1) is the newest.
func (l *Line) Read(delay int) float64 {
	return l.buf[(l.head-delay)&l.mask]
}

// ReadFractional reads between samples with 4-point cubic Hermite
// interpolation. delay is clamped to [1, Len()-2].
func (l *Line) ReadFractional(delay float64) float64 {
	if len(l.buf) < 4 {
		return l.Read(1)
	}
	delay = math.Min(math.Max(delay, 1), float64(len(l.buf)-2))
	whole := math.Floor(delay)
	p, t := int(whole), delay-whole

	ym1, y0, y1, y2 := l.Read(p-1), l.Read(p), l.Read(p+1), l.Read(p+2)
	c1 := 0.5 * (y1 - ym1)
	c2 := ym1 - 2.5*y0 + 2*y1 - 0.5*y2
	c3 := 0.5*(y2-ym1) + 1.5*(y0-y1)
	return ((c3*t+c2)*t+c1)*t + y0
}

// Reset clears the line.
func (l *Line) Reset() {
	clear(l.buf)
	l.head = 0
}
