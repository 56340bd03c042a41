package buffer

import "sync"

// Pool provides sync.Pool-based reuse of sample buffers that all share one
// length, typically the engine's maximum block size.
type Pool struct {
	length int
	pool   sync.Pool
}

// NewPool returns a Pool handing out buffers of the given length.
func NewPool(length int) *Pool {
	if length < 0 {
		length = 0
	}
	p := &Pool{length: length}
	p.pool.New = func() any {
		s := make([]float64, p.length)
		return &s
	}
	return p
}

// Len returns the length of every buffer the pool hands out.
func (p *Pool) Len() int {
	return p.length
}

// Get returns a zeroed buffer. Callers must return it via Put when done.
func (p *Pool) Get() []float64 {
	s := *p.pool.Get().(*[]float64)
	for i := range s {
		s[i] = 0
	}
	return s
}

// Channels returns n zeroed buffers.
func (p *Pool) Channels(n int) [][]float64 {
	if n <= 0 {
		return nil
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = p.Get()
	}
	return out
}

// Put returns a buffer to the pool for reuse. Buffers of a different
// length are dropped. The caller must not use the buffer afterwards.
func (p *Pool) Put(s []float64) {
	if len(s) != p.length || cap(s) < p.length {
		return
	}
	p.pool.Put(&s)
}

// PutChannels returns every buffer in chans to the pool.
func (p *Pool) PutChannels(chans [][]float64) {
	for _, ch := range chans {
		p.Put(ch)
	}
}
