package device

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync/atomic"

	"github.com/viterin/vek/vek32"
)

// ErrInvalidChannels is returned for a channel count below one.
var ErrInvalidChannels = errors.New("device: channel count must be positive")

const bytesPerSample = 4

// Renderer produces planar blocks of audio. *graph.Engine satisfies it.
type Renderer interface {
	Render(out [][]float64)
}

// Stream is an io.Reader yielding interleaved little-endian float32 frames
// rendered on demand. Reads are served a block at a time; a partial frame
// left over from a short read is returned first on the next call.
type Stream struct {
	r        Renderer
	channels int

	planar  [][]float64
	inter   []float64
	f32     []float32
	spare   []byte
	pending []byte
	frames  atomic.Int64
}

// NewStream returns a stream pulling blocks of up to blockFrames from r.
func NewStream(r Renderer, channels, blockFrames int) (*Stream, error) {
	if channels < 1 {
		return nil, ErrInvalidChannels
	}
	if blockFrames < 1 {
		blockFrames = 512
	}
	s := &Stream{
		r:        r,
		channels: channels,
		planar:   make([][]float64, channels),
		inter:    make([]float64, channels*blockFrames),
		f32:      make([]float32, channels*blockFrames),
		spare:    make([]byte, 0, channels*bytesPerSample),
	}
	for ch := range s.planar {
		s.planar[ch] = make([]float64, blockFrames)
	}
	return s, nil
}

// Channels returns the interleaved channel count.
func (s *Stream) Channels() int { return s.channels }

// Frames returns the number of frames rendered so far. It is safe to call
// while another goroutine reads.
func (s *Stream) Frames() int64 { return s.frames.Load() }

// Read implements io.Reader. It never returns io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) > 0 {
			c := copy(p[n:], s.pending)
			s.pending = s.pending[c:]
			n += c
			continue
		}
		frameBytes := s.channels * bytesPerSample
		want := (len(p) - n) / frameBytes
		if want == 0 {
			// Less than one frame of room: render one and keep the rest.
			s.pending = s.render(s.spare[:0], 1)
			continue
		}
		want = min(want, len(s.planar[0]))
		n += len(s.render(p[n:n:len(p)], want))
	}
	return n, nil
}

// render appends frames interleaved frames to dst.
func (s *Stream) render(dst []byte, frames int) []byte {
	out := s.planar[:s.channels]
	for ch := range out {
		out[ch] = out[ch][:frames]
	}
	s.r.Render(out)
	for ch := range out {
		out[ch] = out[ch][:cap(out[ch])]
	}

	inter := s.inter[:frames*s.channels]
	for ch := range s.channels {
		src := s.planar[ch][:frames]
		for i, v := range src {
			inter[i*s.channels+ch] = v
		}
	}
	f32 := vek32.FromFloat64_Into(s.f32[:len(inter)], inter)
	for _, v := range f32 {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	s.frames.Add(int64(frames))
	return dst
}

var _ io.Reader = (*Stream)(nil)
