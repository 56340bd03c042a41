package device

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrInvalidSampleRate is returned when a WAV header cannot carry the rate.
var ErrInvalidSampleRate = errors.New("device: invalid sample rate")

// Capture renders frames of audio from r into planar channel buffers.
func Capture(r Renderer, channels, frames int) [][]float64 {
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, frames)
	}
	r.Render(out)
	return out
}

// WriteWAV writes planar audio as a WAV file. With pcm16 the samples are
// clamped and stored as 16-bit PCM, otherwise as 32-bit IEEE float with a
// fact chunk.
func WriteWAV(w io.Writer, sampleRate int, planar [][]float64, pcm16 bool) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if len(planar) == 0 {
		return ErrInvalidChannels
	}
	channels := len(planar)
	frames := len(planar[0])
	for _, ch := range planar {
		if len(ch) != frames {
			return fmt.Errorf("device: channel lengths differ (%d vs %d)", len(ch), frames)
		}
	}

	samples := frames * channels
	bytesPerSample, fmtChunkSize, waveFormat := 4, 18, 3
	chunkSize := 50 + bytesPerSample*samples
	if pcm16 {
		bytesPerSample, fmtChunkSize, waveFormat = 2, 16, 1
		chunkSize = 36 + bytesPerSample*samples
	}

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian
	header := []any{
		[]byte("RIFF"), uint32(chunkSize), []byte("WAVE"),
		[]byte("fmt "), uint32(fmtChunkSize),
		uint16(waveFormat),
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * channels * bytesPerSample), // bytes per second
		uint16(channels * bytesPerSample),              // block align
		uint16(8 * bytesPerSample),
	}
	if !pcm16 {
		header = append(header, uint16(0), []byte("fact"), uint32(4), uint32(frames))
	}
	header = append(header, []byte("data"), uint32(bytesPerSample*samples))
	for _, v := range header {
		if err := binary.Write(bw, le, v); err != nil {
			return fmt.Errorf("device: could not write WAV header: %w", err)
		}
	}

	var buf [4]byte
	for i := range frames {
		for ch := range channels {
			v := planar[ch][i]
			var b []byte
			if pcm16 {
				b = le.AppendUint16(buf[:0], uint16(toPCM16(v)))
			} else {
				b = le.AppendUint32(buf[:0], math.Float32bits(float32(v)))
			}
			if _, err := bw.Write(b); err != nil {
				return fmt.Errorf("device: could not write WAV data: %w", err)
			}
		}
	}
	return bw.Flush()
}

func toPCM16(v float64) int16 {
	s := math.Round(v * math.MaxInt16)
	switch {
	case s > math.MaxInt16:
		return math.MaxInt16
	case s < math.MinInt16:
		return math.MinInt16
	case math.IsNaN(s):
		return 0
	}
	return int16(s)
}
