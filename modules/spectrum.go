package modules

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/cwbudde/algo-rack/dsp/ringbuf"
	"github.com/cwbudde/algo-rack/dsp/spectrum"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/telemetry"
)

const (
	// SpectrumBands is the number of octave bands published.
	SpectrumBands = 10
	// Lower edge of the first band.
	spectrumLowHz = 20.0
	spectrumPoll  = 5 * time.Millisecond
)

// Spectrum passes its input through unchanged and analyses it on a
// background goroutine. The audio goroutine only pushes samples into a
// ring; the worker publishes octave band levels in dB, the peak frequency
// and the number of analysed frames as telemetry.
type Spectrum struct {
	module.Base
	size   int
	logger *slog.Logger

	ring   *ringbuf.Ring[float64]
	cancel context.CancelFunc
	done   chan struct{}

	bands  []*telemetry.Cell
	peak   *telemetry.Cell
	frames *telemetry.Cell
}

// NewSpectrum returns an analyser working on frames of size samples.
func NewSpectrum(size int, logger *slog.Logger) *Spectrum {
	if logger == nil {
		logger = slog.Default()
	}
	names := make([]string, 0, SpectrumBands+2)
	for i := range SpectrumBands {
		names = append(names, "band."+strconv.Itoa(i))
	}
	names = append(names, "peak_hz", "frames")

	m := &Spectrum{
		Base: module.NewBase(
			module.Shape{
				Inputs:  []module.Bus{module.Mono("In")},
				Outputs: []module.Bus{module.Mono("Thru")},
			},
			nil, names...,
		),
		size:   size,
		logger: logger,
	}
	for i := range SpectrumBands {
		m.bands = append(m.bands, m.Cell("band."+strconv.Itoa(i)))
	}
	m.peak = m.Cell("peak_hz")
	m.frames = m.Cell("frames")
	for _, c := range m.bands {
		c.Store(spectrum.FloorDB)
	}
	return m
}

// Prepare implements module.Module. It restarts the analysis worker.
func (m *Spectrum) Prepare(sampleRate float64, maxBlockSize int) error {
	m.stop()

	a, err := spectrum.NewAnalyzer(m.size)
	if err != nil {
		return err
	}
	ring, err := ringbuf.New[float64](4 * max(m.size, maxBlockSize))
	if err != nil {
		return err
	}
	m.ring = ring

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, ring, a, sampleRate, m.done)

	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Spectrum) Process(b *module.Block) {
	in := b.Input(0)
	copy(b.Output(0), in)
	if b.Connected(0) {
		// A full ring drops the newest samples; analysis is best effort.
		m.ring.PushSlice(in)
	}
}

// Release implements module.Module.
func (m *Spectrum) Release() { m.stop() }

func (m *Spectrum) stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
}

func (m *Spectrum) run(ctx context.Context, ring *ringbuf.Ring[float64], a *spectrum.Analyzer, sampleRate float64, done chan struct{}) {
	defer close(done)

	frame := make([]float64, a.Size())
	levels := make([]float64, len(m.bands))
	fill := 0

	tick := time.NewTicker(spectrumPoll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		for {
			fill += ring.PopSlice(frame[fill:])
			if fill < len(frame) {
				break
			}
			fill = 0

			power, err := a.Analyze(frame)
			if err != nil {
				m.logger.Error("spectrum: analysis failed", "error", err)
				return
			}
			spectrum.OctaveBands(levels, power, sampleRate, spectrumLowHz)
			for i, v := range levels {
				m.bands[i].Store(v)
			}
			m.peak.Store(a.BinFrequency(spectrum.Peak(power), sampleRate))
			m.frames.Store(m.frames.Load() + 1)
		}
	}
}
