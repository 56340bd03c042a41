package modules

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-rack/dsp/ringbuf"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Wavetable channels.
const (
	WavePitchIn = iota
	WaveFMIn
	WaveMorphIn
)

const (
	tableSize    = 2048
	tableOctaves = 11
	tableLowHz   = 20.0
)

// tableSet holds one band-limited table per octave for each of the two
// morph endpoints, saw and square. Every table carries one guard sample.
type tableSet struct {
	sampleRate float64
	shapes     [2][tableOctaves][]float64
}

// Wavetable morphs between band-limited saw and square tables. The tables
// are built by inverse FFT on a background goroutine whenever the sample
// rate changes; until they arrive the module outputs silence.
type Wavetable struct {
	module.Base
	freq, morph, level *param.Param
	logger             *slog.Logger

	tables *tableSet
	ready  *ringbuf.Ring[*tableSet]
	cancel context.CancelFunc
	done   chan struct{}
	phase  float64

	readyCell *telemetry.Cell
}

// NewWavetable returns a wavetable oscillator.
func NewWavetable(logger *slog.Logger) *Wavetable {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Wavetable{
		Base: module.NewBase(
			module.Shape{
				Inputs: []module.Bus{
					module.Mono("Pitch"), module.Mono("FM"), module.Mono("Morph CV"),
				},
				Outputs: []module.Bus{module.Mono("Out")},
			},
			mustParams(
				param.Spec{
					Name: "frequency", Unit: "Hz", Range: exponential(20, 20000), Default: 110,
					ModChannel: WaveFMIn, Span: 2,
				},
				param.Spec{
					Name: "morph", Range: linear(0, 1), Default: 0,
					ModChannel: WaveMorphIn, Span: 0.5,
				},
				param.Spec{
					Name: "level", Range: linear(0, 1), Default: 0.8,
					ModChannel: param.NoModulation,
				},
			),
			"ready",
		),
		logger: logger,
	}
	m.freq = m.Param("frequency")
	m.morph = m.Param("morph")
	m.level = m.Param("level")
	m.readyCell = m.Cell("ready")
	return m
}

// Prepare implements module.Module. It discards the current tables and
// starts building new ones for sampleRate.
func (m *Wavetable) Prepare(sampleRate float64, maxBlockSize int) error {
	m.stop()
	m.tables = nil
	m.phase = 0
	m.readyCell.Store(0)

	ready, err := ringbuf.New[*tableSet](1)
	if err != nil {
		return err
	}
	m.ready = ready

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		ts, err := buildTables(ctx, sampleRate)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Error("wavetable: building tables failed", "error", err)
			}
			return
		}
		ready.Push(ts)
	}(m.done)

	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Ready reports whether the tables have been received by the audio side.
func (m *Wavetable) Ready() bool { return m.readyCell.Load() == 1 }

// Process implements module.Module.
func (m *Wavetable) Process(b *module.Block) {
	if m.tables == nil {
		ts, ok := m.ready.Pop()
		if !ok {
			b.Silence()
			return
		}
		m.tables = ts
		m.readyCell.Store(1)
	}
	if b.Frames == 0 {
		return
	}

	sr := m.SampleRate()
	fr, fm := b.Modulation(m.freq)
	mr, mcv := b.Modulation(m.morph)
	level := m.level.Base()
	pitched := b.Connected(WavePitchIn)
	pitch := b.Input(WavePitchIn)
	out := b.Output(0)

	var f, morph float64
	for i := range b.Frames {
		f = fr.Value(fm[i])
		if pitched {
			f = PitchToHz(pitch[i]) * f / fr.Base()
		}
		f = math.Min(math.Max(f, 0.1), 0.45*sr)
		morph = mr.Value(mcv[i])

		oct := tableOctave(f)
		saw := readTable(m.tables.shapes[0][oct], m.phase)
		sq := readTable(m.tables.shapes[1][oct], m.phase)
		out[i] = level * (saw + (sq-saw)*morph)

		m.phase = wrap(m.phase + f/sr)
	}

	m.freq.Publish(f)
	m.morph.Publish(morph)
	m.level.Publish(level)
}

// Release implements module.Module.
func (m *Wavetable) Release() {
	m.stop()
	m.tables = nil
}

func (m *Wavetable) stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
}

func tableOctave(f float64) int {
	oct := int(math.Log2(f / tableLowHz))
	return min(max(oct, 0), tableOctaves-1)
}

func readTable(t []float64, phase float64) float64 {
	pos := phase * tableSize
	i := int(pos)
	frac := pos - float64(i)
	return t[i] + (t[i+1]-t[i])*frac
}

// buildTables synthesises every table. Octave k is used for fundamentals
// below tableLowHz*2^(k+1) and holds only harmonics under Nyquist there.
func buildTables(ctx context.Context, sampleRate float64) (*tableSet, error) {
	plan, err := algofft.NewPlan64(tableSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	bins := make([]complex128, tableSize)
	wave := make([]complex128, tableSize)
	ts := &tableSet{sampleRate: sampleRate}

	for shape := range ts.shapes {
		for oct := range tableOctaves {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			top := tableLowHz * math.Exp2(float64(oct+1))
			harmonics := min(int(sampleRate/2/top), tableSize/2-1)
			harmonics = max(harmonics, 1)

			clear(bins)
			for h := 1; h <= harmonics; h++ {
				if shape == 1 && h%2 == 0 {
					continue
				}
				// Sine series a_h*sin(2*pi*h*n/N).
				a := 1 / float64(h)
				bins[h] = complex(0, -a/2)
				bins[tableSize-h] = complex(0, a/2)
			}
			if err := plan.Inverse(wave, bins); err != nil {
				return nil, fmt.Errorf("inverse fft: %w", err)
			}
			ts.shapes[shape][oct] = normalizeTable(wave)
		}
	}
	return ts, nil
}

func normalizeTable(wave []complex128) []float64 {
	t := make([]float64, len(wave)+1)
	var peak float64
	for i, c := range wave {
		t[i] = real(c)
		peak = math.Max(peak, math.Abs(t[i]))
	}
	if peak > 0 {
		for i := range wave {
			t[i] /= peak
		}
	}
	t[len(wave)] = t[0]
	return t
}
