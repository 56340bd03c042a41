package modules

import (
	"math"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/delay"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Delay channels.
const (
	DelayIn = iota
	DelayTimeCV
)

const (
	DelayOut = iota
	DelayWet
)

const (
	maxDelaySeconds = 2.0
	// Per-sample smoothing of the delay time, about 20 ms at 48 kHz.
	delayGlide = 0.001
)

// Delay is an echo with feedback. It tolerates being placed in a cycle:
// a cable that closes one carries the source's previous block.
type Delay struct {
	module.Base
	time, feedback, mix *param.Param

	line    *delay.Line
	samples float64

	timeCell *telemetry.Cell
}

// NewDelay returns a delay module.
func NewDelay() *Delay {
	m := &Delay{
		Base: module.NewBase(
			module.Shape{
				Inputs:  []module.Bus{module.Mono("In"), module.Mono("Time CV")},
				Outputs: []module.Bus{module.Mono("Out"), module.Mono("Wet")},
			},
			mustParams(
				param.Spec{
					Name: "time", Unit: "s", Range: exponential(0.001, maxDelaySeconds), Default: 0.25,
					ModChannel: DelayTimeCV, Span: 1,
				},
				param.Spec{
					Name: "feedback", Range: linear(0, 0.95), Default: 0.35,
					ModChannel: param.NoModulation,
				},
				param.Spec{
					Name: "mix", Range: linear(0, 1), Default: 0.25,
					ModChannel: param.NoModulation,
				},
			),
			"time",
		),
	}
	m.time = m.Param("time")
	m.feedback = m.Param("feedback")
	m.mix = m.Param("mix")
	m.timeCell = m.Cell("time")
	return m
}

// FeedbackTolerant implements module.FeedbackTolerant.
func (m *Delay) FeedbackTolerant() bool { return true }

// Prepare implements module.Module.
func (m *Delay) Prepare(sampleRate float64, maxBlockSize int) error {
	size := int(math.Ceil(maxDelaySeconds*sampleRate)) + 4
	if m.line == nil {
		line, err := delay.New(size)
		if err != nil {
			return err
		}
		m.line = line
	} else if err := m.line.Resize(size); err != nil {
		return err
	}
	m.samples = m.time.Base() * sampleRate
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Delay) Process(b *module.Block) {
	if b.Frames == 0 {
		return
	}
	sr := m.SampleRate()
	tr, tcv := b.Modulation(m.time)
	fb, mix := m.feedback.Base(), m.mix.Base()
	in := b.Input(DelayIn)
	out, wet := b.Output(DelayOut), b.Output(DelayWet)
	limit := float64(m.line.Len() - 2)

	var t float64
	for i, x := range in {
		t = tr.Value(tcv[i])
		m.samples += (core.Clamp(t*sr, 1, limit) - m.samples) * delayGlide
		y := m.line.ReadFractional(m.samples)
		m.line.Write(core.FlushDenormals(x + y*fb))
		out[i] = x*(1-mix) + y*mix
		wet[i] = y
	}

	m.time.Publish(t)
	m.feedback.Publish(fb)
	m.mix.Publish(mix)
	m.timeCell.Store(m.samples / sr)
}

// Release implements module.Module.
func (m *Delay) Release() { m.line = nil }
