package modules

import (
	"github.com/cwbudde/algo-rack/dsp/ladder"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
)

// Filter channels.
const (
	FilterIn = iota
	FilterCutoffCV
	FilterResonanceCV
)

// filterControlRate is the number of samples between coefficient updates.
const filterControlRate = 32

// Filter is a four-pole ladder low-pass. Modulation is sampled every
// filterControlRate frames.
type Filter struct {
	module.Base
	cutoff, resonance, drive *param.Param
	ladder                   *ladder.Filter
}

// NewFilter returns a ladder filter module.
func NewFilter() *Filter {
	m := &Filter{
		Base: module.NewBase(
			module.Shape{
				Inputs: []module.Bus{
					module.Mono("In"), module.Mono("Cutoff CV"), module.Mono("Resonance CV"),
				},
				Outputs: []module.Bus{module.Mono("Out")},
			},
			mustParams(
				param.Spec{
					Name: "cutoff", Unit: "Hz", Range: exponential(20, 20000), Default: 1000,
					ModChannel: FilterCutoffCV, Span: 4,
				},
				param.Spec{
					Name: "resonance", Range: linear(0, ladder.MaxResonance), Default: 0.5,
					ModChannel: FilterResonanceCV, Span: 2,
				},
				param.Spec{
					Name: "drive", Range: exponential(0.1, 10), Default: 1,
					ModChannel: param.NoModulation,
				},
			),
		),
	}
	m.cutoff = m.Param("cutoff")
	m.resonance = m.Param("resonance")
	m.drive = m.Param("drive")
	return m
}

// Prepare implements module.Module.
func (m *Filter) Prepare(sampleRate float64, maxBlockSize int) error {
	f, err := ladder.New(sampleRate)
	if err != nil {
		return err
	}
	m.ladder = f
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

// Process implements module.Module.
func (m *Filter) Process(b *module.Block) {
	if b.Frames == 0 {
		return
	}
	cr, ccv := b.Modulation(m.cutoff)
	rr, rcv := b.Modulation(m.resonance)
	drive := m.drive.Base()
	in, out := b.Input(FilterIn), b.Output(0)

	var fc, res float64
	for start := 0; start < b.Frames; start += filterControlRate {
		end := min(start+filterControlRate, b.Frames)
		fc, res = cr.Value(ccv[start]), rr.Value(rcv[start])
		m.ladder.Set(fc, res, drive)
		m.ladder.ProcessTo(out[start:end], in[start:end])
	}

	m.cutoff.Publish(fc)
	m.resonance.Publish(res)
	m.drive.Publish(drive)
}

// Release implements module.Module.
func (m *Filter) Release() { m.ladder = nil }
