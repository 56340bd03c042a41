package modules

import (
	"math"
	"strconv"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// SequencerSteps is the number of steps.
const SequencerSteps = 8

// Sequencer channels.
const (
	SeqClockIn = iota
	SeqResetIn
)

const (
	SeqCVOut = iota
	SeqGateOut
)

// Sequencer is an eight-step CV sequencer. Without a Clock cable it follows
// the transport at "rate" steps per beat and only runs while playing. With
// a Clock cable every rising edge advances one step and the gate follows the
// clock.
type Sequencer struct {
	module.Base
	steps                [SequencerSteps]*param.Param
	length, rate, gateLn *param.Param

	values  [SequencerSteps]float64
	step    int
	started bool
	clock   edge
	reset   edge

	stepCell *telemetry.Cell
}

// NewSequencer returns a step sequencer.
func NewSequencer() *Sequencer {
	specs := make([]param.Spec, 0, SequencerSteps+3)
	for i := range SequencerSteps {
		specs = append(specs, param.Spec{
			Name: "step " + strconv.Itoa(i+1), Range: linear(0, 1), Default: 0.5,
			ModChannel: param.NoModulation,
		})
	}
	specs = append(specs,
		param.Spec{
			Name: "length", Range: linear(1, SequencerSteps), Default: SequencerSteps,
			ModChannel: param.NoModulation, Discrete: true,
		},
		param.Spec{
			Name: "rate", Unit: "steps/beat", Range: exponential(0.25, 8), Default: 1,
			ModChannel: param.NoModulation,
		},
		param.Spec{
			Name: "gate", Range: linear(0.05, 1), Default: 0.5,
			ModChannel: param.NoModulation,
		},
	)

	m := &Sequencer{
		Base: module.NewBase(
			module.Shape{
				Inputs:  []module.Bus{module.Mono("Clock"), module.Mono("Reset")},
				Outputs: []module.Bus{module.Mono("CV"), module.Mono("Gate")},
			},
			mustParams(specs...),
			"step",
		),
	}
	for i := range m.steps {
		m.steps[i] = m.Param("step " + strconv.Itoa(i+1))
	}
	m.length = m.Param("length")
	m.rate = m.Param("rate")
	m.gateLn = m.Param("gate")
	m.stepCell = m.Cell("step")
	return m
}

// Prepare implements module.Module.
func (m *Sequencer) Prepare(sampleRate float64, maxBlockSize int) error {
	m.rewind()
	return m.Base.Prepare(sampleRate, maxBlockSize)
}

func (m *Sequencer) rewind() {
	m.step, m.started = 0, false
	m.clock.reset()
	m.reset.reset()
}

// Process implements module.Module.
func (m *Sequencer) Process(b *module.Block) {
	tr := b.Transport
	if tr.Reset {
		m.rewind()
	}
	for i, p := range m.steps {
		m.values[i] = p.Base()
		p.Publish(m.values[i])
	}
	length := int(m.length.Base())
	rate := m.rate.Base()
	gateLen := m.gateLn.Base()
	m.length.Publish(float64(length))
	m.rate.Publish(rate)
	m.gateLn.Publish(gateLen)

	cv, gate := b.Output(SeqCVOut), b.Output(SeqGateOut)
	clock, reset := b.Input(SeqClockIn), b.Input(SeqResetIn)
	external := b.Connected(SeqClockIn)
	resettable := b.Connected(SeqResetIn)
	spb := tr.SamplesPerBeat()

	for i := range b.Frames {
		if resettable && m.reset.rising(reset[i]) {
			m.step, m.started = 0, false
		}

		g := 0.0
		switch {
		case external:
			if m.clock.rising(clock[i]) {
				if m.started {
					m.step = (m.step + 1) % length
				}
				m.started = true
			}
			if m.clock.high {
				g = 1
			}
		case tr.Playing():
			pos := float64(tr.Position+int64(i)) / spb * rate
			whole := math.Floor(pos)
			m.step = int(whole) % length
			if pos-whole < gateLen {
				g = 1
			}
		}
		if m.step >= length {
			m.step = 0
		}
		cv[i] = m.values[m.step]
		gate[i] = g
	}

	m.stepCell.Store(float64(m.step))
}

// Step returns the current step index.
func (m *Sequencer) Step() int { return m.step }
