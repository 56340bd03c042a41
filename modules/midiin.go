package modules

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// MIDI input output channels.
const (
	MIDIGate = iota
	MIDIPitch
	MIDIVelocity
	MIDIModWheel
)

// MIDIIn converts the system MIDI stream into monophonic gate, pitch,
// velocity and mod wheel CV with last-note priority. Events are applied at
// their frame offsets.
type MIDIIn struct {
	module.Base
	channel *param.Param

	held     [128]bool
	order    []uint8
	pitch    float64
	velocity float64
	wheel    float64

	note, gate *telemetry.Cell
}

// NewMIDIIn returns a MIDI input module.
func NewMIDIIn() *MIDIIn {
	m := &MIDIIn{
		Base: module.NewBase(
			module.Shape{Outputs: []module.Bus{
				module.Mono("Gate"), module.Mono("Pitch"),
				module.Mono("Velocity"), module.Mono("Mod Wheel"),
			}},
			mustParams(param.Spec{
				// 0 listens on every channel, 1..16 on one.
				Name: "channel", Range: linear(0, 16), Default: 0,
				ModChannel: param.NoModulation, Discrete: true,
			}),
			"note", "gate",
		),
		order: make([]uint8, 0, 128),
	}
	m.channel = m.Param("channel")
	m.note = m.Cell("note")
	m.gate = m.Cell("gate")
	return m
}

// Process implements module.Module.
func (m *MIDIIn) Process(b *module.Block) {
	want := int(m.channel.Base())
	m.channel.Publish(float64(want))

	gate, pitch := b.Output(MIDIGate), b.Output(MIDIPitch)
	vel, wheel := b.Output(MIDIVelocity), b.Output(MIDIModWheel)

	events := b.System.MIDI
	next := 0
	for i := range b.Frames {
		for next < len(events) && events[next].Frame <= i {
			m.apply(events[next].Message(), want)
			next++
		}
		g := 0.0
		if len(m.order) > 0 {
			g = 1
		}
		gate[i] = g
		pitch[i] = m.pitch
		vel[i] = m.velocity
		wheel[i] = m.wheel
	}
	for ; next < len(events); next++ {
		m.apply(events[next].Message(), want)
	}

	if len(m.order) > 0 {
		m.gate.Store(1)
	} else {
		m.gate.Store(0)
	}
	m.note.Store(PitchToNote(m.pitch))
}

func (m *MIDIIn) apply(msg midi.Message, want int) {
	var ch, key, val uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &val):
		if !listening(want, ch) {
			return
		}
		if val == 0 {
			m.release(key)
			return
		}
		m.press(key, val)
	case msg.GetNoteOff(&ch, &key, &val):
		if listening(want, ch) {
			m.release(key)
		}
	case msg.GetControlChange(&ch, &key, &val):
		if listening(want, ch) && key == 1 {
			m.wheel = float64(val) / 127
		}
	}
}

func (m *MIDIIn) press(key, vel uint8) {
	key &= 0x7f
	if m.held[key] {
		m.remove(key)
	}
	m.held[key] = true
	m.order = append(m.order, key)
	m.pitch = NoteToPitch(float64(key))
	m.velocity = float64(vel) / 127
}

func (m *MIDIIn) release(key uint8) {
	key &= 0x7f
	if !m.held[key] {
		return
	}
	m.held[key] = false
	m.remove(key)
	if n := len(m.order); n > 0 {
		m.pitch = NoteToPitch(float64(m.order[n-1]))
	}
}

func (m *MIDIIn) remove(key uint8) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func listening(want int, ch uint8) bool {
	return want == 0 || int(ch)+1 == want
}
