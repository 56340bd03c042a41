package module

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/transport"
)

// Block is everything a module sees during one Process call. The engine
// owns every slice; modules must only write to Out.
type Block struct {
	Frames int
	// In and Out hold one buffer per flat channel. Buffers are MaxBlockSize
	// long; only the first Frames samples are meaningful.
	In  [][]float64
	Out [][]float64
	// InConnected and OutConnected tell which channels have cables.
	InConnected  []bool
	OutConnected []bool

	Transport transport.Snapshot
	System    *System
}

// Input returns the first Frames samples of input channel ch.
func (b *Block) Input(ch int) []float64 { return b.In[ch][:b.Frames] }

// Output returns the first Frames samples of output channel ch.
func (b *Block) Output(ch int) []float64 { return b.Out[ch][:b.Frames] }

// Connected reports whether input channel ch has a cable.
func (b *Block) Connected(ch int) bool {
	return ch >= 0 && ch < len(b.InConnected) && b.InConnected[ch]
}

// OutputConnected reports whether output channel ch has a cable.
func (b *Block) OutputConnected(ch int) bool {
	return ch >= 0 && ch < len(b.OutConnected) && b.OutConnected[ch]
}

// Modulation returns the resolver for p together with the samples of its
// modulation input. Without a modulation input the samples are silent.
func (b *Block) Modulation(p *param.Param) (param.Resolver, []float64) {
	ch := p.Spec().ModChannel
	r := p.Resolver(b.Connected(ch))
	if ch < 0 || ch >= len(b.In) {
		return r, b.System.Zero[:b.Frames]
	}
	return r, b.In[ch][:b.Frames]
}

// Silence zeroes every output channel.
func (b *Block) Silence() {
	core.ZeroAll(b.Out, b.Frames)
}

// System is the engine-wide input of one block, shared read-only by every
// module.
type System struct {
	// Audio holds the device input channels.
	Audio [][]float64
	// MIDI holds the events received for this block, ordered by frame.
	MIDI []MIDIEvent
	// Zero is a buffer of silence. It is never written.
	Zero  []float64
	Stats Stats
}

// Stats describes the engine as of the previous block.
type Stats struct {
	Blocks      uint64
	Generation  uint64
	Modules     int
	RenderNanos int64
	BudgetNanos int64
	Faults      uint64
	Underruns   uint64
	MIDIDropped uint64
}

// MIDIEvent is a short MIDI message stamped with a frame offset inside the
// block. SysEx is not carried.
type MIDIEvent struct {
	Frame int
	Data  [3]byte
	Len   uint8
}

// Message returns the event bytes as a gomidi message without copying.
func (e *MIDIEvent) Message() midi.Message {
	return midi.Message(e.Data[:e.Len])
}

// NewMIDIEvent stamps msg at frame. Messages longer than three bytes are
// truncated.
func NewMIDIEvent(frame int, msg []byte) MIDIEvent {
	ev := MIDIEvent{Frame: frame}
	ev.Len = uint8(copy(ev.Data[:], msg))
	return ev
}
