// Package transport implements the play/pause/stop clock shared by every
// module in a graph.
//
// Control goroutines request state changes; the audio goroutine applies
// them at block boundaries through Begin and End and hands each module a
// read-only Snapshot. Position and state are owned by the audio goroutine.
package transport

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// State is the transport run state.
type State int32

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ParseState converts a state name produced by String back to a State.
func ParseState(s string) (State, error) {
	switch s {
	case "stopped", "":
		return Stopped, nil
	case "playing":
		return Playing, nil
	case "paused":
		return Paused, nil
	default:
		return Stopped, fmt.Errorf("transport: unknown state %q", s)
	}
}

// Tempo limits in beats per minute.
const (
	MinTempo     = 1.0
	MaxTempo     = 999.0
	DefaultTempo = 120.0
)

// ErrInvalidTempo is returned by SetTempo for values outside [MinTempo, MaxTempo].
var ErrInvalidTempo = errors.New("transport: invalid tempo")

// Snapshot is the per-block view of the transport handed to modules.
type Snapshot struct {
	State      State
	Position   int64 // samples since the last stop, at the start of the block
	Tempo      float64
	SampleRate float64
	// Reset is set on the first block after a stop so transport-synced
	// modules can return to their initial state.
	Reset bool
}

// Playing reports whether the transport is running.
func (s Snapshot) Playing() bool { return s.State == Playing }

// SamplesPerBeat returns the length of one beat in samples.
func (s Snapshot) SamplesPerBeat() float64 {
	if s.Tempo <= 0 {
		return math.Inf(1)
	}
	return s.SampleRate * 60 / s.Tempo
}

// Beats returns the position in beats at the start of the block.
func (s Snapshot) Beats() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.Position) / s.SamplesPerBeat()
}

type request uint32

const (
	requestNone request = iota
	requestPlay
	requestPause
)

// Transport is one engine's clock.
type Transport struct {
	// pending holds the latest play or pause request. A stop is latched
	// separately so a following Play cannot swallow it.
	pending    atomic.Uint32
	stop       atomic.Bool
	tempo      atomic.Uint64
	sampleRate atomic.Uint64

	// Published by the audio goroutine for readers elsewhere.
	pubState    atomic.Int32
	pubPosition atomic.Int64

	// Audio goroutine only.
	state    State
	position int64
	reset    bool
}

// New returns a stopped transport.
func New(sampleRate float64) *Transport {
	t := &Transport{}
	t.tempo.Store(math.Float64bits(DefaultTempo))
	t.sampleRate.Store(math.Float64bits(sampleRate))
	return t
}

// Play requests playback from the current position.
func (t *Transport) Play() { t.pending.Store(uint32(requestPlay)) }

// Pause requests a pause that keeps the current position.
func (t *Transport) Pause() { t.pending.Store(uint32(requestPause)) }

// Stop requests a stop; the position returns to zero. It cancels an earlier
// play or pause request, while a Play issued after it still applies on the
// same block, after the reset.
func (t *Transport) Stop() {
	t.pending.Store(uint32(requestNone))
	t.stop.Store(true)
}

// Request asks for the given state.
func (t *Transport) Request(s State) {
	switch s {
	case Playing:
		t.Play()
	case Paused:
		t.Pause()
	default:
		t.Stop()
	}
}

// SetTempo changes the tempo from the next block on.
func (t *Transport) SetTempo(bpm float64) error {
	if math.IsNaN(bpm) || bpm < MinTempo || bpm > MaxTempo {
		return fmt.Errorf("%w: %v", ErrInvalidTempo, bpm)
	}
	t.tempo.Store(math.Float64bits(bpm))
	return nil
}

// Tempo returns the current tempo in beats per minute.
func (t *Transport) Tempo() float64 { return math.Float64frombits(t.tempo.Load()) }

// SetSampleRate updates the rate used to convert positions to beats. It is
// called by the engine while no block is being rendered.
func (t *Transport) SetSampleRate(sampleRate float64) {
	t.sampleRate.Store(math.Float64bits(sampleRate))
}

// State returns the state as of the last rendered block.
func (t *Transport) State() State { return State(t.pubState.Load()) }

// Position returns the position as of the end of the last rendered block.
func (t *Transport) Position() int64 { return t.pubPosition.Load() }

// Begin applies any pending request and returns the snapshot for a block.
// Audio goroutine only.
func (t *Transport) Begin() Snapshot {
	if t.stop.Swap(false) {
		t.state = Stopped
		t.position = 0
		t.reset = true
	}
	switch request(t.pending.Swap(uint32(requestNone))) {
	case requestPlay:
		t.state = Playing
	case requestPause:
		if t.state == Playing {
			t.state = Paused
		}
	}

	snap := Snapshot{
		State:      t.state,
		Position:   t.position,
		Tempo:      t.Tempo(),
		SampleRate: math.Float64frombits(t.sampleRate.Load()),
		Reset:      t.reset,
	}
	t.reset = false
	t.pubState.Store(int32(t.state))
	return snap
}

// End advances the position by frames when playing. Audio goroutine only.
func (t *Transport) End(frames int) {
	if t.state == Playing {
		t.position += int64(frames)
	}
	t.pubPosition.Store(t.position)
}
