package modules

import (
	"math"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-rack/internal/testutil"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/transport"
)

func TestDelayEchoes(t *testing.T) {
	t.Parallel()

	m := NewDelay()
	mustSet(t, m, "time", 0.01)
	mustSet(t, m, "feedback", 0.5)
	mustSet(t, m, "mix", 1)
	r := testutil.NewRig(t, m, 1000, 64)
	if !m.FeedbackTolerant() {
		t.Fatal("delay must accept feedback cables")
	}

	r.Connect(DelayIn, testutil.Impulse(64, 0))
	wet := r.Run(64)[DelayWet]
	want := make([]float64, 64)
	want[10], want[20], want[30] = 1, 0.5, 0.25
	want[40], want[50], want[60] = 0.125, 0.0625, 0.03125
	testutil.RequireSliceNearlyEqual(t, wet, want, 1e-12)
}

func TestDelayMixAndTimeModulation(t *testing.T) {
	t.Parallel()

	m := NewDelay()
	mustSet(t, m, "feedback", 0)
	mustSet(t, m, "mix", 0)
	r := testutil.NewRig(t, m, testSampleRate, testBlockSize)

	in := testutil.Noise(1, 0.5, testBlockSize)
	r.Connect(DelayIn, in)
	testutil.RequireSliceNearlyEqual(t, r.Run(testBlockSize)[DelayOut], in, 0)

	timeParam, _ := m.Params().Get("time")
	r.Connect(DelayTimeCV, testutil.DC(0, testBlockSize))
	r.Run(testBlockSize)
	if got := timeParam.Live(); math.Abs(got-0.125) > 1e-12 {
		t.Fatalf("modulated time = %v, want 0.125", got)
	}
}

func TestSequencerFollowsTransport(t *testing.T) {
	t.Parallel()

	m := NewSequencer()
	for i := range SequencerSteps {
		mustSet(t, m, "step "+string(rune('1'+i)), float64(i+1)/10)
	}
	mustSet(t, m, "length", 3)
	r := testutil.NewRig(t, m, 1000, 500)
	r.Transport.Tempo = 120 // 500 samples per beat

	stopped := r.Run(500)
	testutil.RequireSilent(t, "gate while stopped", stopped[SeqGateOut])

	r.Transport.State = transport.Playing
	r.Transport.Position = 0
	cv := r.Collect(SeqCVOut, 500, 2000)
	r.Transport.Position = 0
	gate := r.Collect(SeqGateOut, 500, 2000)

	for _, tc := range []struct {
		at   int
		cv   float64
		gate float64
	}{
		{0, 0.1, 1}, {249, 0.1, 1}, {250, 0.1, 0},
		{500, 0.2, 1}, {1000, 0.3, 1}, {1500, 0.1, 1}, {1750, 0.1, 0},
	} {
		if cv[tc.at] != tc.cv || gate[tc.at] != tc.gate {
			t.Fatalf("sample %d: cv %v gate %v, want %v %v", tc.at, cv[tc.at], gate[tc.at], tc.cv, tc.gate)
		}
	}
	if m.Step() != 0 {
		t.Fatalf("step = %d", m.Step())
	}
}

func TestSequencerExternalClock(t *testing.T) {
	t.Parallel()

	m := NewSequencer()
	mustSet(t, m, "step 1", 0.1)
	mustSet(t, m, "step 2", 0.2)
	mustSet(t, m, "step 3", 0.3)
	r := testutil.NewRig(t, m, 1000, 40)

	clock := make([]float64, 40)
	for _, at := range []int{0, 10, 20} {
		clock[at], clock[at+1] = 1, 1
	}
	r.Connect(SeqClockIn, clock)
	r.Connect(SeqResetIn, testutil.Impulse(40, 30))
	out := r.Run(40)

	for at, want := range map[int]float64{0: 0.1, 9: 0.1, 10: 0.2, 20: 0.3, 29: 0.3, 30: 0.1} {
		if got := out[SeqCVOut][at]; got != want {
			t.Fatalf("cv[%d] = %v, want %v", at, got, want)
		}
	}
	if out[SeqGateOut][1] != 1 || out[SeqGateOut][2] != 0 {
		t.Fatal("gate does not follow the clock")
	}
}

func TestNoiseIsSeeded(t *testing.T) {
	t.Parallel()

	run := func(seed uint64) []float64 {
		r := testutil.NewRig(t, NewNoise(seed), testSampleRate, 256)
		return r.Collect(NoiseWhite, 256, 1024)
	}
	a, b, c := run(7), run(7), run(8)
	testutil.RequireSliceNearlyEqual(t, a, b, 0)
	if testutil.Peak(a) > 0.5 || testutil.Peak(a) == 0 {
		t.Fatalf("peak = %v, want within level 0.5", testutil.Peak(a))
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced the same noise")
	}

	m := NewNoise(7)
	mustSet(t, m, "rate", 100)
	r := testutil.NewRig(t, m, 1000, 100)
	random := r.Run(100)[NoiseRandom]
	changes := 0
	for i := 1; i < len(random); i++ {
		if random[i] < 0 || random[i] > 1 {
			t.Fatalf("random CV %v out of range", random[i])
		}
		if random[i] != random[i-1] {
			changes++
		}
	}
	if changes < 8 || changes > 10 {
		t.Fatalf("random CV changed %d times, want ~10", changes)
	}
}

func TestRegistrySeedsNoiseInstancesApart(t *testing.T) {
	t.Parallel()

	f := DefaultRegistry(WithSeed(3)).Lookup(NoiseType)
	first, err := f(module.Env{})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := f(module.Env{})
	a := testutil.NewRig(t, first, testSampleRate, 64).Run(64)[NoiseWhite]
	b := testutil.NewRig(t, second, testSampleRate, 64).Run(64)[NoiseWhite]
	if a[0] == b[0] && a[1] == b[1] {
		t.Fatal("instances share a seed")
	}
}

func TestMIDIInMonophonicLastNote(t *testing.T) {
	t.Parallel()

	m := NewMIDIIn()
	r := testutil.NewRig(t, m, testSampleRate, 64)
	r.System.MIDI = []module.MIDIEvent{
		module.NewMIDIEvent(10, midi.NoteOn(0, 60, 127)),
		module.NewMIDIEvent(20, midi.NoteOn(0, 64, 64)),
		module.NewMIDIEvent(25, midi.ControlChange(0, 1, 127)),
		module.NewMIDIEvent(30, midi.NoteOff(0, 64)),
		module.NewMIDIEvent(40, midi.NoteOn(0, 60, 0)),
	}
	out := r.Run(64)
	gate, pitch, vel, wheel := out[MIDIGate], out[MIDIPitch], out[MIDIVelocity], out[MIDIModWheel]

	if gate[9] != 0 || gate[10] != 1 || gate[39] != 1 || gate[40] != 0 {
		t.Fatalf("gate edges wrong: %v", gate[8:42])
	}
	for at, note := range map[int]float64{10: 60, 20: 64, 30: 60} {
		if got := PitchToNote(pitch[at]); math.Abs(got-note) > 1e-9 {
			t.Fatalf("pitch[%d] = note %v, want %v", at, got, note)
		}
	}
	if vel[10] != 1 || math.Abs(vel[20]-64.0/127) > 1e-12 {
		t.Fatalf("velocity = %v, %v", vel[10], vel[20])
	}
	if wheel[24] != 0 || wheel[25] != 1 {
		t.Fatalf("mod wheel = %v, %v", wheel[24], wheel[25])
	}
}

func TestMIDIInChannelFilter(t *testing.T) {
	t.Parallel()

	m := NewMIDIIn()
	mustSet(t, m, "channel", 2)
	r := testutil.NewRig(t, m, testSampleRate, 16)
	r.System.MIDI = []module.MIDIEvent{
		module.NewMIDIEvent(0, midi.NoteOn(0, 60, 100)),
		module.NewMIDIEvent(4, midi.NoteOn(1, 72, 100)),
	}
	gate := r.Run(16)[MIDIGate]
	if gate[0] != 0 || gate[4] != 1 {
		t.Fatalf("gate = %v", gate)
	}
}
