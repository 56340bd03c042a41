package modules

import (
	"testing"

	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/internal/testutil"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/transport"
)

func TestOutputScalesIntoSink(t *testing.T) {
	t.Parallel()

	m := NewOutput()
	mustSet(t, m, "level", 0.5)
	r := testutil.NewRig(t, m, testSampleRate, 32)
	r.Connect(0, testutil.DC(1, 32))
	r.Connect(1, testutil.DC(-0.5, 32))
	r.Run(32)

	sink := m.Sink()
	testutil.RequireSliceNearlyEqual(t, sink[0][:32], testutil.DC(0.5, 32), 0)
	testutil.RequireSliceNearlyEqual(t, sink[1][:32], testutil.DC(-0.25, 32), 0)
	if l, rr := m.Cell("peak.L").Load(), m.Cell("peak.R").Load(); l != 0.5 || rr != 0.25 {
		t.Fatalf("peaks = %v, %v", l, rr)
	}
}

func TestOutputKeepsSinkAcrossPrepare(t *testing.T) {
	t.Parallel()

	m := NewOutput()
	if err := m.Prepare(testSampleRate, 256); err != nil {
		t.Fatal(err)
	}
	before := m.Sink()
	first := &before[0][0]

	if err := m.Prepare(testSampleRate, 128); err != nil {
		t.Fatal(err)
	}
	if len(m.Sink()[0]) != 128 || &m.Sink()[0][0] != first {
		t.Fatal("smaller prepare reallocated the sink")
	}
	if err := m.Prepare(testSampleRate, 512); err != nil {
		t.Fatal(err)
	}
	if len(m.Sink()[1]) != 512 {
		t.Fatalf("sink length = %d, want 512", len(m.Sink()[1]))
	}

	m.Release()
	if err := m.Prepare(testSampleRate, 64); err != nil {
		t.Fatal(err)
	}
	if len(m.Sink()) != 2 || len(m.Sink()[0]) != 64 {
		t.Fatal("prepare after release did not rebuild the sink")
	}
}

func TestMonitorPublishesStats(t *testing.T) {
	t.Parallel()

	m := NewMonitor()
	r := testutil.NewRig(t, m, 1000, 16)
	r.System.Stats = module.Stats{
		Blocks: 7, Generation: 3, Modules: 4,
		RenderNanos: 250, BudgetNanos: 1000, Faults: 1,
	}
	r.Transport.State = transport.Playing
	r.Transport.Position = 1000
	r.Run(16)

	want := map[string]float64{
		"load": 0.25, "blocks": 7, "generation": 3, "modules": 4,
		"faults": 1, "playing": 1, "tempo": transport.DefaultTempo, "beats": 2,
	}
	for name, v := range want {
		if got := m.Cell(name).Load(); got != v {
			t.Fatalf("%s = %v, want %v", name, got, v)
		}
	}
}

func TestMonitorThroughEngine(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	mustAdd(t, e, OscillatorType)
	for range 3 {
		render(e, testBlockSize)
	}
	blocks, err := e.Telemetry(graph.MonitorID, "blocks")
	if err != nil {
		t.Fatal(err)
	}
	if blocks != 2 {
		t.Fatalf("blocks seen by the third block = %v, want 2", blocks)
	}
	if n, _ := e.Telemetry(graph.MonitorID, "modules"); n != 3 {
		t.Fatalf("modules = %v, want 3", n)
	}
}

func TestAudioInCopiesDeviceChannels(t *testing.T) {
	t.Parallel()

	m := NewAudioIn()
	mustSet(t, m, "gain", 2)
	r := testutil.NewRig(t, m, testSampleRate, 8)
	r.System.Audio = [][]float64{testutil.DC(0.25, 8), testutil.DC(-0.5, 8)}
	out := r.Run(8)
	testutil.RequireSliceNearlyEqual(t, out[0], testutil.DC(0.5, 8), 0)
	testutil.RequireSliceNearlyEqual(t, out[1], testutil.DC(-1, 8), 0)

	r.System.Audio = r.System.Audio[:1]
	testutil.RequireSilent(t, "missing device channel", r.Run(8)[1])
}

func TestAudioInThroughEngine(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	in := mustAdd(t, e, AudioInType)
	mustConnect(t, e, in, 0, graph.OutputID, 0)
	mustConnect(t, e, in, 1, graph.OutputID, 1)

	frames := make([]float64, 2*testBlockSize)
	for i := 0; i < len(frames); i += 2 {
		frames[i], frames[i+1] = 0.5, -0.5
	}
	if n := e.PushAudio(frames); n != len(frames) {
		t.Fatalf("PushAudio accepted %d samples", n)
	}
	out := render(e, testBlockSize)
	testutil.RequireSliceNearlyEqual(t, out[0], testutil.DC(0.5, testBlockSize), 0)
	testutil.RequireSliceNearlyEqual(t, out[1], testutil.DC(-0.5, testBlockSize), 0)
}
