package modules

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/internal/testutil"
)

func TestOscillatorThroughVCAReachesOutput(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	osc := mustAdd(t, e, OscillatorType)
	vca := mustAdd(t, e, VCAType)
	mustConnect(t, e, osc, OscOut, vca, VCAIn)
	mustConnect(t, e, vca, 0, graph.OutputID, 0)
	mustConnect(t, e, vca, 0, graph.OutputID, 1)
	if err := e.SetParameter(vca, "gain", 1); err != nil {
		t.Fatal(err)
	}

	out := render(e, testBlockSize)
	testutil.RequireSignal(t, "left", out[0], 0.1)
	testutil.RequireSignal(t, "right", out[1], 0.1)
	testutil.RequireSliceNearlyEqual(t, out[0], out[1], 0)

	peak, err := e.Meter(osc, OscSyncOut)
	if err != nil {
		t.Fatal(err)
	}
	if peak != 0 {
		t.Fatalf("unconnected sync output peak = %v, want 0", peak)
	}
	if p, _ := e.Meter(osc, OscOut); p < 0.1 {
		t.Fatalf("oscillator output peak = %v", p)
	}
}

func TestConnectBeyondOutputCountIsRejected(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	osc := mustAdd(t, e, OscillatorType)
	vca := mustAdd(t, e, VCAType)
	before := e.Snapshot()

	if err := e.Connect(osc, 5, vca, VCAIn); !errors.Is(err, graph.ErrChannelOutOfRange) {
		t.Fatalf("Connect err = %v, want ErrChannelOutOfRange", err)
	}
	after := e.Snapshot()
	if len(after.Connections) != len(before.Connections) || after.Generation != before.Generation {
		t.Fatalf("graph changed: %+v -> %+v", before, after)
	}
}

func TestTwoModuleCycleIsRejected(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	a := mustAdd(t, e, VCAType)
	b := mustAdd(t, e, VCAType)
	mustConnect(t, e, a, 0, b, VCAIn)

	if err := e.Connect(b, 0, a, VCAIn); !errors.Is(err, graph.ErrCycleRejected) {
		t.Fatalf("Connect err = %v, want ErrCycleRejected", err)
	}
	snap := e.Snapshot()
	if len(snap.Connections) != 1 {
		t.Fatalf("connections = %+v, want only a->b", snap.Connections)
	}
	render(e, testBlockSize)
}

func TestDelayClosesFeedbackLoop(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	osc := mustAdd(t, e, OscillatorType)
	mix := mustAdd(t, e, MixerType)
	dly := mustAdd(t, e, DelayType)

	mustConnect(t, e, osc, OscOut, mix, 0)
	mustConnect(t, e, dly, DelayWet, mix, 1)
	mustConnect(t, e, mix, 0, graph.OutputID, 0)
	mustConnect(t, e, mix, 0, dly, DelayIn)

	snap := e.Snapshot()
	var feedback int
	for _, c := range snap.Connections {
		if c.Feedback {
			feedback++
			if c.To != dly {
				t.Fatalf("feedback edge %+v does not enter the delay", c)
			}
		}
	}
	if feedback != 1 {
		t.Fatalf("feedback edges = %d, want 1", feedback)
	}

	for range 20 {
		out := render(e, testBlockSize)
		testutil.RequireFinite(t, out[0])
	}
}

func TestDisconnectSilencesDownstream(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	osc := mustAdd(t, e, OscillatorType)
	flt := mustAdd(t, e, FilterType)
	mustConnect(t, e, osc, OscOut, flt, FilterIn)
	mustConnect(t, e, flt, 0, graph.OutputID, 0)

	testutil.RequireSignal(t, "connected", render(e, testBlockSize)[0], 1e-3)

	if err := e.Disconnect(osc, OscOut, flt, FilterIn); err != nil {
		t.Fatal(err)
	}
	e.Poll()
	// The ladder state decays for a while after the input goes away.
	var last []float64
	for range 200 {
		last = render(e, testBlockSize)[0]
	}
	if p := testutil.Peak(last); p > 1e-9 {
		t.Fatalf("filter still sounding after disconnect: peak %v", p)
	}
}
