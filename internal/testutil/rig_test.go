package testutil

import (
	"testing"

	"github.com/cwbudde/algo-rack/module"
)

type echo struct{ module.Base }

func (e *echo) Process(b *module.Block) {
	copy(b.Output(0), b.Input(0))
	if b.Transport.Playing() {
		b.Output(0)[0] += 1
	}
}

func TestRigFeedsInputs(t *testing.T) {
	t.Parallel()

	m := &echo{Base: module.NewBase(module.Shape{
		Inputs:  []module.Bus{module.Mono("In")},
		Outputs: []module.Bus{module.Mono("Out")},
	}, nil)}
	r := NewRig(t, m, 48000, 8)

	RequireSilent(t, "unconnected", r.Run(8)[0])

	r.Connect(0, []float64{1, 2, 3})
	RequireSliceNearlyEqual(t, r.Run(4)[0], []float64{1, 2, 3, 0}, 0)

	got := r.Collect(0, 8, 20)
	if len(got) != 20 {
		t.Fatalf("Collect len = %d, want 20", len(got))
	}
	if r.Transport.Position != 8+4+20 {
		t.Fatalf("position = %d", r.Transport.Position)
	}

	r.Disconnect(0)
	RequireSilent(t, "disconnected", r.Run(8)[0])
}

func TestSignals(t *testing.T) {
	t.Parallel()

	s := Sine(1000, 48000, 1, 480)
	if n := CountRisingZeroCrossings(s); n < 9 || n > 10 {
		t.Fatalf("crossings = %d, want ~10", n)
	}
	if p := Peak(s); p < 0.99 || p > 1 {
		t.Fatalf("peak = %v", p)
	}
	a, b := Noise(3, 1, 64), Noise(3, 1, 64)
	RequireSliceNearlyEqual(t, a, b, 0)
	RequireSliceNearlyEqual(t, Gate(5, 1, 3), []float64{0, 1, 1, 0, 0}, 0)
	RequireSliceNearlyEqual(t, Impulse(3, 1), []float64{0, 1, 0}, 0)
	RequireSliceNearlyEqual(t, DC(2, 2), []float64{2, 2}, 0)
}
