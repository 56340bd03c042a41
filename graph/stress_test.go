package graph

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/cwbudde/algo-rack/module"
)

func isValidationError(err error) bool {
	return errors.Is(err, ErrChannelOutOfRange) ||
		errors.Is(err, ErrChannelAlreadyConnected) ||
		errors.Is(err, ErrCycleRejected) ||
		errors.Is(err, ErrModuleNotFound) ||
		errors.Is(err, ErrConnectionNotFound)
}

func widths(buses []module.Bus) int {
	n := 0
	for _, b := range buses {
		n += b.Width()
	}
	return n
}

// TestConcurrentMutationStress edits the graph from the test goroutine while
// another goroutine renders continuously. Run it with -race.
func TestConcurrentMutationStress(t *testing.T) {
	t.Parallel()

	var violations, releases atomic64
	reg := testRegistry()
	reg.MustRegister("life", lifecycleFactory(&violations, &releases))
	e := newTestEngine(t, reg)

	var (
		stop     atomic.Bool
		done     = make(chan struct{})
		nonFinite atomic.Int64
	)
	go func() {
		defer close(done)
		out := [][]float64{make([]float64, testBlockSize), make([]float64, testBlockSize)}
		for !stop.Load() {
			e.Render(out)
			for _, v := range out[0] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					nonFinite.Add(1)
				}
			}
		}
	}()

	iterations := 3000
	if testing.Short() {
		iterations = 300
	}

	types := []string{"life", "life", "gain", "const", "mixer", "pass", "ramp"}
	rng := rand.New(rand.NewPCG(7, 11))
	var ids []LogicalID
	created := int64(0)

	pick := func() LogicalID {
		if len(ids) == 0 || rng.IntN(8) == 0 {
			return OutputID
		}
		return ids[rng.IntN(len(ids))]
	}

	for i := range iterations {
		switch op := rng.IntN(10); {
		case op < 3 || len(ids) < 2:
			typeName := types[rng.IntN(len(types))]
			id, err := e.AddModule(typeName)
			if err != nil {
				t.Fatalf("iteration %d: AddModule(%q): %v", i, typeName, err)
			}
			if typeName == "life" {
				created++
			}
			ids = append(ids, id)
		case op < 4:
			k := rng.IntN(len(ids))
			if err := e.RemoveModule(ids[k]); err != nil {
				t.Fatalf("iteration %d: RemoveModule: %v", i, err)
			}
			ids = append(ids[:k], ids[k+1:]...)
		case op < 8:
			err := e.Connect(pick(), rng.IntN(3), pick(), rng.IntN(3))
			if err != nil && !isValidationError(err) {
				t.Fatalf("iteration %d: Connect: %v", i, err)
			}
		case op < 9:
			conns := e.Snapshot().Connections
			if len(conns) == 0 {
				continue
			}
			c := conns[rng.IntN(len(conns))]
			if err := e.Disconnect(c.From, c.FromChannel, c.To, c.ToChannel); err != nil {
				t.Fatalf("iteration %d: Disconnect: %v", i, err)
			}
		default:
			_ = e.SetParameter(pick(), "gain", rng.Float64())
			_ = e.SetParameter(pick(), "value", rng.Float64())
		}
	}

	stop.Store(true)
	<-done

	if err := e.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := violations.Load(); v != 0 {
		t.Fatalf("%d modules processed after release or released twice", v)
	}
	if got := releases.Load(); got != created {
		t.Fatalf("released %d of %d lifecycle modules", got, created)
	}
	if n := nonFinite.Load(); n != 0 {
		t.Fatalf("%d non-finite samples rendered", n)
	}
}

// TestBusShapeInvariant patches random module and channel pairs and checks
// that the table only ever holds cables inside the declared shapes.
func TestBusShapeInvariant(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	rng := rand.New(rand.NewPCG(42, 1))

	ids := []LogicalID{OutputID, MonitorID}
	for _, typeName := range []string{"const", "gain", "gain", "mixer", "pass", "ramp", "mixer"} {
		ids = append(ids, mustAdd(t, e, typeName))
	}

	snap := e.Snapshot()
	shapes := make(map[LogicalID][2]int)
	for _, m := range snap.Modules {
		shapes[m.ID] = [2]int{widths(m.Inputs), widths(m.Outputs)}
	}

	for range 2000 {
		src := ids[rng.IntN(len(ids))]
		dst := ids[rng.IntN(len(ids))]
		srcCh := rng.IntN(6) - 2
		dstCh := rng.IntN(6) - 2

		err := e.Connect(src, srcCh, dst, dstCh)
		inRange := srcCh >= 0 && srcCh < shapes[src][1] && dstCh >= 0 && dstCh < shapes[dst][0]
		switch {
		case !inRange && !errors.Is(err, ErrChannelOutOfRange):
			t.Fatalf("%d:%d -> %d:%d outside shape, err = %v", src, srcCh, dst, dstCh, err)
		case inRange && err != nil && !errors.Is(err, ErrChannelAlreadyConnected) && !errors.Is(err, ErrCycleRejected):
			t.Fatalf("%d:%d -> %d:%d unexpected err = %v", src, srcCh, dst, dstCh, err)
		}
	}

	snap = e.Snapshot()
	driven := make(map[[2]int]int)
	for _, c := range snap.Connections {
		if c.FromChannel < 0 || c.FromChannel >= shapes[c.From][1] {
			t.Fatalf("cable %+v leaves an undeclared output", c)
		}
		if c.ToChannel < 0 || c.ToChannel >= shapes[c.To][0] {
			t.Fatalf("cable %+v enters an undeclared input", c)
		}
		driven[[2]int{int(c.To), c.ToChannel}]++
	}
	for _, m := range snap.Modules {
		ch := 0
		for _, bus := range m.Inputs {
			for range bus.Channels {
				if n := driven[[2]int{int(m.ID), ch}]; n > 1 && !bus.Summing {
					t.Fatalf("module %d input %d has %d sources", m.ID, ch, n)
				}
				ch++
			}
		}
	}

	if _, err := e.schedule(); err != nil {
		t.Fatalf("table holds a cycle: %v", err)
	}
	render(e, testBlockSize)
}
