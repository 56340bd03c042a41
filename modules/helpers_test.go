package modules

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/module"
)

const (
	testSampleRate = 48000.0
	testBlockSize  = 512
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...graph.Option) *graph.Engine {
	t.Helper()
	base := []graph.Option{
		graph.WithRegistry(DefaultRegistry(WithSpectrumSize(1024))),
		graph.WithLogger(quietLogger()),
		graph.WithConfig(core.WithSampleRate(testSampleRate), core.WithBlockSize(testBlockSize)),
	}
	e, err := graph.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.Close(ctx); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return e
}

func mustAdd(t *testing.T, e *graph.Engine, typeName string) graph.LogicalID {
	t.Helper()
	id, err := e.AddModule(typeName)
	if err != nil {
		t.Fatalf("AddModule(%q): %v", typeName, err)
	}
	return id
}

func mustConnect(t *testing.T, e *graph.Engine, src graph.LogicalID, srcCh int, dst graph.LogicalID, dstCh int) {
	t.Helper()
	if err := e.Connect(src, srcCh, dst, dstCh); err != nil {
		t.Fatalf("Connect(%d:%d -> %d:%d): %v", src, srcCh, dst, dstCh, err)
	}
}

func mustSet(t *testing.T, m module.Module, name string, v float64) {
	t.Helper()
	p, ok := m.Params().Get(name)
	if !ok {
		t.Fatalf("no parameter %q", name)
	}
	if _, err := p.Set(v); err != nil {
		t.Fatalf("Set(%q, %v): %v", name, v, err)
	}
}

func render(e *graph.Engine, frames int) [][]float64 {
	out := [][]float64{make([]float64, frames), make([]float64, frames)}
	e.Render(out)
	return out
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
