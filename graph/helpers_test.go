package graph

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/transport"
)

const (
	testSampleRate = 48000.0
	testBlockSize  = 64
)

// stubOutput copies its stereo input to the sink.
type stubOutput struct {
	module.Base
	sink [][]float64
}

func newStubOutput() *stubOutput {
	return &stubOutput{Base: module.NewBase(module.Shape{Inputs: []module.Bus{module.Stereo("In")}}, nil)}
}

func (o *stubOutput) Prepare(sampleRate float64, maxBlockSize int) error {
	o.sink = [][]float64{make([]float64, maxBlockSize), make([]float64, maxBlockSize)}
	return o.Base.Prepare(sampleRate, maxBlockSize)
}

func (o *stubOutput) Process(b *module.Block) {
	copy(o.sink[0], b.Input(0))
	copy(o.sink[1], b.Input(1))
}

func (o *stubOutput) Sink() [][]float64 { return o.sink }

// stubMonitor publishes the engine block counter.
type stubMonitor struct {
	module.Base
}

func newStubMonitor() *stubMonitor {
	return &stubMonitor{Base: module.NewBase(module.Shape{}, nil, "blocks")}
}

func (m *stubMonitor) Process(b *module.Block) {
	m.Cell("blocks").Store(float64(b.System.Stats.Blocks))
}

// constSource writes value on Out and 2*value on Aux.
type constSource struct {
	module.Base
	value *param.Param
}

func newConstSource() *constSource {
	m := &constSource{Base: module.NewBase(
		module.Shape{Outputs: []module.Bus{module.Mono("Out"), module.Mono("Aux")}},
		param.MustBank(param.Spec{Name: "value", Range: param.Range{Min: -10, Max: 10}, Default: 1, ModChannel: param.NoModulation}),
	)}
	m.value = m.Param("value")
	return m
}

func (m *constSource) Process(b *module.Block) {
	v := m.value.Base()
	for i := range b.Frames {
		b.Out[0][i] = v
		b.Out[1][i] = 2 * v
	}
}

// ramp writes a running sample counter.
type ramp struct {
	module.Base
	n float64
}

func newRamp() *ramp {
	return &ramp{Base: module.NewBase(module.Shape{Outputs: []module.Bus{module.Mono("Out")}}, nil)}
}

func (r *ramp) Process(b *module.Block) {
	out := b.Output(0)
	for i := range out {
		r.n++
		out[i] = r.n
	}
}

// gain multiplies In by the gain parameter, which CV on channel 1 can
// replace absolutely.
type gain struct {
	module.Base
	gain *param.Param
}

func newGain() *gain {
	m := &gain{Base: module.NewBase(
		module.Shape{
			Inputs:  []module.Bus{module.Mono("In"), module.Mono("CV")},
			Outputs: []module.Bus{module.Mono("Out")},
		},
		param.MustBank(param.Spec{Name: "gain", Range: param.Range{Min: 0, Max: 1}, Default: 1, ModChannel: 1, Absolute: true}),
	)}
	m.gain = m.Param("gain")
	return m
}

func (m *gain) Process(b *module.Block) {
	r, cv := b.Modulation(m.gain)
	g := r.Value(cv[0])
	m.gain.Publish(g)
	in, out := b.Input(0), b.Output(0)
	for i := range out {
		out[i] = in[i] * g
	}
}

// mixer adds a summing bus and a plain input.
type mixer struct {
	module.Base
}

func newMixer() *mixer {
	return &mixer{Base: module.NewBase(module.Shape{
		Inputs: []module.Bus{
			{Name: "Sum", Channels: []string{"Sum"}, Summing: true},
			module.Mono("In"),
		},
		Outputs: []module.Bus{module.Mono("Out")},
	}, nil)}
}

func (m *mixer) Process(b *module.Block) {
	s, in, out := b.Input(0), b.Input(1), b.Output(0)
	for i := range out {
		out[i] = s[i] + in[i]
	}
}

// passthrough is feedback tolerant and copies In to Out.
type passthrough struct {
	module.Base
}

func newPassthrough() *passthrough {
	return &passthrough{Base: module.NewBase(module.Shape{
		Inputs:  []module.Bus{module.Mono("In")},
		Outputs: []module.Bus{module.Mono("Out")},
	}, nil)}
}

func (p *passthrough) FeedbackTolerant() bool { return true }

func (p *passthrough) Process(b *module.Block) {
	copy(b.Output(0), b.Input(0))
}

// bomb panics on every block.
type bomb struct {
	module.Base
}

func newBomb() *bomb {
	return &bomb{Base: module.NewBase(module.Shape{Outputs: []module.Bus{module.Mono("Out")}}, nil)}
}

func (m *bomb) Process(b *module.Block) {
	for i := range b.Frames {
		b.Out[0][i] = 1
	}
	panic("boom")
}

// lifecycle counts Process calls that happen after Release.
type lifecycle struct {
	module.Base
	released   atomic.Bool
	violations *atomic.Int64
	releases   *atomic.Int64
}

func (m *lifecycle) Process(b *module.Block) {
	if m.released.Load() {
		m.violations.Add(1)
	}
	copy(b.Output(0), b.Input(0))
}

func (m *lifecycle) Release() {
	if m.released.Swap(true) {
		m.violations.Add(1)
	}
	m.releases.Add(1)
}

// probe records what the engine hands to a module.
type probe struct {
	module.Base
	snaps []transport.Snapshot
	audio []float64
	// inputs records every system input channel.
	inputs [][]float64
	midi   []module.MIDIEvent
}

func newProbe() *probe {
	return &probe{Base: module.NewBase(module.Shape{Outputs: []module.Bus{module.Mono("Out")}}, nil)}
}

func (p *probe) Process(b *module.Block) {
	p.snaps = append(p.snaps, b.Transport)
	if len(b.System.Audio) > 0 {
		p.audio = append(p.audio, b.System.Audio[0][:b.Frames]...)
	}
	for ch, in := range b.System.Audio {
		if ch == len(p.inputs) {
			p.inputs = append(p.inputs, nil)
		}
		p.inputs[ch] = append(p.inputs[ch], in[:b.Frames]...)
	}
	p.midi = append(p.midi, b.System.MIDI...)
	b.Silence()
}

type failPrepare struct {
	module.Base
}

func (m *failPrepare) Prepare(float64, int) error { return errors.New("no memory for you") }

func (m *failPrepare) Process(b *module.Block) { b.Silence() }

func testRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(OutputType, func(module.Env) (module.Module, error) { return newStubOutput(), nil })
	r.MustRegister(MonitorType, func(module.Env) (module.Module, error) { return newStubMonitor(), nil })
	r.MustRegister("const", func(module.Env) (module.Module, error) { return newConstSource(), nil })
	r.MustRegister("ramp", func(module.Env) (module.Module, error) { return newRamp(), nil })
	r.MustRegister("gain", func(module.Env) (module.Module, error) { return newGain(), nil })
	r.MustRegister("mixer", func(module.Env) (module.Module, error) { return newMixer(), nil })
	r.MustRegister("pass", func(module.Env) (module.Module, error) { return newPassthrough(), nil })
	r.MustRegister("bomb", func(module.Env) (module.Module, error) { return newBomb(), nil })
	r.MustRegister("failprep", func(module.Env) (module.Module, error) {
		return &failPrepare{Base: module.NewBase(module.Shape{}, nil)}, nil
	})
	r.MustRegister("broken", func(module.Env) (module.Module, error) { return nil, errors.New("factory failed") })
	return r
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, reg *Registry, opts ...Option) *Engine {
	t.Helper()
	if reg == nil {
		reg = testRegistry()
	}
	base := []Option{
		WithRegistry(reg),
		WithLogger(quietLogger()),
		WithConfig(core.WithSampleRate(testSampleRate), core.WithBlockSize(testBlockSize)),
	}
	e, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := e.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return e
}

func mustAdd(t *testing.T, e *Engine, typeName string) LogicalID {
	t.Helper()
	id, err := e.AddModule(typeName)
	if err != nil {
		t.Fatalf("AddModule(%q): %v", typeName, err)
	}
	return id
}

func mustConnect(t *testing.T, e *Engine, src LogicalID, srcCh int, dst LogicalID, dstCh int) {
	t.Helper()
	if err := e.Connect(src, srcCh, dst, dstCh); err != nil {
		t.Fatalf("Connect(%d:%d -> %d:%d): %v", src, srcCh, dst, dstCh, err)
	}
}

func render(e *Engine, frames int) [][]float64 {
	out := [][]float64{make([]float64, frames), make([]float64, frames)}
	e.Render(out)
	return out
}

type atomic64 = atomic.Int64

func lifecycleFactory(violations, releases *atomic64) Factory {
	return func(module.Env) (module.Module, error) {
		return &lifecycle{
			Base: module.NewBase(module.Shape{
				Inputs:  []module.Bus{module.Mono("In")},
				Outputs: []module.Bus{module.Mono("Out")},
			}, nil),
			violations: violations,
			releases:   releases,
		}, nil
	}
}
