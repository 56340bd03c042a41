package graph

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/telemetry"
)

// node is the engine's record of one module instance.
type node struct {
	handle    handle
	id        LogicalID
	typeName  string
	seq       uint64
	mod       module.Module
	shape     module.Shape
	permanent bool
	feedback  bool

	// out holds one buffer per output channel. The audio goroutine is the
	// only writer once the node is published.
	out    [][]float64
	cells  *telemetry.Set
	meters *telemetry.Set
	peaks  []*telemetry.Cell

	faulted atomic.Bool
}

func meterName(ch int) string {
	return "peak." + strconv.Itoa(ch)
}

// newNode builds and prepares a module. On failure the module is released.
func (e *Engine) newNode(typeName string) (*node, error) {
	factory := e.registry.Lookup(typeName)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModuleType, typeName)
	}

	mod, err := factory(module.Env{
		SampleRate:   e.cfg.SampleRate,
		MaxBlockSize: e.cfg.MaxBlockSize,
		Logger:       e.logger.With("module", typeName),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build %q: %v", ErrPrepareFailed, typeName, err)
	}
	if mod == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", ErrPrepareFailed, typeName)
	}

	shape := mod.Shape()
	if err := shape.Validate(); err != nil {
		mod.Release()
		return nil, fmt.Errorf("%w: %q: %v", ErrPrepareFailed, typeName, err)
	}

	if err := mod.Prepare(e.cfg.SampleRate, e.cfg.MaxBlockSize); err != nil {
		mod.Release()
		return nil, fmt.Errorf("%w: prepare %q: %v", ErrPrepareFailed, typeName, err)
	}

	e.seq++
	nd := &node{
		handle:   e.ids.newHandle(),
		typeName: typeName,
		seq:      e.seq,
		mod:      mod,
		shape:    shape,
		feedback: module.IsFeedbackTolerant(mod),
		cells:    module.TelemetryOf(mod),
		meters:   telemetry.NewSet(),
	}
	for ch := range shape.NumOutputs() {
		nd.peaks = append(nd.peaks, nd.meters.Add(meterName(ch)))
	}
	nd.out = e.pool.Channels(shape.NumOutputs())
	return nd, nil
}

// release frees the module and its buffers. The node must no longer be
// reachable from any plan the audio goroutine could render.
func (e *Engine) release(nd *node) {
	nd.mod.Release()
	e.pool.PutChannels(nd.out)
	nd.out = nil
}
