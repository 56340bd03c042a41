package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-rack/dsp/buffer"
	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/dsp/ringbuf"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/transport"
)

// Engine owns the module graph and renders it.
//
// Render must be called from a single audio goroutine. Every other method
// may be called from any goroutine; commands are serialized internally and
// never block Render.
type Engine struct {
	mu         sync.Mutex
	cfg        core.Config
	registry   *Registry
	logger     *slog.Logger
	ids        *idMap
	nodes      map[handle]*node
	seq        uint64
	table      table
	pool       *buffer.Pool
	io         *ioState
	generation uint64
	retired    []retired
	closed     bool

	inputChannels int
	midiCapacity  int

	state     atomic.Int32
	current   atomic.Pointer[plan]
	epoch     atomic.Uint64
	transport *transport.Transport
	input     *ringbuf.Ring[float64]
	midi      *ringbuf.Ring[module.MIDIEvent]
	faults    *ringbuf.Ring[fault]
	inputSeen atomic.Bool

	// Owned by the audio goroutine.
	stats module.Stats

	blocks      atomic.Uint64
	renderNanos atomic.Int64
	faultCount  atomic.Uint64
	underruns   atomic.Uint64
	midiDropped atomic.Uint64
}

type fault struct {
	node  *node
	cause any
}

// New builds an engine with its permanent output and monitor modules and
// publishes the first plan.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cfg := core.ApplyOptions(o.config...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.registry == nil {
		return nil, errors.New("graph: no registry")
	}
	if err := o.registry.checkPermanent(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.inputCapacity == 0 {
		o.inputCapacity = 4 * cfg.MaxBlockSize
	}

	e := &Engine{
		cfg:           cfg,
		registry:      o.registry,
		logger:        o.logger,
		ids:           newIDMap(),
		nodes:         make(map[handle]*node),
		pool:          buffer.NewPool(cfg.MaxBlockSize),
		inputChannels: o.inputChannels,
		midiCapacity:  o.midiCapacity,
		transport:     transport.New(cfg.SampleRate),
	}
	e.io = newIOState(o.inputChannels, cfg.MaxBlockSize, o.midiCapacity)

	if o.tempo != 0 {
		if err := e.transport.SetTempo(o.tempo); err != nil {
			return nil, err
		}
	}

	var err error
	if e.input, err = ringbuf.New[float64](max(1, o.inputChannels) * o.inputCapacity); err != nil {
		return nil, err
	}
	if e.midi, err = ringbuf.New[module.MIDIEvent](o.midiCapacity); err != nil {
		return nil, err
	}
	if e.faults, err = ringbuf.New[fault](o.faultCapacity); err != nil {
		return nil, err
	}

	for _, sys := range []struct {
		id       LogicalID
		typeName string
	}{
		{OutputID, OutputType},
		{MonitorID, MonitorType},
	} {
		nd, err := e.newNode(sys.typeName)
		if err != nil {
			e.releaseAll()
			return nil, err
		}
		if _, ok := nd.mod.(module.Sink); sys.id == OutputID && !ok {
			e.release(nd)
			e.releaseAll()
			return nil, fmt.Errorf("graph: %q module does not implement module.Sink", sys.typeName)
		}
		if err := e.ids.reserve(sys.id, nd.handle); err != nil {
			e.release(nd)
			e.releaseAll()
			return nil, err
		}
		nd.id = sys.id
		nd.permanent = true
		e.nodes[nd.handle] = nd
	}

	if err := e.rebuild(nil, nil); err != nil {
		e.releaseAll()
		return nil, err
	}
	e.logger.Debug("graph: engine started",
		"sample_rate", cfg.SampleRate, "max_block", cfg.MaxBlockSize)
	return e, nil
}

// Config returns the processing configuration.
func (e *Engine) Config() core.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Transport returns the engine clock. Its request methods may be called
// from any goroutine.
func (e *Engine) Transport() *transport.Transport { return e.transport }

// State returns the lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Generation returns the generation of the published plan.
func (e *Engine) Generation() uint64 {
	if p := e.current.Load(); p != nil {
		return p.generation
	}
	return 0
}

// Types returns the module types AddModule accepts.
func (e *Engine) Types() []string { return e.registry.Types() }

// TypeInfo returns the name, description and permanence of every module
// type the engine can build.
func (e *Engine) TypeInfo() []TypeInfo { return e.registry.Info() }

// AddModule instantiates a module of the given type and returns its
// logical ID.
func (e *Engine) AddModule(typeName string) (LogicalID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	e.reclaim()

	if typeName == OutputType || typeName == MonitorType {
		return 0, fmt.Errorf("%w: %q is a system module", ErrUnknownModuleType, typeName)
	}

	nd, err := e.newNode(typeName)
	if err != nil {
		return 0, err
	}
	nd.id = e.ids.assign(nd.handle)
	e.nodes[nd.handle] = nd

	if err := e.rebuild(nil, nil); err != nil {
		delete(e.nodes, nd.handle)
		e.ids.remove(nd.id)
		e.release(nd)
		return 0, err
	}

	e.logger.Debug("graph: module added", "id", nd.id, "type", typeName)
	return nd.id, nil
}

// RemoveModule deletes a module and every cable touching it.
func (e *Engine) RemoveModule(id LogicalID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.reclaim()

	nd, err := e.lookup(id)
	if err != nil {
		return err
	}
	if nd.permanent {
		return fmt.Errorf("%w: %d (%s)", ErrPermanentModule, id, nd.typeName)
	}

	saved := append([]*connection(nil), e.table.conns...)
	removed := e.table.detach(nd.handle)
	delete(e.nodes, nd.handle)

	if err := e.rebuild([]*node{nd}, removed); err != nil {
		e.table.conns = saved
		e.nodes[nd.handle] = nd
		return err
	}
	e.ids.remove(id)

	e.logger.Debug("graph: module removed", "id", id, "type", nd.typeName, "cables", len(removed))
	return nil
}

// Connect patches output channel srcCh of src into input channel dstCh of
// dst. Channels are flat indices over all buses of a side.
func (e *Engine) Connect(src LogicalID, srcCh int, dst LogicalID, dstCh int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.reclaim()

	c, err := e.validate(src, srcCh, dst, dstCh)
	if err != nil {
		return err
	}
	if c.feedback {
		c.history = e.pool.Get()
	}

	e.table.add(c)
	if err := e.rebuild(nil, nil); err != nil {
		e.table.removeAt(len(e.table.conns) - 1)
		if c.history != nil {
			e.pool.Put(c.history)
		}
		return err
	}

	e.logger.Debug("graph: connected",
		"src", src, "src_channel", srcCh, "dst", dst, "dst_channel", dstCh, "feedback", c.feedback)
	return nil
}

// validate checks a prospective cable and returns it without adding it.
func (e *Engine) validate(src LogicalID, srcCh int, dst LogicalID, dstCh int) (*connection, error) {
	from, err := e.lookup(src)
	if err != nil {
		return nil, err
	}
	to, err := e.lookup(dst)
	if err != nil {
		return nil, err
	}

	if srcCh < 0 || srcCh >= from.shape.NumOutputs() {
		return nil, fmt.Errorf("%w: module %d (%s) output %d, has %d",
			ErrChannelOutOfRange, src, from.typeName, srcCh, from.shape.NumOutputs())
	}
	if dstCh < 0 || dstCh >= to.shape.NumInputs() {
		return nil, fmt.Errorf("%w: module %d (%s) input %d, has %d",
			ErrChannelOutOfRange, dst, to.typeName, dstCh, to.shape.NumInputs())
	}

	if e.table.find(from.handle, srcCh, to.handle, dstCh) >= 0 {
		return nil, fmt.Errorf("%w: %d:%d -> %d:%d exists", ErrChannelAlreadyConnected, src, srcCh, dst, dstCh)
	}
	bus, _ := to.shape.InputBus(dstCh)
	if !bus.Summing && e.table.drives(to.handle, dstCh) {
		return nil, fmt.Errorf("%w: module %d input %d (%s)",
			ErrChannelAlreadyConnected, dst, dstCh, to.shape.InputLabel(dstCh))
	}

	c := &connection{src: from.handle, srcCh: srcCh, dst: to.handle, dstCh: dstCh}
	if e.table.reaches(to.handle, from.handle) {
		if !to.feedback {
			return nil, fmt.Errorf("%w: %d -> %d", ErrCycleRejected, src, dst)
		}
		c.feedback = true
	}
	return c, nil
}

// Disconnect removes a cable.
func (e *Engine) Disconnect(src LogicalID, srcCh int, dst LogicalID, dstCh int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.reclaim()

	from, err := e.lookup(src)
	if err != nil {
		return err
	}
	to, err := e.lookup(dst)
	if err != nil {
		return err
	}

	i := e.table.find(from.handle, srcCh, to.handle, dstCh)
	if i < 0 {
		return fmt.Errorf("%w: %d:%d -> %d:%d", ErrConnectionNotFound, src, srcCh, dst, dstCh)
	}

	c := e.table.removeAt(i)
	if err := e.rebuild(nil, []*connection{c}); err != nil {
		e.table.conns = append(e.table.conns[:i], append([]*connection{c}, e.table.conns[i:]...)...)
		return err
	}

	e.logger.Debug("graph: disconnected", "src", src, "src_channel", srcCh, "dst", dst, "dst_channel", dstCh)
	return nil
}

// SetParameter stores a new base value, clamped to the parameter range.
// It does not rebuild the plan.
func (e *Engine) SetParameter(id LogicalID, name string, value float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	prm, err := e.param(id, name)
	if err != nil {
		return err
	}
	_, err = prm.Set(value)
	return err
}

// SetModulationMode selects absolute (true) or relative (false) CV mapping
// for a parameter.
func (e *Engine) SetModulationMode(id LogicalID, name string, absolute bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	prm, err := e.param(id, name)
	if err != nil {
		return err
	}
	prm.SetAbsolute(absolute)
	return nil
}

// Parameter returns the current state of a parameter.
func (e *Engine) Parameter(id LogicalID, name string) (ParamInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prm, err := e.param(id, name)
	if err != nil {
		return ParamInfo{}, err
	}
	return paramInfo(prm), nil
}

// Telemetry returns the latest value of a module telemetry cell. Engine
// meters are available as "peak.<channel>".
func (e *Engine) Telemetry(id LogicalID, cell string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nd, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	if c := nd.cells.Cell(cell); c != nil {
		return c.Load(), nil
	}
	if c := nd.meters.Cell(cell); c != nil {
		return c.Load(), nil
	}
	return 0, fmt.Errorf("%w: module %d (%s) has no cell %q", ErrUnknownCell, id, nd.typeName, cell)
}

// Meter returns the peak absolute sample of an output channel during the
// last block.
func (e *Engine) Meter(id LogicalID, ch int) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nd, err := e.lookup(id)
	if err != nil {
		return 0, err
	}
	if ch < 0 || ch >= len(nd.peaks) {
		return 0, fmt.Errorf("%w: module %d output %d", ErrChannelOutOfRange, id, ch)
	}
	return nd.peaks[ch].Load(), nil
}

// Stats returns engine counters as of the last rendered block.
func (e *Engine) Stats() module.Stats {
	return module.Stats{
		Blocks:      e.blocks.Load(),
		Generation:  e.Generation(),
		RenderNanos: e.renderNanos.Load(),
		Faults:      e.faultCount.Load(),
		Underruns:   e.underruns.Load(),
		MIDIDropped: e.midiDropped.Load(),
	}
}

// Poll releases retired resources and logs module faults reported by the
// audio goroutine. Applications call it periodically from a control
// goroutine; every command also does this implicitly.
func (e *Engine) Poll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reclaim()
}

// Reconfigure changes the sample rate or maximum block size. The graph is
// silenced until every module has been prepared again. If a module fails
// to prepare, the previous configuration is restored.
func (e *Engine) Reconfigure(ctx context.Context, opts ...core.Option) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	next := e.cfg
	for _, opt := range opts {
		if opt != nil {
			opt(&next)
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if next == e.cfg {
		return nil
	}

	old := e.current.Swap(nil)
	if err := e.waitIdle(ctx); err != nil {
		e.current.Store(old)
		return err
	}
	e.reclaimAll()

	prev := e.cfg
	order, err := e.schedule()
	if err != nil {
		e.current.Store(old)
		return err
	}
	if err := e.prepareAll(order, next); err != nil {
		if rerr := e.prepareAll(order, prev); rerr != nil {
			e.logger.Error("graph: restoring configuration failed", "err", rerr)
		}
		// Preparing again may have replaced sink buffers the old plan points to.
		if rerr := e.rebuild(nil, nil); rerr != nil {
			e.logger.Error("graph: republishing after failed reconfigure", "err", rerr)
		}
		return err
	}

	e.cfg = next
	e.pool = buffer.NewPool(next.MaxBlockSize)
	e.io = newIOState(e.inputChannels, next.MaxBlockSize, e.midiCapacity)
	for _, nd := range order {
		nd.out = e.pool.Channels(nd.shape.NumOutputs())
	}
	for _, c := range e.table.conns {
		if c.feedback {
			c.history = e.pool.Get()
		}
	}
	e.transport.SetSampleRate(next.SampleRate)

	if err := e.rebuild(nil, nil); err != nil {
		return err
	}
	e.logger.Info("graph: reconfigured", "sample_rate", next.SampleRate, "max_block", next.MaxBlockSize)
	return nil
}

func (e *Engine) prepareAll(order []*node, cfg core.Config) error {
	for _, nd := range order {
		if err := nd.mod.Prepare(cfg.SampleRate, cfg.MaxBlockSize); err != nil {
			return fmt.Errorf("%w: prepare %d (%s): %v", ErrPrepareFailed, nd.id, nd.typeName, err)
		}
	}
	return nil
}

// Close unpublishes the graph, waits for the audio goroutine to leave it
// and releases every module. Render outputs silence afterwards.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	old := e.current.Swap(nil)
	if err := e.waitIdle(ctx); err != nil {
		e.current.Store(old)
		return err
	}
	e.reclaimAll()
	e.releaseAll()
	e.closed = true
	e.state.Store(int32(Idle))
	return nil
}

// releaseAll releases every module. Nothing may be published.
func (e *Engine) releaseAll() {
	for h, nd := range e.nodes {
		e.release(nd)
		delete(e.nodes, h)
	}
	for _, c := range e.table.conns {
		if c.history != nil {
			e.pool.Put(c.history)
		}
	}
	e.table.conns = nil
}

func (e *Engine) lookup(id LogicalID) (*node, error) {
	h, ok := e.ids.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrModuleNotFound, id)
	}
	return e.nodes[h], nil
}

func (e *Engine) param(id LogicalID, name string) (*param.Param, error) {
	nd, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	prm, ok := nd.mod.Params().Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: module %d (%s) has no parameter %q", ErrUnknownParameter, id, nd.typeName, name)
	}
	return prm, nil
}

// rebuild compiles and publishes a new plan. removedNodes and removedConns
// are released once the audio goroutine can no longer observe them. On
// failure nothing is published and nothing is retired.
func (e *Engine) rebuild(removedNodes []*node, removedConns []*connection) error {
	prevState := e.State()
	e.state.Store(int32(Building))

	p, err := e.buildPlan()
	if err != nil {
		e.state.Store(int32(prevState))
		return err
	}

	e.generation = p.generation
	old := e.current.Swap(p)
	stamp := e.epoch.Load()
	if old != nil || len(removedNodes) > 0 || len(removedConns) > 0 {
		e.retired = append(e.retired, retired{
			epoch: stamp,
			plan:  old,
			nodes: removedNodes,
			conns: removedConns,
		})
	}
	e.markModulation(p)
	e.state.Store(int32(Draining))
	e.reclaim()
	return nil
}
