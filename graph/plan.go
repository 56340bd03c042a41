package graph

import (
	"fmt"
	"slices"

	"github.com/cwbudde/algo-rack/module"
)

// plan is an immutable execution schedule. Once published, only the audio
// goroutine touches the buffers and blocks it refers to.
type plan struct {
	generation uint64
	steps      []step
	feedback   []feedbackCopy
	sink       [][]float64
	scratch    [][]float64
	io         *ioState
}

type step struct {
	node  *node
	block module.Block
	sums  []sumInput
	// idle lists output buffers without cables; they are silenced after
	// every Process call.
	idle [][]float64
}

// sumInput mixes several sources into one summing input channel.
type sumInput struct {
	dst  []float64
	srcs [][]float64
}

type feedbackCopy struct {
	src, dst []float64
}

// ioState carries the system input of a block. It is shared by consecutive
// plans and replaced only while no block is in flight.
type ioState struct {
	sys         module.System
	interleaved []float64
	midi        []module.MIDIEvent
}

func newIOState(channels, maxBlock, midiCapacity int) *ioState {
	io := &ioState{
		interleaved: make([]float64, channels*maxBlock),
		midi:        make([]module.MIDIEvent, 0, midiCapacity),
	}
	io.sys.Zero = make([]float64, maxBlock)
	io.sys.Audio = make([][]float64, channels)
	for ch := range io.sys.Audio {
		io.sys.Audio[ch] = make([]float64, maxBlock)
	}
	return io
}

// schedule orders modules with Kahn's algorithm over non-feedback cables.
// Ties are broken by insertion order. The output module is always last.
func (e *Engine) schedule() ([]*node, error) {
	nodes := make([]*node, 0, len(e.nodes))
	for _, nd := range e.nodes {
		nodes = append(nodes, nd)
	}
	slices.SortFunc(nodes, func(a, b *node) int { return cmpSeq(a.seq, b.seq) })

	indegree := make(map[handle]int, len(nodes))
	for _, c := range e.table.conns {
		if !c.feedback {
			indegree[c.dst]++
		}
	}

	var output *node
	ready := make([]*node, 0, len(nodes))
	for _, nd := range nodes {
		if nd.id == OutputID {
			output = nd
			continue
		}
		if indegree[nd.handle] == 0 {
			ready = append(ready, nd)
		}
	}

	order := make([]*node, 0, len(nodes))
	for len(ready) > 0 {
		nd := ready[0]
		ready = ready[1:]
		order = append(order, nd)
		for _, c := range e.table.conns {
			if c.feedback || c.src != nd.handle {
				continue
			}
			indegree[c.dst]--
			next := e.nodes[c.dst]
			if indegree[c.dst] == 0 && next.id != OutputID {
				i, _ := slices.BinarySearchFunc(ready, next.seq, func(n *node, seq uint64) int { return cmpSeq(n.seq, seq) })
				ready = slices.Insert(ready, i, next)
			}
		}
	}

	if output != nil {
		order = append(order, output)
	}
	if len(order) != len(nodes) {
		return nil, fmt.Errorf("%w: %d modules on a cycle", ErrCycleRejected, len(nodes)-len(order))
	}
	return order, nil
}

func cmpSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// buildPlan compiles the current modules and cables into a plan. It does
// not publish it.
func (e *Engine) buildPlan() (*plan, error) {
	order, err := e.schedule()
	if err != nil {
		return nil, err
	}

	p := &plan{generation: e.generation + 1, io: e.io}

	incoming := make(map[handle][]*connection)
	outConnected := make(map[handle][]bool, len(order))
	for _, nd := range order {
		outConnected[nd.handle] = make([]bool, nd.shape.NumOutputs())
	}
	for _, c := range e.table.conns {
		incoming[c.dst] = append(incoming[c.dst], c)
		outConnected[c.src][c.srcCh] = true
		if c.feedback {
			p.feedback = append(p.feedback, feedbackCopy{src: e.nodes[c.src].out[c.srcCh], dst: c.history})
		}
	}

	p.steps = make([]step, len(order))
	for i, nd := range order {
		s := &p.steps[i]
		s.node = nd

		nIn := nd.shape.NumInputs()
		in := make([][]float64, nIn)
		inConnected := make([]bool, nIn)
		for ch := range in {
			in[ch] = e.io.sys.Zero
		}

		sources := make([][][]float64, nIn)
		for _, c := range incoming[nd.handle] {
			sources[c.dstCh] = append(sources[c.dstCh], e.sourceBuffer(c))
		}
		for ch, srcs := range sources {
			switch len(srcs) {
			case 0:
				continue
			case 1:
				in[ch] = srcs[0]
			default:
				buf := e.pool.Get()
				p.scratch = append(p.scratch, buf)
				in[ch] = buf
				s.sums = append(s.sums, sumInput{dst: buf, srcs: srcs})
			}
			inConnected[ch] = true
		}

		outConn := outConnected[nd.handle]
		for ch, connected := range outConn {
			if !connected && nd.id != OutputID {
				s.idle = append(s.idle, nd.out[ch])
			}
		}

		s.block = module.Block{
			In:           in,
			Out:          nd.out,
			InConnected:  inConnected,
			OutConnected: outConn,
		}

		if nd.id == OutputID {
			if sink, ok := nd.mod.(module.Sink); ok {
				p.sink = sink.Sink()
			}
		}
	}

	return p, nil
}

func (e *Engine) sourceBuffer(c *connection) []float64 {
	if c.feedback {
		return c.history
	}
	return e.nodes[c.src].out[c.srcCh]
}

// markModulation refreshes the modulated flag of every parameter after a
// plan has been published.
func (e *Engine) markModulation(p *plan) {
	for i := range p.steps {
		s := &p.steps[i]
		bank := s.node.mod.Params()
		for j := range bank.Len() {
			prm := bank.At(j)
			prm.SetModulated(s.block.Connected(prm.Spec().ModChannel))
		}
	}
}
