package graph

import (
	"time"

	"github.com/cwbudde/algo-vecmath"
	"github.com/viterin/vek"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/transport"
)

// Render fills out with the next len(out[0]) frames of the graph. Every
// channel of out must have the same length. Requests longer than the
// maximum block size are rendered as several blocks. Output channels the
// output module does not provide are silenced.
//
// Render must only be called from the audio goroutine. It does not allocate,
// lock or block.
func (e *Engine) Render(out [][]float64) {
	if len(out) == 0 {
		return
	}
	total := len(out[0])
	for off := 0; off < total; {
		n := min(total-off, e.blockLimit())
		if n <= 0 {
			return
		}
		e.renderBlock(out, off, n)
		off += n
	}
}

// blockLimit returns the maximum frames per block for the published plan.
func (e *Engine) blockLimit() int {
	if p := e.current.Load(); p != nil {
		return len(p.io.sys.Zero)
	}
	return 4096
}

func (e *Engine) renderBlock(out [][]float64, off, n int) {
	e.epoch.Add(1)
	start := time.Now()

	p := e.current.Load()
	snap := e.transport.Begin()

	if p == nil || n > len(p.io.sys.Zero) {
		for _, ch := range out {
			core.Zero(ch[off : off+n])
		}
	} else {
		sys := &p.io.sys
		e.pullInput(p.io, n)
		e.stats.Generation = p.generation
		e.stats.Modules = len(p.steps)
		sys.Stats = e.stats

		for i := range p.steps {
			e.runStep(&p.steps[i], n, snap, sys)
		}
		for _, fc := range p.feedback {
			copy(fc.dst[:n], fc.src[:n])
		}

		for ch, dst := range out {
			if ch < len(p.sink) {
				copy(dst[off:off+n], p.sink[ch][:n])
			} else {
				core.Zero(dst[off : off+n])
			}
		}
	}

	e.transport.End(n)

	elapsed := time.Since(start).Nanoseconds()
	e.stats.Blocks++
	e.stats.RenderNanos = elapsed
	e.stats.BudgetNanos = int64(float64(n) / snap.SampleRate * 1e9)
	e.stats.MIDIDropped = e.midiDropped.Load()
	e.blocks.Store(e.stats.Blocks)
	e.renderNanos.Store(elapsed)

	e.epoch.Add(1)
}

func (e *Engine) runStep(s *step, n int, snap transport.Snapshot, sys *module.System) {
	nd := s.node
	b := &s.block
	b.Frames = n
	b.Transport = snap
	b.System = sys

	for i := range s.sums {
		sum := &s.sums[i]
		dst := sum.dst[:n]
		copy(dst, sum.srcs[0][:n])
		for _, src := range sum.srcs[1:] {
			vecmath.AddBlockInPlace(dst, src[:n])
		}
	}

	if nd.faulted.Load() || !e.process(nd, b) {
		b.Silence()
	}
	for _, buf := range s.idle {
		core.Zero(buf[:n])
	}

	for ch, cell := range nd.peaks {
		x := b.Out[ch][:n]
		hi, lo := vek.Max(x), vek.Min(x)
		if -lo > hi {
			hi = -lo
		}
		cell.Store(hi)
	}
}

// process runs one module and contains any panic it raises. A module that
// panics is silenced for the rest of its life and reported to Poll.
func (e *Engine) process(nd *node, b *module.Block) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			nd.faulted.Store(true)
			e.stats.Faults++
			e.faultCount.Add(1)
			e.faults.Push(fault{node: nd, cause: r})
			ok = false
		}
	}()
	nd.mod.Process(b)
	return true
}

// pullInput moves device input and MIDI queued since the last block into
// the system input of the block.
func (e *Engine) pullInput(io *ioState, n int) {
	channels := len(io.sys.Audio)
	if channels > 0 {
		want := min(channels*n, e.input.Len()/channels*channels)
		got := e.input.PopSlice(io.interleaved[:want])
		frames := got / channels
		for ch, dst := range io.sys.Audio {
			for i := range frames {
				dst[i] = io.interleaved[i*channels+ch]
			}
			core.Zero(dst[frames:n])
		}
		if frames < n && e.inputSeen.Load() {
			e.stats.Underruns++
			e.underruns.Add(1)
		}
	}

	events := io.midi[:cap(io.midi)]
	count := e.midi.PopSlice(events)
	events = events[:count]
	for i := range events {
		if events[i].Frame >= n {
			events[i].Frame = n - 1
		}
		if events[i].Frame < 0 {
			events[i].Frame = 0
		}
	}
	// Insertion sort keeps equal frames in arrival order.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].Frame < events[j-1].Frame; j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
	io.sys.MIDI = events
}

// PushAudio queues interleaved device input frames and returns how many
// samples were accepted. Only whole frames are queued, so the result is a
// multiple of the input channel count. It must be called from a single
// producer goroutine.
func (e *Engine) PushAudio(interleaved []float64) int {
	channels := e.inputChannels
	if channels == 0 {
		return 0
	}
	e.inputSeen.Store(true)
	free := e.input.Cap() - e.input.Len()
	n := min(len(interleaved), free) / channels * channels
	return e.input.PushSlice(interleaved[:n])
}

// PushMIDI queues a short MIDI message for the next block at frame offset
// frame. It must be called from a single producer goroutine and reports
// false when the queue is full.
func (e *Engine) PushMIDI(frame int, msg []byte) bool {
	if e.midi.Push(module.NewMIDIEvent(frame, msg)) {
		return true
	}
	e.midiDropped.Add(1)
	return false
}
