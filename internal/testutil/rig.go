package testutil

import (
	"testing"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/transport"
)

// Rig drives one module outside an engine. Inputs start unconnected; every
// output is treated as connected.
type Rig struct {
	Module    module.Module
	Transport transport.Snapshot
	System    module.System

	block module.Block
}

// NewRig prepares m and releases it when the test ends.
func NewRig(t *testing.T, m module.Module, sampleRate float64, maxBlock int) *Rig {
	t.Helper()
	if err := m.Prepare(sampleRate, maxBlock); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	t.Cleanup(m.Release)

	shape := m.Shape()
	r := &Rig{
		Module: m,
		Transport: transport.Snapshot{
			State: transport.Stopped, Tempo: transport.DefaultTempo, SampleRate: sampleRate,
		},
		System: module.System{Zero: make([]float64, maxBlock)},
	}
	r.block.In = make([][]float64, shape.NumInputs())
	r.block.InConnected = make([]bool, shape.NumInputs())
	for i := range r.block.In {
		r.block.In[i] = r.System.Zero
	}
	r.block.Out = make([][]float64, shape.NumOutputs())
	r.block.OutConnected = make([]bool, shape.NumOutputs())
	for i := range r.block.Out {
		r.block.Out[i] = make([]float64, maxBlock)
		r.block.OutConnected[i] = true
	}
	return r
}

// Connect feeds samples into input ch on the following Run calls. Samples
// shorter than a block are zero-padded.
func (r *Rig) Connect(ch int, samples []float64) {
	buf := make([]float64, len(r.System.Zero))
	copy(buf, samples)
	r.block.In[ch] = buf
	r.block.InConnected[ch] = true
}

// Disconnect returns input ch to silence.
func (r *Rig) Disconnect(ch int) {
	r.block.In[ch] = r.System.Zero
	r.block.InConnected[ch] = false
}

// Run processes one block and returns the output buffers, trimmed to
// frames. They are overwritten by the next Run.
func (r *Rig) Run(frames int) [][]float64 {
	r.block.Frames = frames
	r.block.Transport = r.Transport
	r.block.System = &r.System
	r.Module.Process(&r.block)

	out := make([][]float64, len(r.block.Out))
	for i, o := range r.block.Out {
		out[i] = o[:frames]
	}
	r.Transport.Position += int64(frames)
	r.Transport.Reset = false
	return out
}

// Collect runs blocks of frames until n samples of output ch are gathered.
func (r *Rig) Collect(ch, frames, n int) []float64 {
	out := make([]float64, 0, n)
	for len(out) < n {
		out = append(out, r.Run(min(frames, n-len(out)))[ch]...)
	}
	return out
}
