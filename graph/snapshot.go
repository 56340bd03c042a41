package graph

import (
	"slices"

	"github.com/cwbudde/algo-rack/module"
	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/transport"
)

// Snapshot is a point-in-time copy of the graph for user interfaces and
// preset capture.
type Snapshot struct {
	Generation  uint64
	State       State
	Modules     []ModuleInfo
	Connections []ConnectionInfo
	Transport   TransportInfo
}

// ModuleInfo describes one module.
type ModuleInfo struct {
	ID               LogicalID
	Type             string
	Permanent        bool
	Faulted          bool
	FeedbackTolerant bool
	Inputs           []module.Bus
	Outputs          []module.Bus
	Params           []ParamInfo
	Telemetry        map[string]float64
}

// ParamInfo describes one parameter.
type ParamInfo struct {
	Name       string
	Unit       string
	Base       float64
	Live       float64
	Default    float64
	Range      param.Range
	ModChannel int
	Absolute   bool
	Modulated  bool
}

// ConnectionInfo describes one cable.
type ConnectionInfo struct {
	From        LogicalID
	FromChannel int
	To          LogicalID
	ToChannel   int
	Feedback    bool
}

// TransportInfo describes the transport.
type TransportInfo struct {
	State    transport.State
	Position int64
	Tempo    float64
}

func paramInfo(p *param.Param) ParamInfo {
	spec := p.Spec()
	return ParamInfo{
		Name:       spec.Name,
		Unit:       spec.Unit,
		Base:       p.Base(),
		Live:       p.Live(),
		Default:    spec.Default,
		Range:      spec.Range,
		ModChannel: spec.ModChannel,
		Absolute:   p.Absolute(),
		Modulated:  p.Modulated(),
	}
}

// Snapshot returns the current graph. Modules are ordered by logical ID,
// connections by creation.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Generation: e.generation,
		State:      e.State(),
		Transport: TransportInfo{
			State:    e.transport.State(),
			Position: e.transport.Position(),
			Tempo:    e.transport.Tempo(),
		},
	}

	for _, nd := range e.nodes {
		info := ModuleInfo{
			ID:               nd.id,
			Type:             nd.typeName,
			Permanent:        nd.permanent,
			Faulted:          nd.faulted.Load(),
			FeedbackTolerant: nd.feedback,
			Inputs:           slices.Clone(nd.shape.Inputs),
			Outputs:          slices.Clone(nd.shape.Outputs),
			Telemetry:        nd.cells.Values(),
		}
		bank := nd.mod.Params()
		for i := range bank.Len() {
			info.Params = append(info.Params, paramInfo(bank.At(i)))
		}
		snap.Modules = append(snap.Modules, info)
	}
	slices.SortFunc(snap.Modules, func(a, b ModuleInfo) int { return int(a.ID - b.ID) })

	for _, c := range e.table.conns {
		from, _ := e.ids.id(c.src)
		to, _ := e.ids.id(c.dst)
		snap.Connections = append(snap.Connections, ConnectionInfo{
			From:        from,
			FromChannel: c.srcCh,
			To:          to,
			ToChannel:   c.dstCh,
			Feedback:    c.feedback,
		})
	}
	return snap
}

// Module returns the description of one module.
func (s Snapshot) Module(id LogicalID) (ModuleInfo, bool) {
	i, ok := slices.BinarySearchFunc(s.Modules, id, func(m ModuleInfo, id LogicalID) int { return int(m.ID - id) })
	if !ok {
		return ModuleInfo{}, false
	}
	return s.Modules[i], true
}
