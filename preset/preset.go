// Package preset stores rack patches as YAML documents and replays them
// through the engine's command API.
package preset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/transport"
)

// Version is the document version written by Encode.
const Version = 1

// ErrInvalid wraps every structural problem found by Validate.
var ErrInvalid = errors.New("preset: invalid document")

// Preset is a complete patch.
type Preset struct {
	Version     int          `yaml:"version"`
	Name        string       `yaml:"name,omitempty"`
	Transport   Transport    `yaml:"transport"`
	Modules     []Module     `yaml:"modules"`
	Connections []Connection `yaml:"connections,omitempty"`
}

// Transport is the saved transport state.
type Transport struct {
	Tempo float64 `yaml:"tempo"`
	State string  `yaml:"state,omitempty"`
}

// Module is one saved module. IDs only need to be unique inside the
// document; Load maps them to fresh engine IDs. The reserved output and
// monitor IDs refer to the engine's permanent modules.
type Module struct {
	ID       int                `yaml:"id"`
	Type     string             `yaml:"type"`
	Params   map[string]float64 `yaml:"params,flow,omitempty"`
	Absolute []string           `yaml:"absolute,flow,omitempty"`
}

// Connection is one saved cable.
type Connection struct {
	From        int `yaml:"from"`
	FromChannel int `yaml:"fromChannel"`
	To          int `yaml:"to"`
	ToChannel   int `yaml:"toChannel"`
}

// Decode reads and validates a preset. Unknown fields are rejected.
func Decode(r io.Reader) (*Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Preset
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("preset: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Encode writes p as YAML.
func (p *Preset) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("preset: encode: %w", err)
	}
	return enc.Close()
}

// ReadFile decodes the preset stored at path.
func ReadFile(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile encodes p to path.
func (p *Preset) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := p.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Validate checks the document structure. It does not know which module
// types or channels exist; Load reports those.
func (p *Preset) Validate() error {
	if p.Version != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrInvalid, p.Version, Version)
	}
	if p.Transport.State != "" {
		if _, err := transport.ParseState(p.Transport.State); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if p.Transport.Tempo != 0 && (p.Transport.Tempo < transport.MinTempo || p.Transport.Tempo > transport.MaxTempo) {
		return fmt.Errorf("%w: tempo %v", ErrInvalid, p.Transport.Tempo)
	}

	seen := make(map[int]bool, len(p.Modules))
	for _, m := range p.Modules {
		if m.Type == "" {
			return fmt.Errorf("%w: module %d has no type", ErrInvalid, m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate module id %d", ErrInvalid, m.ID)
		}
		seen[m.ID] = true
		if reserved(m.ID) != "" && reserved(m.ID) != m.Type {
			return fmt.Errorf("%w: id %d is reserved for %q", ErrInvalid, m.ID, reserved(m.ID))
		}
	}
	for _, c := range p.Connections {
		for _, id := range []int{c.From, c.To} {
			if !seen[id] && reserved(id) == "" {
				return fmt.Errorf("%w: connection %d:%d -> %d:%d references unknown module %d",
					ErrInvalid, c.From, c.FromChannel, c.To, c.ToChannel, id)
			}
		}
	}
	return nil
}

func reserved(id int) string {
	switch graph.LogicalID(id) {
	case graph.OutputID:
		return graph.OutputType
	case graph.MonitorID:
		return graph.MonitorType
	}
	return ""
}

// Capture records the current patch of e.
func Capture(e *graph.Engine) *Preset {
	snap := e.Snapshot()
	p := &Preset{
		Version: Version,
		Transport: Transport{
			Tempo: snap.Transport.Tempo,
			State: snap.Transport.State.String(),
		},
	}
	for _, info := range snap.Modules {
		m := Module{ID: int(info.ID), Type: info.Type}
		if len(info.Params) > 0 {
			m.Params = make(map[string]float64, len(info.Params))
		}
		for _, pi := range info.Params {
			m.Params[pi.Name] = pi.Base
			if pi.Absolute {
				m.Absolute = append(m.Absolute, pi.Name)
			}
		}
		p.Modules = append(p.Modules, m)
	}
	for _, c := range snap.Connections {
		p.Connections = append(p.Connections, Connection{
			From: int(c.From), FromChannel: c.FromChannel,
			To: int(c.To), ToChannel: c.ToChannel,
		})
	}
	return p
}

// Load replays p into e and returns the mapping from preset IDs to engine
// IDs. Modules are added to whatever e already holds; permanent modules
// only receive their parameters. If a step fails every module added so far
// is removed again and the permanent modules get their parameters back.
func Load(e *graph.Engine, p *Preset) (ids map[int]graph.LogicalID, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	ids = map[int]graph.LogicalID{
		int(graph.OutputID):  graph.OutputID,
		int(graph.MonitorID): graph.MonitorID,
	}
	saved := map[graph.LogicalID][]graph.ParamInfo{}
	snap := e.Snapshot()
	for _, id := range []graph.LogicalID{graph.OutputID, graph.MonitorID} {
		if info, ok := snap.Module(id); ok {
			saved[id] = info.Params
		}
	}
	var added []graph.LogicalID
	defer func() {
		if err != nil {
			for _, id := range slices.Backward(added) {
				_ = e.RemoveModule(id)
			}
			for id, params := range saved {
				restoreParams(e, id, params)
			}
			ids = nil
		}
	}()

	for _, m := range p.Modules {
		if reserved(m.ID) != "" {
			continue
		}
		id, err := e.AddModule(m.Type)
		if err != nil {
			return nil, fmt.Errorf("preset: module %d: %w", m.ID, err)
		}
		added = append(added, id)
		ids[m.ID] = id
	}

	for _, m := range p.Modules {
		if err := applyParams(e, ids[m.ID], m); err != nil {
			return nil, fmt.Errorf("preset: module %d: %w", m.ID, err)
		}
	}

	for _, c := range p.Connections {
		if err := e.Connect(ids[c.From], c.FromChannel, ids[c.To], c.ToChannel); err != nil {
			return nil, fmt.Errorf("preset: connection %d:%d -> %d:%d: %w",
				c.From, c.FromChannel, c.To, c.ToChannel, err)
		}
	}

	if p.Transport.Tempo != 0 {
		if err := e.Transport().SetTempo(p.Transport.Tempo); err != nil {
			return nil, fmt.Errorf("preset: %w", err)
		}
	}
	if p.Transport.State != "" {
		st, _ := transport.ParseState(p.Transport.State)
		e.Transport().Request(st)
	}
	return ids, nil
}

func applyParams(e *graph.Engine, id graph.LogicalID, m Module) error {
	names := make([]string, 0, len(m.Params))
	for name := range m.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := e.SetParameter(id, name, m.Params[name]); err != nil {
			return err
		}
	}

	info, ok := e.Snapshot().Module(id)
	if !ok {
		return fmt.Errorf("%w: %d", graph.ErrModuleNotFound, id)
	}
	for _, pi := range info.Params {
		absolute := slices.Contains(m.Absolute, pi.Name)
		if err := e.SetModulationMode(id, pi.Name, absolute); err != nil {
			return err
		}
	}
	for _, name := range m.Absolute {
		if !slices.ContainsFunc(info.Params, func(pi graph.ParamInfo) bool { return pi.Name == name }) {
			return fmt.Errorf("%w: %q", graph.ErrUnknownParameter, name)
		}
	}
	return nil
}

func restoreParams(e *graph.Engine, id graph.LogicalID, params []graph.ParamInfo) {
	for _, pi := range params {
		_ = e.SetParameter(id, pi.Name, pi.Base)
		_ = e.SetModulationMode(id, pi.Name, pi.Absolute)
	}
}
