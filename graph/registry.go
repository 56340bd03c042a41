package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/cwbudde/algo-rack/module"
)

// Type names the engine instantiates on its own.
const (
	OutputType  = "audioout"
	MonitorType = "monitor"
)

// Factory builds one module instance.
type Factory func(env module.Env) (module.Module, error)

// TypeInfo describes one registered module type.
type TypeInfo struct {
	Name        string
	Description string
	// Permanent is set for the types the engine owns at reserved IDs.
	Permanent bool
}

type entry struct {
	factory     Factory
	description string
}

// Registry maps module type names to their factories. Type names are what
// presets store, so they are restricted to lower-case letters, digits, '-'
// and '_', starting with a letter.
type Registry struct {
	types map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*entry)}
}

// Register adds a factory for typeName.
func (r *Registry) Register(typeName string, factory Factory) error {
	if !validTypeName(typeName) {
		return fmt.Errorf("%w: %q", ErrInvalidTypeName, typeName)
	}
	if factory == nil {
		return fmt.Errorf("%w: %q has no factory", ErrInvalidTypeName, typeName)
	}
	if _, ok := r.types[typeName]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateType, typeName)
	}
	r.types[typeName] = &entry{factory: factory}
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// registries assembled at init time.
func (r *Registry) MustRegister(typeName string, factory Factory) {
	if err := r.Register(typeName, factory); err != nil {
		panic(err)
	}
}

// Describe attaches a one-line description to a registered type.
func (r *Registry) Describe(typeName, description string) error {
	e, ok := r.types[typeName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModuleType, typeName)
	}
	e.description = description
	return nil
}

// Lookup returns the factory for typeName, or nil.
func (r *Registry) Lookup(typeName string) Factory {
	if e, ok := r.types[typeName]; ok {
		return e.factory
	}
	return nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	return slices.Sorted(maps.Keys(r.types))
}

// Info returns every registered type sorted by name.
func (r *Registry) Info() []TypeInfo {
	out := make([]TypeInfo, 0, len(r.types))
	for _, name := range r.Types() {
		out = append(out, TypeInfo{
			Name:        name,
			Description: r.types[name].description,
			Permanent:   name == OutputType || name == MonitorType,
		})
	}
	return out
}

// checkPermanent reports a missing factory for a type the engine creates
// itself.
func (r *Registry) checkPermanent() error {
	for _, name := range []string{OutputType, MonitorType} {
		if _, ok := r.types[name]; !ok {
			return fmt.Errorf("%w: registry lacks %q", ErrUnknownModuleType, name)
		}
	}
	return nil
}

func validTypeName(s string) bool {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
