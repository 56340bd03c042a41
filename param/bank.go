package param

import "fmt"

// Bank is the ordered parameter table of one module. Its shape is fixed at
// construction, so lookups are safe from any goroutine.
type Bank struct {
	params []*Param
	index  map[string]int
}

// NewBank builds a bank from specs. Names must be unique.
func NewBank(specs ...Spec) (*Bank, error) {
	b := &Bank{index: make(map[string]int, len(specs))}
	for _, spec := range specs {
		if _, dup := b.index[spec.Name]; dup {
			return nil, fmt.Errorf("param: duplicate parameter %q", spec.Name)
		}
		p, err := New(spec)
		if err != nil {
			return nil, err
		}
		b.index[spec.Name] = len(b.params)
		b.params = append(b.params, p)
	}
	return b, nil
}

// MustBank is like NewBank but panics on error. It is intended for the
// static parameter tables of built-in modules.
func MustBank(specs ...Spec) *Bank {
	b, err := NewBank(specs...)
	if err != nil {
		panic(err.Error())
	}
	return b
}

// Len returns the number of parameters.
func (b *Bank) Len() int {
	if b == nil {
		return 0
	}
	return len(b.params)
}

// At returns the i-th parameter in declaration order.
func (b *Bank) At(i int) *Param { return b.params[i] }

// Get returns the named parameter.
func (b *Bank) Get(name string) (*Param, bool) {
	if b == nil {
		return nil, false
	}
	i, ok := b.index[name]
	if !ok {
		return nil, false
	}
	return b.params[i], true
}

// Names returns the parameter names in declaration order.
func (b *Bank) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, len(b.params))
	for i, p := range b.params {
		names[i] = p.spec.Name
	}
	return names
}
