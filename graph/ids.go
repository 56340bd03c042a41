package graph

import "fmt"

// LogicalID identifies a module towards user interfaces and presets. IDs are
// never reused within one engine.
type LogicalID int

// Reserved logical IDs of the modules every engine owns.
const (
	OutputID    LogicalID = 1
	MonitorID   LogicalID = 2
	FirstUserID LogicalID = 16
)

// handle is the engine-internal identity of a module instance.
type handle uint64

type idMap struct {
	byID       map[LogicalID]handle
	byHandle   map[handle]LogicalID
	next       LogicalID
	nextHandle handle
}

func newIDMap() *idMap {
	return &idMap{
		byID:     make(map[LogicalID]handle),
		byHandle: make(map[handle]LogicalID),
		next:     FirstUserID,
	}
}

func (m *idMap) newHandle() handle {
	m.nextHandle++
	return m.nextHandle
}

func (m *idMap) assign(h handle) LogicalID {
	id := m.next
	m.next++
	m.byID[id] = h
	m.byHandle[h] = id
	return id
}

func (m *idMap) reserve(id LogicalID, h handle) error {
	if id >= FirstUserID || id <= 0 {
		return fmt.Errorf("graph: %d is not a reserved id", id)
	}
	if _, taken := m.byID[id]; taken {
		return fmt.Errorf("graph: reserved id %d already in use", id)
	}
	m.byID[id] = h
	m.byHandle[h] = id
	return nil
}

func (m *idMap) lookup(id LogicalID) (handle, bool) {
	h, ok := m.byID[id]
	return h, ok
}

func (m *idMap) id(h handle) (LogicalID, bool) {
	id, ok := m.byHandle[h]
	return id, ok
}

func (m *idMap) remove(id LogicalID) {
	if h, ok := m.byID[id]; ok {
		delete(m.byHandle, h)
		delete(m.byID, id)
	}
}

func isReserved(id LogicalID) bool {
	return id > 0 && id < FirstUserID
}
