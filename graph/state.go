package graph

import "fmt"

// State is the engine lifecycle state.
type State int32

const (
	// Idle means no plan is published.
	Idle State = iota
	// Building means a command is rebuilding the plan.
	Building
	// Live means the published plan is the only one the audio goroutine
	// can observe.
	Live
	// Draining means a retired plan may still be in flight.
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case Live:
		return "live"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
