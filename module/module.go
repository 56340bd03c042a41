package module

import (
	"log/slog"

	"github.com/cwbudde/algo-rack/param"
	"github.com/cwbudde/algo-rack/telemetry"
)

// Module is one processing node of the graph.
type Module interface {
	// Shape returns the bus layout. It must return the same value for the
	// whole lifetime of the module.
	Shape() Shape
	// Prepare allocates processing state. It is never called while Process
	// may run.
	Prepare(sampleRate float64, maxBlockSize int) error
	// Process renders one block on the audio goroutine.
	Process(b *Block)
	// Release frees what Prepare allocated. It is called exactly once,
	// after the last Process call.
	Release()
	// Params returns the parameter bank.
	Params() *param.Bank
}

// FeedbackTolerant is implemented by modules that accept cables closing a
// cycle. Such cables deliver the source's previous block.
type FeedbackTolerant interface {
	FeedbackTolerant() bool
}

// Telemetered is implemented by modules that publish telemetry cells.
type Telemetered interface {
	Telemetry() *telemetry.Set
}

// Sink is implemented by the audio output module. The engine copies the
// sink channels to the device after every block.
type Sink interface {
	Sink() [][]float64
}

// Env carries the collaborators a factory may need to build a module.
type Env struct {
	SampleRate   float64
	MaxBlockSize int
	Logger       *slog.Logger
}

// IsFeedbackTolerant reports whether m accepts feedback cables.
func IsFeedbackTolerant(m Module) bool {
	ft, ok := m.(FeedbackTolerant)
	return ok && ft.FeedbackTolerant()
}

// TelemetryOf returns the telemetry set of m, or nil.
func TelemetryOf(m Module) *telemetry.Set {
	if t, ok := m.(Telemetered); ok {
		return t.Telemetry()
	}
	return nil
}
