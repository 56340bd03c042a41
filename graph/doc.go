// Package graph implements the real-time modular graph engine.
//
// An Engine owns every module instance and the connection table. Control
// goroutines edit the graph through synchronous commands (AddModule,
// Connect, SetParameter, ...). Each accepted topology edit builds a new
// immutable execution plan that is published atomically; the audio
// goroutine picks up the newest plan at the start of every block in Render
// and never blocks on the control side.
//
// Retired plans and removed modules are released only after the audio
// goroutine has provably left the block that could still reference them.
// The audio goroutine advances an epoch counter at the start and at the end
// of each block; odd values mean a block is in flight.
package graph
