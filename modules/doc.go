// Package modules provides the built-in module types of the rack.
//
// Signal conventions shared by every module:
//
//   - audio is nominally in [-1, 1];
//   - CV is normalized to [0, 1] and 0.5 is the neutral point for relative
//     parameter modulation;
//   - gates and triggers are high at or above GateThreshold;
//   - pitch CV maps [0, 1] linearly onto MIDI notes 0..127.
//
// DefaultRegistry returns a graph registry with every type registered.
package modules
