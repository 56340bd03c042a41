// Package module defines the contract between the graph engine and the
// signal processing units it schedules.
//
// A Module declares its bus shape once at construction, is prepared for a
// sample rate and maximum block size, and is then processed once per block
// on the audio goroutine. Process must not allocate, lock or block, and must
// write Frames samples to every output channel.
package module
