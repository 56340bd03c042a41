// Package buffer provides fixed-length sample buffer pools. The engine draws
// module output buffers and summing scratch from a Pool on the control side
// and returns them once the audio goroutine can no longer observe them.
package buffer
