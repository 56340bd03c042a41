// Package device connects an engine to the outside world: a pull stream of
// interleaved float32 frames, an oto playback device and WAV export.
package device
