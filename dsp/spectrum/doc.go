// Package spectrum turns blocks of audio into power spectra and octave band
// levels.
//
// An Analyzer owns its FFT plan and scratch memory, so repeated calls do not
// allocate. It is meant for background analysis goroutines, not for the
// audio goroutine.
package spectrum
