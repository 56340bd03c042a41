// Package param implements module parameters and their modulation.
//
// Every parameter owns a base value written from the control side and a
// live value written by the audio goroutine. When the parameter's modulation
// input carries an active patch cable the incoming CV takes precedence over
// the base value; otherwise the base value is used. CV is mapped onto the
// parameter either absolutely, spanning the native range, or relatively, as
// an excursion around the base value. Relative is the default.
package param
