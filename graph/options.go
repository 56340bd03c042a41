package graph

import (
	"log/slog"

	"github.com/cwbudde/algo-rack/dsp/core"
)

type options struct {
	config        []core.Option
	registry      *Registry
	logger        *slog.Logger
	tempo         float64
	inputChannels int
	inputCapacity int
	midiCapacity  int
	faultCapacity int
}

// Option configures an Engine.
type Option func(*options)

func defaultOptions() options {
	return options{
		inputChannels: 2,
		midiCapacity:  256,
		faultCapacity: 64,
	}
}

// WithConfig sets the sample rate and maximum block size.
func WithConfig(opts ...core.Option) Option {
	return func(o *options) { o.config = append(o.config, opts...) }
}

// WithRegistry sets the module factories. The registry must provide the
// OutputType and MonitorType modules.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger sets the logger used on the control side.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTempo sets the initial transport tempo.
func WithTempo(bpm float64) Option {
	return func(o *options) { o.tempo = bpm }
}

// WithInputChannels sets the number of device input channels.
func WithInputChannels(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.inputChannels = n
		}
	}
}

// WithInputCapacity sets the device input ring size in frames. It defaults
// to four maximum-size blocks.
func WithInputCapacity(frames int) Option {
	return func(o *options) {
		if frames > 0 {
			o.inputCapacity = frames
		}
	}
}

// WithMIDICapacity sets how many MIDI events can be queued between blocks.
func WithMIDICapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.midiCapacity = n
		}
	}
}
