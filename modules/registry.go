package modules

import (
	"sync/atomic"

	"github.com/cwbudde/algo-rack/graph"
	"github.com/cwbudde/algo-rack/module"
)

// Built-in type names besides graph.OutputType and graph.MonitorType.
const (
	AudioInType    = "audioin"
	MIDIInType     = "midiin"
	OscillatorType = "oscillator"
	VCAType        = "vca"
	MixerType      = "mixer"
	LFOType        = "lfo"
	EnvelopeType   = "envelope"
	FilterType     = "filter"
	DelayType      = "delay"
	SequencerType  = "sequencer"
	NoiseType      = "noise"
	SpectrumType   = "spectrum"
	WavetableType  = "wavetable"
)

var descriptions = map[string]string{
	graph.OutputType:  "stereo device output",
	graph.MonitorType: "engine statistics and transport telemetry",
	AudioInType:       "stereo device input",
	MIDIInType:        "monophonic MIDI to gate, pitch, velocity and mod wheel CV",
	OscillatorType:    "band-limited audio oscillator with sync",
	VCAType:           "voltage-controlled amplifier",
	MixerType:         "four-input mixer with summing bus",
	LFOType:           "low-frequency oscillator with transport sync",
	EnvelopeType:      "ADSR envelope generator",
	FilterType:        "four-pole ladder low-pass",
	DelayType:         "feedback delay, accepts cycle-closing cables",
	SequencerType:     "eight-step CV and gate sequencer",
	NoiseType:         "seeded white noise and stepped random CV",
	SpectrumType:      "octave band analyser",
	WavetableType:     "saw to square morphing wavetable oscillator",
}


type options struct {
	seed         uint64
	spectrumSize int
}

// Option configures DefaultRegistry.
type Option func(*options)

// WithSeed sets the seed of the first noise module. Later instances derive
// their seeds from it in creation order.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithSpectrumSize sets the analysis frame length of spectrum modules. It
// must be a power of two of at least 16.
func WithSpectrumSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.spectrumSize = n
		}
	}
}

// DefaultRegistry returns a registry holding every built-in module type.
func DefaultRegistry(opts ...Option) *graph.Registry {
	o := options{seed: 1, spectrumSize: 2048}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	var instances atomic.Uint64
	r := graph.NewRegistry()
	simple := func(name string, build func() module.Module) {
		r.MustRegister(name, func(module.Env) (module.Module, error) { return build(), nil })
	}

	simple(graph.OutputType, func() module.Module { return NewOutput() })
	simple(graph.MonitorType, func() module.Module { return NewMonitor() })
	simple(AudioInType, func() module.Module { return NewAudioIn() })
	simple(MIDIInType, func() module.Module { return NewMIDIIn() })
	simple(OscillatorType, func() module.Module { return NewOscillator() })
	simple(VCAType, func() module.Module { return NewVCA() })
	simple(MixerType, func() module.Module { return NewMixer() })
	simple(LFOType, func() module.Module { return NewLFO() })
	simple(EnvelopeType, func() module.Module { return NewEnvelope() })
	simple(FilterType, func() module.Module { return NewFilter() })
	simple(DelayType, func() module.Module { return NewDelay() })
	simple(SequencerType, func() module.Module { return NewSequencer() })
	simple(NoiseType, func() module.Module {
		n := instances.Add(1) - 1
		return NewNoise(o.seed + n*0x9e3779b97f4a7c15)
	})
	r.MustRegister(SpectrumType, func(env module.Env) (module.Module, error) {
		return NewSpectrum(o.spectrumSize, env.Logger), nil
	})
	r.MustRegister(WavetableType, func(env module.Env) (module.Module, error) {
		return NewWavetable(env.Logger), nil
	})
	for name, text := range descriptions {
		if err := r.Describe(name, text); err != nil {
			panic(err)
		}
	}
	return r
}
