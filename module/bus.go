package module

import (
	"errors"
	"fmt"
)

// Bus is a named group of channels on one side of a module.
type Bus struct {
	Name     string
	Channels []string
	// Summing lets several cables drive one channel of an input bus; their
	// signals are added. Output buses ignore the flag.
	Summing bool
}

// Width returns the channel count.
func (b Bus) Width() int { return len(b.Channels) }

// Mono returns a single-channel bus whose channel carries the bus name.
func Mono(name string) Bus {
	return Bus{Name: name, Channels: []string{name}}
}

// Stereo returns a two-channel bus with L and R channels.
func Stereo(name string) Bus {
	return Bus{Name: name, Channels: []string{name + " L", name + " R"}}
}

// Shape is the fixed bus layout of a module. Channels are addressed by a
// flat index running over all buses of one side in declaration order.
type Shape struct {
	Inputs  []Bus
	Outputs []Bus
}

// NumInputs returns the total number of input channels.
func (s Shape) NumInputs() int { return width(s.Inputs) }

// NumOutputs returns the total number of output channels.
func (s Shape) NumOutputs() int { return width(s.Outputs) }

// InputBus returns the bus containing flat input channel ch.
func (s Shape) InputBus(ch int) (Bus, bool) { return locate(s.Inputs, ch) }

// OutputBus returns the bus containing flat output channel ch.
func (s Shape) OutputBus(ch int) (Bus, bool) { return locate(s.Outputs, ch) }

// InputLabel returns the label of flat input channel ch.
func (s Shape) InputLabel(ch int) string { return label(s.Inputs, ch) }

// OutputLabel returns the label of flat output channel ch.
func (s Shape) OutputLabel(ch int) string { return label(s.Outputs, ch) }

var errInvalidShape = errors.New("module: invalid shape")

// Validate reports whether every bus is named and non-empty.
func (s Shape) Validate() error {
	if err := validateBuses("input", s.Inputs); err != nil {
		return err
	}
	return validateBuses("output", s.Outputs)
}

func validateBuses(side string, buses []Bus) error {
	for i, b := range buses {
		if b.Name == "" {
			return fmt.Errorf("%w: %s bus %d has no name", errInvalidShape, side, i)
		}
		if b.Width() == 0 {
			return fmt.Errorf("%w: %s bus %q has no channels", errInvalidShape, side, b.Name)
		}
	}
	return nil
}

func width(buses []Bus) int {
	n := 0
	for _, b := range buses {
		n += b.Width()
	}
	return n
}

func locate(buses []Bus, ch int) (Bus, bool) {
	if ch < 0 {
		return Bus{}, false
	}
	for _, b := range buses {
		if ch < b.Width() {
			return b, true
		}
		ch -= b.Width()
	}
	return Bus{}, false
}

func label(buses []Bus, ch int) string {
	if ch < 0 {
		return ""
	}
	for _, b := range buses {
		if ch < b.Width() {
			return b.Channels[ch]
		}
		ch -= b.Width()
	}
	return ""
}
