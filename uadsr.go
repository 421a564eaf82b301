package uadsr

import "fmt"

// Mode is the phase the envelope is currently in.
type Mode int32

const (
	Idle Mode = iota
	Attack
	Decay
	Sustain
	Release
)

var modeNames = [...]string{"idle", "attack", "decay", "sustain", "release"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("mode(%d)", int32(m))
	}
	return modeNames[m]
}

// Valid reports whether m is one of the five envelope modes.
func (m Mode) Valid() bool { return m >= Idle && m <= Release }

// Channel is the potentiometer currently being converted. The sampler cycles
// through the channels in declaration order.
type Channel int

const (
	AttackChannel Channel = iota
	DecayChannel
	SustainChannel
	ReleaseChannel
	NumChannels = 4
)

var channelNames = [NumChannels]string{"attack", "decay", "sustain", "release"}

func (c Channel) String() string {
	if c < 0 || int(c) >= NumChannels {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Next returns the channel converted after c.
func (c Channel) Next() Channel { return (c + 1) % NumChannels }

// ParseChannel is the inverse of Channel.String.
func ParseChannel(s string) (Channel, error) {
	for i, n := range channelNames {
		if n == s {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// Params are the envelope parameters derived from the potentiometers. The
// increments are per-tick deltas of the level; SustainLevel is in the same
// domain as the level.
type Params struct {
	AttackIncrement  float64
	DecayIncrement   float64
	ReleaseIncrement float64
	SustainLevel     int
}

type (
	// Pin is a single digital output line.
	Pin interface {
		Set(high bool) error
	}

	// DAC receives the envelope level once per tick.
	DAC interface {
		Write(value int, gainEnable, shutdown bool) error
	}

	// ADC is a single-conversion analog to digital converter multiplexed over
	// the potentiometer channels. StartConversion must not block;
	// ConversionReady reports whether the last started conversion finished,
	// and ReadRaw returns its 10-bit result and acknowledges it.
	ADC interface {
		StartConversion(ch Channel) error
		ConversionReady() bool
		ReadRaw() (int, error)
	}

	// Inputs reads the gate and trigger lines. Both are active high.
	Inputs interface {
		Levels() (gate, trigger bool, err error)
	}
)
