package uadsr

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// RawMax is the largest reading of the 10-bit potentiometer converter.
	RawMax = 1023
	// MaxTickRate is the fastest tick rate whose period is still a whole
	// nanosecond.
	MaxTickRate = int(time.Second)
)

var (
	ErrResolution = errors.New("resolution must be 8, 10 or 12 bits")
	ErrTickRate   = errors.New("tick rate must be between 1 Hz and 1 GHz")
	ErrRiseTime   = errors.New("rise times must be positive and finite and min rise must not exceed max rise")
)

// Config is fixed when the controller starts and never changes while it runs.
// Rise times are in seconds: MinRise is the full scale ramp time at the
// fastest pot setting and MaxRise at the slowest.
type Config struct {
	ResolutionBits    int           `yaml:"resolution" json:"resolution"`
	TickRate          int           `yaml:"tickrate" json:"tickrate"`
	MinRise           float64       `yaml:"minrise" json:"minrise"`
	MaxRise           float64       `yaml:"maxrise" json:"maxrise"`
	ConversionTimeout time.Duration `yaml:"conversiontimeout,omitempty" json:"conversiontimeout,omitempty"`
}

var DefaultConfig = Config{
	ResolutionBits:    10,
	TickRate:          10000,
	MinRise:           0.002,
	MaxRise:           3.0,
	ConversionTimeout: 5 * time.Millisecond,
}

func (c Config) Validate() error {
	switch c.ResolutionBits {
	case 8, 10, 12:
	default:
		return fmt.Errorf("%w, got %d", ErrResolution, c.ResolutionBits)
	}
	if c.TickRate <= 0 || c.TickRate > MaxTickRate {
		return fmt.Errorf("%w, got %d", ErrTickRate, c.TickRate)
	}
	if !finite(c.MinRise) || !finite(c.MaxRise) || c.MinRise <= 0 || c.MaxRise <= 0 || c.MinRise > c.MaxRise {
		return fmt.Errorf("%w, got min %v s, max %v s", ErrRiseTime, c.MinRise, c.MaxRise)
	}
	if c.ConversionTimeout < 0 {
		return errors.New("conversion timeout cannot be negative")
	}
	return nil
}

// MaxLevel is 2^resolution - 1, the top of the level range.
func (c Config) MaxLevel() float64 {
	return float64(int(1)<<c.ResolutionBits - 1)
}

// TickPeriod is the duration of one envelope tick.
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// RiseTime maps a raw reading linearly onto [MinRise, MaxRise]. Raw 0 gives the
// slowest rise and raw 1023 the fastest.
func (c Config) RiseTime(raw int) float64 {
	return c.MaxRise + (c.MinRise-c.MaxRise)/RawMax*float64(clampRaw(raw))
}

// Increment is the per-tick level delta that ramps over the full range in the
// rise time selected by raw.
func (c Config) Increment(raw int) float64 {
	return c.MaxLevel() / c.RiseTime(raw) / float64(c.TickRate)
}

// SustainLevel scales a raw reading into the level range.
func (c Config) SustainLevel(raw int) int {
	return int(c.MaxLevel() / RawMax * float64(clampRaw(raw)))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clampRaw(raw int) int {
	if raw < 0 {
		return 0
	}
	if raw > RawMax {
		return RawMax
	}
	return raw
}
