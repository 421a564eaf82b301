package uadsr_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/zerogroup/uadsr"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*uadsr.Config)
		want   error
	}{
		{"default", func(*uadsr.Config) {}, nil},
		{"8 bit", func(c *uadsr.Config) { c.ResolutionBits = 8 }, nil},
		{"12 bit", func(c *uadsr.Config) { c.ResolutionBits = 12 }, nil},
		{"11 bit", func(c *uadsr.Config) { c.ResolutionBits = 11 }, uadsr.ErrResolution},
		{"zero tick rate", func(c *uadsr.Config) { c.TickRate = 0 }, uadsr.ErrTickRate},
		{"zero min rise", func(c *uadsr.Config) { c.MinRise = 0 }, uadsr.ErrRiseTime},
		{"min above max", func(c *uadsr.Config) { c.MinRise = 4 }, uadsr.ErrRiseTime},
		{"negative tick rate", func(c *uadsr.Config) { c.TickRate = -1 }, uadsr.ErrTickRate},
		{"1 Hz", func(c *uadsr.Config) { c.TickRate = 1 }, nil},
		{"1 GHz", func(c *uadsr.Config) { c.TickRate = uadsr.MaxTickRate }, nil},
		{"above 1 GHz", func(c *uadsr.Config) { c.TickRate = uadsr.MaxTickRate + 1 }, uadsr.ErrTickRate},
		{"nan min rise", func(c *uadsr.Config) { c.MinRise = math.NaN() }, uadsr.ErrRiseTime},
		{"nan max rise", func(c *uadsr.Config) { c.MaxRise = math.NaN() }, uadsr.ErrRiseTime},
		{"infinite max rise", func(c *uadsr.Config) { c.MaxRise = math.Inf(1) }, uadsr.ErrRiseTime},
		{"infinite min rise", func(c *uadsr.Config) { c.MinRise = math.Inf(-1) }, uadsr.ErrRiseTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := uadsr.DefaultConfig
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error %v, expected %v", err, tt.want)
			}
		})
	}
	cfg := uadsr.DefaultConfig
	cfg.ConversionTimeout = -time.Millisecond
	if cfg.Validate() == nil {
		t.Error("negative conversion timeout accepted")
	}
}

func TestIncrementEndpoints(t *testing.T) {
	cfg := uadsr.DefaultConfig
	slow := cfg.MaxLevel() / cfg.MaxRise / float64(cfg.TickRate)
	fast := cfg.MaxLevel() / cfg.MinRise / float64(cfg.TickRate)
	if got := cfg.Increment(0); math.Abs(got-slow) > 1e-12 {
		t.Errorf("Increment(0) = %v, expected %v", got, slow)
	}
	if got := cfg.Increment(uadsr.RawMax); math.Abs(got-fast) > 1e-9 {
		t.Errorf("Increment(%d) = %v, expected %v", uadsr.RawMax, got, fast)
	}
	// 1023 levels over 2 ms at 10 kHz is 20 ticks
	if ticks := cfg.MaxLevel() / cfg.Increment(uadsr.RawMax); math.Abs(ticks-20) > 1e-9 {
		t.Errorf("fastest ramp takes %v ticks, expected 20", ticks)
	}
	prev := 0.0
	for raw := 0; raw <= uadsr.RawMax; raw++ {
		inc := cfg.Increment(raw)
		if inc <= prev {
			t.Fatalf("Increment(%d) = %v is not above Increment(%d) = %v", raw, inc, raw-1, prev)
		}
		prev = inc
	}
	if cfg.Increment(-5) != cfg.Increment(0) || cfg.Increment(5000) != cfg.Increment(uadsr.RawMax) {
		t.Error("out of range readings are not clamped")
	}
}

func TestSustainLevel(t *testing.T) {
	tests := []struct {
		bits, raw, want int
	}{
		{10, 0, 0},
		{10, 512, 512},
		{10, 1023, 1023},
		{10, 2000, 1023},
		{8, 512, 127},
		{8, -3, 0},
		{12, 512, 2049},
	}
	for _, tt := range tests {
		cfg := uadsr.DefaultConfig
		cfg.ResolutionBits = tt.bits
		if got := cfg.SustainLevel(tt.raw); got != tt.want {
			t.Errorf("%d bit SustainLevel(%d) = %d, expected %d", tt.bits, tt.raw, got, tt.want)
		}
	}
}

func TestTickPeriod(t *testing.T) {
	if p := uadsr.DefaultConfig.TickPeriod(); p != 100*time.Microsecond {
		t.Errorf("TickPeriod = %v, expected 100µs", p)
	}
	cfg := uadsr.DefaultConfig
	cfg.TickRate = uadsr.MaxTickRate
	if p := cfg.TickPeriod(); p != time.Nanosecond {
		t.Errorf("TickPeriod at the fastest rate = %v, expected 1ns", p)
	}
}
