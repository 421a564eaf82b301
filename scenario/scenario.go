// Package scenario describes and renders offline envelope simulations.
//
// A scenario sets the potentiometers, then changes the gate, trigger and pots
// at given times. Rendering runs the controller one deterministic step per
// tick against simulated hardware, with the DAC driven through the real
// serial encoder on a simulated bus, and records what the bus carried.
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/controller"
	"github.com/zerogroup/uadsr/mcp48x1"
	"github.com/zerogroup/uadsr/sim"
	"github.com/zerogroup/uadsr/trace"
)

type (
	Scenario struct {
		Config   uadsr.Config   `yaml:"config" json:"config"`
		Pots     map[string]int `yaml:"pots,omitempty" json:"pots,omitempty"`
		Duration float64        `yaml:"duration" json:"duration"` // seconds
		Latency  int            `yaml:"latency,omitempty" json:"latency,omitempty"`
		Events   []Event        `yaml:"events,omitempty" json:"events,omitempty"`
	}

	// Event changes the inputs at time At, in seconds. Nil fields and pots
	// that are not named are left as they were.
	Event struct {
		At      float64        `yaml:"at" json:"at"`
		Gate    *bool          `yaml:"gate,omitempty" json:"gate,omitempty"`
		Trigger *bool          `yaml:"trigger,omitempty" json:"trigger,omitempty"`
		Pots    map[string]int `yaml:"pots,omitempty" json:"pots,omitempty"`
	}
)

var ErrDuration = errors.New("scenario duration must be positive")

// Load parses a scenario from .json or .yml contents. Config fields that are
// not given keep their default values.
func Load(data []byte) (Scenario, error) {
	s := Scenario{Config: uadsr.DefaultConfig}
	if errJSON := json.Unmarshal(data, &s); errJSON != nil {
		s = Scenario{Config: uadsr.DefaultConfig}
		if errYaml := yaml.Unmarshal(data, &s); errYaml != nil {
			return Scenario{}, fmt.Errorf("the scenario could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

func LoadFile(filename string) (Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Scenario{}, fmt.Errorf("could not read file %v: %v", filename, err)
	}
	return Load(data)
}

// Validate checks the scenario and sorts its events by time.
func (s *Scenario) Validate() error {
	if err := s.Config.Validate(); err != nil {
		return err
	}
	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("%w, got %v", ErrDuration, s.Duration)
	}
	if s.Latency < 0 {
		return fmt.Errorf("conversion latency cannot be negative, got %d", s.Latency)
	}
	if err := checkPots(s.Pots); err != nil {
		return err
	}
	for i, e := range s.Events {
		if e.At < 0 || e.At > s.Duration {
			return fmt.Errorf("event %d at %v s is outside [0, %v]", i, e.At, s.Duration)
		}
		if err := checkPots(e.Pots); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	sort.SliceStable(s.Events, func(i, j int) bool { return s.Events[i].At < s.Events[j].At })
	return nil
}

func checkPots(pots map[string]int) error {
	for name, raw := range pots {
		if _, err := uadsr.ParseChannel(name); err != nil {
			return err
		}
		if raw < 0 || raw > uadsr.RawMax {
			return fmt.Errorf("pot %v = %d is outside [0, %d]", name, raw, uadsr.RawMax)
		}
	}
	return nil
}

// Ticks is the number of ticks the scenario lasts.
func (s *Scenario) Ticks() int {
	return int(math.Round(s.Duration * float64(s.Config.TickRate)))
}

// Render runs the scenario and returns the trace of the DAC output. Rendering
// is deterministic: the same scenario always gives the same trace.
func Render(s Scenario) (*trace.Trace, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	layout, err := mcp48x1.NewLayout(s.Config.ResolutionBits)
	if err != nil {
		return nil, err
	}
	bus := sim.NewBus()
	adc := sim.NewADC(s.Latency)
	in := &sim.Inputs{}
	setPots(adc, s.Pots)
	// the foreground and the tick run in lockstep, so the clock only matters
	// for the conversion timeout; freeze it to keep rendering deterministic
	frozen := func() time.Time { return time.Time{} }
	c, err := controller.New(s.Config, mcp48x1.New(layout, bus.Clock(), bus.Data(), bus.Latch()), adc, in, controller.WithClock(frozen))
	if err != nil {
		return nil, err
	}
	tr := trace.New(s.Config)
	ticks := s.Ticks()
	next := 0
	value := 0
	for tick := 0; tick < ticks; tick++ {
		for ; next < len(s.Events) && s.Events[next].At*float64(s.Config.TickRate) <= float64(tick); next++ {
			apply(s.Events[next], adc, in)
		}
		if err := c.Step(); err != nil {
			return nil, fmt.Errorf("tick %d: %w", tick, err)
		}
		if f, ok := bus.Last(); ok {
			value, _, _ = layout.Decode(f.Bytes())
		}
		tr.Append(value, c.Envelope().Mode())
	}
	tr.Frames = bus.Len()
	return tr, nil
}

func apply(e Event, adc *sim.ADC, in *sim.Inputs) {
	if e.Gate != nil {
		in.SetGate(*e.Gate)
	}
	if e.Trigger != nil {
		in.SetTrigger(*e.Trigger)
	}
	setPots(adc, e.Pots)
}

func setPots(adc *sim.ADC, pots map[string]int) {
	for name, raw := range pots {
		if ch, err := uadsr.ParseChannel(name); err == nil {
			adc.SetPot(ch, raw)
		}
	}
}
