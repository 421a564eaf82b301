package trace

import (
	"fmt"
	"time"

	"github.com/viterin/vek/vek32"
	"periph.io/x/conn/v3/physic"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/mcp48x1"
)

type (
	Stats struct {
		Ticks       int
		Duration    time.Duration
		Peak        float32 // normalized to [0, 1]
		Mean        float32
		PeakValue   int
		PeakVoltage physic.ElectricPotential
		Phases      []Phase
	}

	// Phase is one contiguous run of ticks in the same mode.
	Phase struct {
		Mode     uadsr.Mode
		Start    int
		Ticks    int
		Duration time.Duration
	}
)

// Stats summarizes the trace. The peak voltage assumes the DAC gain is
// enabled, as it is for every envelope write.
func (t *Trace) Stats() (Stats, error) {
	layout, err := mcp48x1.NewLayout(t.Bits)
	if err != nil {
		return Stats{}, fmt.Errorf("trace stats: %w", err)
	}
	s := Stats{Ticks: t.Len(), Duration: t.Duration()}
	if t.Len() == 0 {
		return s, nil
	}
	n := t.Normalized()
	s.Peak = vek32.Max(n)
	s.Mean = vek32.Mean(n)
	for _, v := range t.Values {
		s.PeakValue = max(s.PeakValue, int(v))
	}
	s.PeakVoltage = layout.Voltage(s.PeakValue, true)
	s.Phases = t.Phases()
	return s, nil
}

// Phases splits the trace into runs of equal mode.
func (t *Trace) Phases() []Phase {
	var ret []Phase
	for i, m := range t.Modes {
		if len(ret) > 0 && ret[len(ret)-1].Mode == m {
			ret[len(ret)-1].Ticks++
			continue
		}
		ret = append(ret, Phase{Mode: m, Start: i, Ticks: 1})
	}
	if t.TickRate <= 0 {
		return ret
	}
	for i := range ret {
		ret[i].Duration = time.Duration(ret[i].Ticks) * time.Second / time.Duration(t.TickRate)
	}
	return ret
}
