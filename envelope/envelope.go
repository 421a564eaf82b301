// Package envelope implements the fixed-rate envelope stepper.
//
// Envelope.Tick runs in the tick context and owns the level and mode. The
// foreground publishes complete parameter snapshots with SetParams and
// requests mode changes with Force or Retrigger; both are picked up at the
// start of the next tick, so the tick never observes a half written value.
package envelope

import (
	"math"
	"sync/atomic"

	"github.com/zerogroup/uadsr"
)

const noForce = -1

type Envelope struct {
	maxLevel float64
	dac      uadsr.DAC

	// owned by Tick
	level       float64
	mode        uadsr.Mode
	lastWritten int
	written     bool

	params    atomic.Pointer[uadsr.Params]
	force     atomic.Int32
	triggered atomic.Bool

	// published after every tick for observers
	levelBits atomic.Uint64
	modeOut   atomic.Int32
}

// New returns an idle envelope at level 0 that writes to dac every tick.
func New(cfg uadsr.Config, dac uadsr.DAC) *Envelope {
	e := &Envelope{maxLevel: cfg.MaxLevel(), dac: dac}
	e.params.Store(&uadsr.Params{})
	e.force.Store(noForce)
	return e
}

// Step is the transition ladder of a single tick. It returns the new mode and
// level, and whether the attack completed during this tick, which clears the
// trigger latch. The returned level is always within [0, maxLevel].
func Step(mode uadsr.Mode, level float64, p uadsr.Params, maxLevel float64) (uadsr.Mode, float64, bool) {
	attackDone := false
	switch mode {
	case uadsr.Attack:
		level += p.AttackIncrement
		if level >= maxLevel {
			attackDone = true
			mode = uadsr.Decay
		}
	case uadsr.Decay:
		level -= p.DecayIncrement
		if level <= float64(p.SustainLevel) {
			mode = uadsr.Sustain
		}
	case uadsr.Sustain:
		level = float64(p.SustainLevel)
	case uadsr.Release:
		level -= p.ReleaseIncrement
		if level <= 0 {
			mode = uadsr.Idle
		}
	}
	return mode, clamp(level, maxLevel), attackDone
}

func clamp(level, maxLevel float64) float64 {
	if level < 0 || math.IsNaN(level) {
		return 0
	}
	if level > maxLevel {
		return maxLevel
	}
	return level
}

// Tick advances the envelope by one tick and writes the level to the DAC.
// Writes are skipped in IDLE when the value is unchanged. The returned error
// is the DAC's; the envelope state has advanced regardless.
func (e *Envelope) Tick() error {
	if f := e.force.Swap(noForce); f != noForce {
		e.mode = uadsr.Mode(f)
	}
	var attackDone bool
	e.mode, e.level, attackDone = Step(e.mode, e.level, *e.params.Load(), e.maxLevel)
	if attackDone {
		e.triggered.Store(false)
	}
	e.levelBits.Store(math.Float64bits(e.level))
	e.modeOut.Store(int32(e.mode))
	value := int(e.level)
	if e.mode == uadsr.Idle && e.written && value == e.lastWritten {
		return nil
	}
	e.lastWritten, e.written = value, true
	return e.dac.Write(value, true, false)
}

// SetParams publishes a new parameter snapshot; the next tick uses it.
func (e *Envelope) SetParams(p uadsr.Params) {
	e.params.Store(&p)
}

// Params returns the snapshot the next tick will use.
func (e *Envelope) Params() uadsr.Params {
	return *e.params.Load()
}

// Force requests a mode change that takes effect on the next tick. If several
// are requested between two ticks, the last one wins.
func (e *Envelope) Force(m uadsr.Mode) {
	if !m.Valid() {
		return
	}
	e.force.Store(int32(m))
}

// Retrigger sets the trigger latch and forces ATTACK.
func (e *Envelope) Retrigger() {
	e.triggered.Store(true)
	e.Force(uadsr.Attack)
}

// Triggered reports the trigger latch. It is cleared by the tick that completes
// the attack.
func (e *Envelope) Triggered() bool { return e.triggered.Load() }

// Level returns the level after the most recent tick.
func (e *Envelope) Level() float64 { return math.Float64frombits(e.levelBits.Load()) }

// Mode returns the mode after the most recent tick.
func (e *Envelope) Mode() uadsr.Mode { return uadsr.Mode(e.modeOut.Load()) }

// MaxLevel is the top of the level range.
func (e *Envelope) MaxLevel() float64 { return e.maxLevel }
