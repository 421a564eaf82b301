// Package gate turns the gate and trigger inputs into envelope mode changes.
//
// The inputs are read raw every foreground iteration. There is no debouncing:
// a bouncing contact produces exactly the mode changes its raw levels imply.
package gate

import (
	"fmt"

	"github.com/zerogroup/uadsr"
)

// Target is the envelope the monitor drives.
type Target interface {
	Force(m uadsr.Mode)
	Retrigger()
	Triggered() bool
}

// Monitor applies the gate/trigger policy:
//
//   - trigger high while the trigger latch is clear retriggers the attack and
//     sets the latch;
//   - gate high while not started forces ATTACK and marks the note started;
//   - otherwise gate low while the latch is clear forces RELEASE and clears
//     started.
//
// The latch is cleared only by the envelope when an attack completes, so a
// trigger always runs a full attack whatever the gate does, while a gate that
// drops cancels an attack it started itself.
type Monitor struct {
	in      uadsr.Inputs
	env     Target
	started bool
}

func New(in uadsr.Inputs, env Target) *Monitor {
	return &Monitor{in: in, env: env}
}

// Poll reads the inputs once and applies the policy. On a read error the
// envelope is left alone.
func (m *Monitor) Poll() error {
	gate, trigger, err := m.in.Levels()
	if err != nil {
		return fmt.Errorf("reading gate/trigger: %w", err)
	}
	if trigger && !m.env.Triggered() {
		m.env.Retrigger()
	}
	if gate && !m.started {
		m.env.Force(uadsr.Attack)
		m.started = true
	} else if !gate && !m.env.Triggered() {
		m.env.Force(uadsr.Release)
		m.started = false
	}
	return nil
}

// Started reports whether the gate has started a note that has not been
// released yet.
func (m *Monitor) Started() bool { return m.started }
