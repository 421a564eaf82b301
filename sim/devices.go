package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zerogroup/uadsr"
)

// ErrNoConversion is returned by ADC.ReadRaw when nothing is ready to read.
var ErrNoConversion = errors.New("sim: no conversion ready")

type (
	// ADC converts the virtual potentiometer positions. A conversion becomes
	// ready after Latency calls to ConversionReady. Drop makes the next n
	// conversions never complete, like a lost ready event on real hardware.
	ADC struct {
		mu        sync.Mutex
		pots      [uadsr.NumChannels]int
		latency   int
		drop      int
		pending   bool
		lost      bool
		channel   uadsr.Channel
		remaining int
		ready     bool
		starts    [uadsr.NumChannels]int
	}

	// Inputs holds the gate and trigger levels.
	Inputs struct {
		gate    atomic.Bool
		trigger atomic.Bool
	}

	// DAC records every write it receives.
	DAC struct {
		mu     sync.Mutex
		writes []Write
	}

	Write struct {
		Value      int
		GainEnable bool
		Shutdown   bool
	}
)

func NewADC(latency int) *ADC {
	return &ADC{latency: latency}
}

// SetPot sets the raw reading the channel converts to.
func (a *ADC) SetPot(ch uadsr.Channel, raw int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pots[ch] = raw
}

// Drop loses the next n conversions.
func (a *ADC) Drop(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.drop += n
}

// Starts returns how many conversions were started on ch.
func (a *ADC) Starts(ch uadsr.Channel) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts[ch]
}

func (a *ADC) StartConversion(ch uadsr.Channel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channel = ch
	a.pending = true
	a.ready = false
	a.remaining = a.latency
	a.starts[ch]++
	a.lost = a.drop > 0
	if a.lost {
		a.drop--
	}
	return nil
}

func (a *ADC) ConversionReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending || a.lost {
		return false
	}
	if a.remaining > 0 {
		a.remaining--
		return false
	}
	a.ready = true
	return true
}

func (a *ADC) ReadRaw() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ready {
		return 0, ErrNoConversion
	}
	a.ready, a.pending = false, false
	return a.pots[a.channel], nil
}

func (in *Inputs) SetGate(high bool)    { in.gate.Store(high) }
func (in *Inputs) SetTrigger(high bool) { in.trigger.Store(high) }

func (in *Inputs) Levels() (gate, trigger bool, err error) {
	return in.gate.Load(), in.trigger.Load(), nil
}

func (d *DAC) Write(value int, gainEnable, shutdown bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, Write{Value: value, GainEnable: gainEnable, Shutdown: shutdown})
	return nil
}

// Writes returns a copy of the recorded writes.
func (d *DAC) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	ret := make([]Write, len(d.writes))
	copy(ret, d.writes)
	return ret
}

// Last returns the most recent write.
func (d *DAC) Last() (Write, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.writes) == 0 {
		return Write{}, false
	}
	return d.writes[len(d.writes)-1], true
}

func (d *DAC) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = d.writes[:0]
}
