package sampler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/sampler"
	"github.com/zerogroup/uadsr/sim"
)

type paramLog struct{ snapshots []uadsr.Params }

func (l *paramLog) SetParams(p uadsr.Params) { l.snapshots = append(l.snapshots, p) }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Unix(0, 0)} }

func stepN(t *testing.T, s *sampler.Sampler, n int) int {
	t.Helper()
	consumed := 0
	for i := 0; i < n; i++ {
		ok, err := s.Step()
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if ok {
			consumed++
		}
	}
	return consumed
}

func TestRoundRobinOrder(t *testing.T) {
	adc := sim.NewADC(0)
	log := &paramLog{}
	s := sampler.New(uadsr.DefaultConfig, adc, log)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	want := []uadsr.Channel{uadsr.AttackChannel, uadsr.DecayChannel, uadsr.SustainChannel, uadsr.ReleaseChannel, uadsr.AttackChannel}
	for i, ch := range want {
		if s.Channel() != ch {
			t.Fatalf("conversion %d on %v, expected %v", i, s.Channel(), ch)
		}
		stepN(t, s, 1)
	}
	if len(log.snapshots) != len(want) {
		t.Errorf("published %d snapshots, expected one per conversion (%d)", len(log.snapshots), len(want))
	}
}

func TestParamsFromPots(t *testing.T) {
	cfg := uadsr.DefaultConfig
	adc := sim.NewADC(2)
	adc.SetPot(uadsr.AttackChannel, 0)
	adc.SetPot(uadsr.DecayChannel, 1023)
	adc.SetPot(uadsr.SustainChannel, 1023)
	adc.SetPot(uadsr.ReleaseChannel, 512)
	log := &paramLog{}
	s := sampler.New(cfg, adc, log, sampler.WithClock(newClock().now))
	if got := stepN(t, s, 12); got != 4 {
		t.Fatalf("consumed %d readings in 12 steps with latency 2, expected 4", got)
	}
	p := log.snapshots[len(log.snapshots)-1]
	max := cfg.MaxLevel()
	if want := max / cfg.MaxRise / float64(cfg.TickRate); p.AttackIncrement != want {
		t.Errorf("attack increment at raw 0 = %v, expected %v", p.AttackIncrement, want)
	}
	if want := max / cfg.MinRise / float64(cfg.TickRate); !near(p.DecayIncrement, want) {
		t.Errorf("decay increment at raw 1023 = %v, expected %v", p.DecayIncrement, want)
	}
	if p.SustainLevel != 1023 {
		t.Errorf("sustain level at raw 1023 = %d, expected 1023", p.SustainLevel)
	}
	if p.ReleaseIncrement != cfg.Increment(512) {
		t.Errorf("release increment = %v, expected %v", p.ReleaseIncrement, cfg.Increment(512))
	}
}

func TestSnapshotsAreComplete(t *testing.T) {
	adc := sim.NewADC(0)
	for ch := uadsr.Channel(0); ch < uadsr.NumChannels; ch++ {
		adc.SetPot(ch, 700)
	}
	log := &paramLog{}
	s := sampler.New(uadsr.DefaultConfig, adc, log)
	stepN(t, s, 4)
	adc.SetPot(uadsr.AttackChannel, 100)
	stepN(t, s, 1)
	last := log.snapshots[len(log.snapshots)-1]
	prev := log.snapshots[len(log.snapshots)-2]
	if last.DecayIncrement != prev.DecayIncrement || last.SustainLevel != prev.SustainLevel || last.ReleaseIncrement != prev.ReleaseIncrement {
		t.Errorf("an attack conversion changed other fields: %+v -> %+v", prev, last)
	}
	if last.AttackIncrement == prev.AttackIncrement {
		t.Error("attack increment did not follow the pot")
	}
}

func TestStalledConversionIsRetried(t *testing.T) {
	cfg := uadsr.DefaultConfig
	cfg.ConversionTimeout = time.Millisecond
	adc := sim.NewADC(0)
	adc.Drop(1)
	clock := newClock()
	log := &paramLog{}
	s := sampler.New(cfg, adc, log, sampler.WithClock(clock.now))
	if got := stepN(t, s, 10); got != 0 {
		t.Fatalf("a dropped conversion produced %d readings", got)
	}
	clock.advance(time.Millisecond)
	stepN(t, s, 1)
	if s.Stats().Retries != 1 {
		t.Fatalf("retries = %d, expected 1", s.Stats().Retries)
	}
	if adc.Starts(uadsr.AttackChannel) != 2 {
		t.Errorf("attack conversion started %d times, expected 2", adc.Starts(uadsr.AttackChannel))
	}
	if got := stepN(t, s, 1); got != 1 {
		t.Errorf("retried conversion was not consumed")
	}
}

func TestRawReadingsAreClamped(t *testing.T) {
	cfg := uadsr.DefaultConfig
	adc := sim.NewADC(0)
	adc.SetPot(uadsr.AttackChannel, 4000)
	log := &paramLog{}
	s := sampler.New(cfg, adc, log)
	stepN(t, s, 1)
	if got := s.Stats().Raw[uadsr.AttackChannel]; got != 1023 {
		t.Errorf("raw reading stored as %d, expected 1023", got)
	}
	if log.snapshots[0].AttackIncrement != cfg.Increment(1023) {
		t.Errorf("over range reading was not clamped")
	}
}

var (
	errRead  = errors.New("read failed")
	errStart = errors.New("start failed")
)

// faultyADC converts like sim.ADC but fails the operations whose errors are set.
type faultyADC struct {
	*sim.ADC
	readErr, startErr error
}

func (a *faultyADC) StartConversion(ch uadsr.Channel) error {
	if a.startErr != nil {
		return a.startErr
	}
	return a.ADC.StartConversion(ch)
}

func (a *faultyADC) ReadRaw() (int, error) {
	if a.readErr != nil {
		return 0, a.readErr
	}
	return a.ADC.ReadRaw()
}

func TestReadFailureReportsRestart(t *testing.T) {
	adc := &faultyADC{ADC: sim.NewADC(0)}
	log := &paramLog{}
	s := sampler.New(uadsr.DefaultConfig, adc, log)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	adc.readErr, adc.startErr = errRead, errStart
	ok, err := s.Step()
	if ok {
		t.Fatal("a failed read was consumed")
	}
	if !errors.Is(err, errRead) || !errors.Is(err, errStart) {
		t.Fatalf("error %v, expected both the read and the restart failure", err)
	}
	if s.Channel() != uadsr.AttackChannel {
		t.Fatalf("channel advanced to %v without a reading", s.Channel())
	}
	adc.readErr, adc.startErr = nil, nil
	if ok, err := s.Step(); !ok || err != nil {
		t.Fatalf("Step after the fault = %v, %v; expected a reading", ok, err)
	}
	if s.Channel() != uadsr.DecayChannel || len(log.snapshots) != 1 {
		t.Errorf("on %v with %d snapshots, expected decay and 1", s.Channel(), len(log.snapshots))
	}
}

func near(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9*b
}
