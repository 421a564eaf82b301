// Package controller runs the envelope generator.
//
// Two contexts share the envelope. The tick context advances the envelope at
// the configured rate and writes the DAC; it is the only goroutine touching
// the DAC. The foreground context polls the potentiometer sampler and the
// gate/trigger monitor as fast as it is allowed to. They communicate only
// through the envelope's atomic parameter snapshot and force mailbox.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/envelope"
	"github.com/zerogroup/uadsr/gate"
	"github.com/zerogroup/uadsr/sampler"
)

type (
	Controller struct {
		cfg      uadsr.Config
		env      *envelope.Envelope
		sampler  *sampler.Sampler
		monitor  *gate.Monitor
		dac      uadsr.DAC
		tap      *tap
		logger   *log.Logger
		poll     time.Duration
		wake     time.Duration
		maxBurst int
		now      func() time.Time

		ticks     uint64 // owned by the tick context
		tickCount atomic.Uint64
		dacErrors atomic.Uint64
		overruns  atomic.Uint64
		running   atomic.Bool

		// copied from the sampler by the foreground context
		conversions atomic.Uint64
		retries     atomic.Uint64
	}

	Option func(*Controller)

	Stats struct {
		Ticks       uint64
		DACErrors   uint64
		Overruns    uint64
		Dropped     uint64
		Conversions uint64
		Retries     uint64
	}
)

var ErrRunning = errors.New("controller is already running")

// WithLogger sets where errors from the hardware adapters are reported.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithObserver copies every DAC write to ch, dropping samples when ch is full.
func WithObserver(ch chan<- Sample) Option {
	return func(c *Controller) { c.tap.observer = ch }
}

// WithPollInterval sets the pause between foreground iterations in Run.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

// WithWakeInterval sets how often the tick goroutine wakes up in Run. Every
// wake-up runs all ticks that fell due since the previous one.
func WithWakeInterval(d time.Duration) Option {
	return func(c *Controller) { c.wake = d }
}

// WithClock replaces time.Now for the tick scheduler and the sampler timeout.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(cfg uadsr.Config, dac uadsr.DAC, adc uadsr.ADC, in uadsr.Inputs, options ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	c := &Controller{
		cfg:      cfg,
		dac:      dac,
		logger:   log.Default(),
		poll:     100 * time.Microsecond,
		wake:     time.Millisecond,
		maxBurst: max(1, cfg.TickRate/10),
		now:      time.Now,
	}
	c.tap = &tap{dac: dac, tick: &c.ticks}
	for _, o := range options {
		o(c)
	}
	c.env = envelope.New(cfg, c.tap)
	c.tap.mode = c.env.Mode
	c.sampler = sampler.New(cfg, adc, c.env, sampler.WithClock(c.now))
	c.monitor = gate.New(in, c.env)
	return c, nil
}

func (c *Controller) Envelope() *envelope.Envelope { return c.env }
func (c *Controller) Sampler() *sampler.Sampler    { return c.sampler }
func (c *Controller) Monitor() *gate.Monitor       { return c.monitor }
func (c *Controller) Config() uadsr.Config         { return c.cfg }

// Foreground runs one iteration of the foreground loop: one sampler step and
// one gate/trigger poll. A sampler error does not prevent the poll.
func (c *Controller) Foreground() error {
	_, errSampler := c.sampler.Step()
	s := c.sampler.Stats()
	c.conversions.Store(s.Conversions)
	c.retries.Store(s.Retries)
	errMonitor := c.monitor.Poll()
	return errors.Join(errSampler, errMonitor)
}

// Tick runs one envelope tick.
func (c *Controller) Tick() error {
	c.ticks++
	c.tickCount.Store(c.ticks)
	if err := c.env.Tick(); err != nil {
		c.dacErrors.Add(1)
		return err
	}
	return nil
}

// Step runs one foreground iteration followed by one tick. Simulations use it
// to advance the controller deterministically.
func (c *Controller) Step() error {
	return errors.Join(c.Foreground(), c.Tick())
}

// Run drives the controller in real time until ctx is done. The DAC is left
// at its last value; call Shutdown afterwards to switch its output off.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer c.running.Store(false)
	if err := c.sampler.Start(); err != nil {
		// the sampler retries the conversion once the timeout expires
		c.logger.Printf("sampler: %v", err)
	}
	start := c.now()
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		c.runTicks(ctx, start)
	}()
	c.runForeground(ctx)
	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		return errors.New("tick goroutine did not stop")
	}
	return nil
}

func (c *Controller) runTicks(ctx context.Context, start time.Time) {
	ticker := time.NewTicker(c.wake)
	defer ticker.Stop()
	period := c.cfg.TickPeriod()
	var done uint64
	var lastReport time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		due := uint64(c.now().Sub(start) / period)
		if behind := due - done; behind > uint64(c.maxBurst) {
			// the host fell too far behind; skip time rather than racing
			c.overruns.Add(1)
			done = due - uint64(c.maxBurst)
		}
		var firstErr error
		for ; done < due; done++ {
			if err := c.Tick(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil && c.now().Sub(lastReport) >= time.Second {
			lastReport = c.now()
			c.logger.Printf("dac write failed (%d failures so far): %v", c.dacErrors.Load(), firstErr)
		}
	}
}

func (c *Controller) runForeground(ctx context.Context) {
	var lastReport time.Time
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := c.Foreground(); err != nil && c.now().Sub(lastReport) >= time.Second {
			lastReport = c.now()
			c.logger.Printf("foreground: %v", err)
		}
		if c.poll > 0 {
			time.Sleep(c.poll)
		}
	}
}

// Shutdown writes a shutdown word to the DAC. It must not be called while Run
// is active.
func (c *Controller) Shutdown() error {
	if c.running.Load() {
		return ErrRunning
	}
	return c.dac.Write(0, true, true)
}

func (c *Controller) Stats() Stats {
	return Stats{
		Ticks:       c.tickCount.Load(),
		DACErrors:   c.dacErrors.Load(),
		Overruns:    c.overruns.Load(),
		Dropped:     c.tap.dropped.Load(),
		Conversions: c.conversions.Load(),
		Retries:     c.retries.Load(),
	}
}
