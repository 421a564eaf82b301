// Package sampler reads the four envelope potentiometers round-robin and
// publishes the derived parameters.
package sampler

import (
	"errors"
	"fmt"
	"time"

	"github.com/zerogroup/uadsr"
)

type (
	// Sink receives a complete parameter snapshot after every conversion.
	Sink interface {
		SetParams(p uadsr.Params)
	}

	// Sampler is a poll driven state machine: Step never blocks, it either
	// consumes a finished conversion and starts the next one, re-issues a
	// conversion that has been pending longer than the timeout, or does
	// nothing.
	Sampler struct {
		cfg     uadsr.Config
		adc     uadsr.ADC
		sink    Sink
		now     func() time.Time
		timeout time.Duration

		params  uadsr.Params
		channel uadsr.Channel
		started time.Time
		running bool
		stats   Stats
	}

	Stats struct {
		Conversions uint64
		Retries     uint64
		Raw         [uadsr.NumChannels]int
	}

	Option func(*Sampler)
)

// WithClock replaces time.Now, for tests and simulations.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

func New(cfg uadsr.Config, adc uadsr.ADC, sink Sink, options ...Option) *Sampler {
	s := &Sampler{
		cfg:     cfg,
		adc:     adc,
		sink:    sink,
		now:     time.Now,
		timeout: cfg.ConversionTimeout,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Start issues the first conversion, on the attack channel.
func (s *Sampler) Start() error {
	s.channel = uadsr.AttackChannel
	s.running = true
	return s.start()
}

// Step runs one foreground iteration. It reports whether a reading was
// consumed.
func (s *Sampler) Step() (bool, error) {
	if !s.running {
		if err := s.Start(); err != nil {
			return false, err
		}
	}
	if !s.adc.ConversionReady() {
		if s.timeout > 0 && s.now().Sub(s.started) >= s.timeout {
			s.stats.Retries++
			return false, s.start()
		}
		return false, nil
	}
	raw, err := s.adc.ReadRaw()
	if err != nil {
		// the reading is lost; convert the same channel again
		return false, errors.Join(fmt.Errorf("reading %v pot: %w", s.channel, err), s.start())
	}
	s.apply(s.channel, raw)
	s.stats.Conversions++
	s.sink.SetParams(s.params)
	s.channel = s.channel.Next()
	return true, s.start()
}

func (s *Sampler) apply(ch uadsr.Channel, raw int) {
	if raw < 0 {
		raw = 0
	} else if raw > uadsr.RawMax {
		raw = uadsr.RawMax
	}
	s.stats.Raw[ch] = raw
	switch ch {
	case uadsr.AttackChannel:
		s.params.AttackIncrement = s.cfg.Increment(raw)
	case uadsr.DecayChannel:
		s.params.DecayIncrement = s.cfg.Increment(raw)
	case uadsr.SustainChannel:
		s.params.SustainLevel = s.cfg.SustainLevel(raw)
	case uadsr.ReleaseChannel:
		s.params.ReleaseIncrement = s.cfg.Increment(raw)
	}
}

func (s *Sampler) start() error {
	s.started = s.now()
	if err := s.adc.StartConversion(s.channel); err != nil {
		return fmt.Errorf("starting %v conversion: %w", s.channel, err)
	}
	return nil
}

// Channel is the channel currently being converted.
func (s *Sampler) Channel() uadsr.Channel { return s.channel }

func (s *Sampler) Stats() Stats { return s.stats }
