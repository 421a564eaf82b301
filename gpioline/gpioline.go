//go:build linux

// Package gpioline connects the controller to real hardware through the Linux
// GPIO character device: three output lines bit-bang the DAC, two input lines
// carry the gate and trigger, and a bit-bashed MCP3008 reads the pots.
package gpioline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/warthog618/gpiod/spi/mcp3w0c"

	"github.com/zerogroup/uadsr"
)

type (
	// Pin is an output line.
	Pin struct {
		line *gpiod.Line
	}

	// Inputs reads the gate and trigger lines. Rising edges on the trigger
	// are latched by an edge watcher, so a pulse shorter than the foreground
	// poll interval is still reported once.
	Inputs struct {
		gate    *gpiod.Line
		trigger *gpiod.Line
		pulse   atomic.Bool
	}

	// ADC runs each conversion on its own goroutine, since the bit-bashed
	// MCP3008 transfer blocks for the whole conversion. ConversionReady polls
	// the result flag the goroutine sets.
	ADC struct {
		mu      sync.Mutex
		adc     *mcp3w0c.MCP3w0c
		inputs  [uadsr.NumChannels]int
		busy    bool
		ready   atomic.Bool
		value   uint16
		err     error
		closed  bool
		pending sync.WaitGroup
	}

	// ADCPins are the chip line offsets of the MCP3008 serial interface.
	ADCPins struct {
		Clk, Csz, Di, Do int
	}
)

var (
	ErrClosed       = errors.New("gpioline: closed")
	ErrBusy         = errors.New("gpioline: conversion already in progress")
	ErrNoConversion = errors.New("gpioline: no conversion ready")
)

// NewChip opens a GPIO chip, for example "gpiochip0".
func NewChip(name string) (*gpiod.Chip, error) {
	c, err := gpiod.NewChip(name, gpiod.WithConsumer("uadsr"))
	if err != nil {
		return nil, fmt.Errorf("opening %v failed: %w", name, err)
	}
	return c, nil
}

// NewPin requests an output line, initially low.
func NewPin(c *gpiod.Chip, offset int) (*Pin, error) {
	l, err := c.RequestLine(offset, gpiod.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("requesting output line %d failed: %w", offset, err)
	}
	return &Pin{line: l}, nil
}

// NewLatchPin requests an output line that idles high, for a chip select.
func NewLatchPin(c *gpiod.Chip, offset int) (*Pin, error) {
	l, err := c.RequestLine(offset, gpiod.AsOutput(1))
	if err != nil {
		return nil, fmt.Errorf("requesting latch line %d failed: %w", offset, err)
	}
	return &Pin{line: l}, nil
}

func (p *Pin) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	return p.line.SetValue(v)
}

func (p *Pin) Close() error {
	return p.line.Close()
}

func NewInputs(c *gpiod.Chip, gate, trigger int) (*Inputs, error) {
	in := &Inputs{}
	g, err := c.RequestLine(gate, gpiod.AsInput)
	if err != nil {
		return nil, fmt.Errorf("requesting gate line %d failed: %w", gate, err)
	}
	t, err := c.RequestLine(trigger,
		gpiod.WithRisingEdge,
		gpiod.WithEventHandler(func(gpiod.LineEvent) { in.pulse.Store(true) }))
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("requesting trigger line %d failed: %w", trigger, err)
	}
	in.gate, in.trigger = g, t
	return in, nil
}

// Levels reads both lines. The trigger reads high while the line is high and
// once more after any rising edge seen since the previous call.
func (in *Inputs) Levels() (gate, trigger bool, err error) {
	g, err := in.gate.Value()
	if err != nil {
		return false, false, err
	}
	t, err := in.trigger.Value()
	if err != nil {
		return false, false, err
	}
	pulse := in.pulse.Swap(false)
	return g == 1, t == 1 || pulse, nil
}

func (in *Inputs) Close() error {
	return errors.Join(in.gate.Close(), in.trigger.Close())
}

// NewADC opens an MCP3008 on the given lines. inputs maps the pot channels to
// ADC inputs. tclk is the clock half period and tset the extra settling time
// before the sample is taken.
func NewADC(c *gpiod.Chip, pins ADCPins, inputs [uadsr.NumChannels]int, tclk, tset time.Duration) (*ADC, error) {
	adc, err := mcp3w0c.NewMCP3008(c, pins.Clk, pins.Csz, pins.Di, pins.Do,
		mcp3w0c.WithTclk(tclk),
		mcp3w0c.WithTset(tset))
	if err != nil {
		return nil, fmt.Errorf("opening MCP3008 failed: %w", err)
	}
	return &ADC{adc: adc, inputs: inputs}, nil
}

func (a *ADC) StartConversion(ch uadsr.Channel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.busy {
		return ErrBusy
	}
	a.busy = true
	a.ready.Store(false)
	input := a.inputs[ch]
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		v, err := a.adc.Read(input)
		a.mu.Lock()
		defer a.mu.Unlock()
		a.value, a.err, a.busy = v, err, false
		a.ready.Store(true)
	}()
	return nil
}

func (a *ADC) ConversionReady() bool {
	return a.ready.Load()
}

func (a *ADC) ReadRaw() (int, error) {
	if !a.ready.Swap(false) {
		return 0, ErrNoConversion
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return 0, fmt.Errorf("MCP3008 read failed: %w", a.err)
	}
	return int(a.value), nil
}

// Close waits for a conversion in flight and releases the lines.
func (a *ADC) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.closed = true
	a.mu.Unlock()
	a.pending.Wait()
	return a.adc.Close()
}
