// Package mcp48x1 drives Microchip MCP4801/4811/4821 style single channel
// DACs over a bit-banged 3-wire serial link.
//
// A write is two bytes sent MSB first while the latch (chip select) is held
// low; the rising latch edge commits the value to the output register. The
// first byte carries, from bit 5 down, the inverted gain-enable flag, the
// inverted shutdown flag and the top four value bits. The second byte carries
// the remaining value bits, left-justified.
//
// The bus has no acknowledgement, so a missing or miswired DAC cannot be
// detected. Errors returned by Write come only from the host pins.
package mcp48x1

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"

	"github.com/zerogroup/uadsr"
)

const (
	gainBit     byte = 1 << 5
	shutdownBit byte = 1 << 4
	msbMask     byte = 0x0f

	// InternalRef is the internal voltage reference of the MCP48x1 family.
	InternalRef physic.ElectricPotential = 2048 * physic.MilliVolt
)

var errResolution = errors.New("mcp48x1: resolution must be 8, 10 or 12 bits")

// Layout is the bit split of a value for one DAC resolution. It is computed
// once by NewLayout.
type Layout struct {
	bits     int
	max      int
	msbShift uint
	lsbMask  int
	lsbShift uint
}

func NewLayout(bits int) (Layout, error) {
	switch bits {
	case 8, 10, 12:
	default:
		return Layout{}, fmt.Errorf("%w, got %d", errResolution, bits)
	}
	low := uint(bits - 4)
	return Layout{
		bits:     bits,
		max:      1<<bits - 1,
		msbShift: low,
		lsbMask:  1<<low - 1,
		lsbShift: 8 - low,
	}, nil
}

func (l Layout) Bits() int { return l.bits }
func (l Layout) Max() int  { return l.max }

// Encode packs value and the two flags into the transmitted byte pair. Values
// outside [0, Max] are clamped.
func (l Layout) Encode(value int, gainEnable, shutdown bool) (byte, byte) {
	if value < 0 {
		value = 0
	} else if value > l.max {
		value = l.max
	}
	var first byte
	if !gainEnable {
		first |= gainBit
	}
	if !shutdown {
		first |= shutdownBit
	}
	first |= byte(value>>l.msbShift) & msbMask
	second := byte((value & l.lsbMask) << l.lsbShift)
	return first, second
}

// Decode is the inverse of Encode.
func (l Layout) Decode(first, second byte) (value int, gainEnable, shutdown bool) {
	value = int(first&msbMask)<<l.msbShift | int(second)>>l.lsbShift
	return value, first&gainBit == 0, first&shutdownBit == 0
}

// Voltage is the nominal output of a DAC running from the internal reference.
// Gain enabled selects the 2x output range.
func (l Layout) Voltage(value int, gainEnable bool) physic.ElectricPotential {
	v := InternalRef * physic.ElectricPotential(value) / physic.ElectricPotential(l.max+1)
	if gainEnable {
		v *= 2
	}
	return v
}

// DAC writes values through three output pins. It is stateless apart from
// the pin handles and is not safe for concurrent use; the envelope tick is its
// only writer.
type DAC struct {
	layout Layout
	clock  uadsr.Pin
	data   uadsr.Pin
	latch  uadsr.Pin
}

func New(layout Layout, clock, data, latch uadsr.Pin) *DAC {
	return &DAC{layout: layout, clock: clock, data: data, latch: latch}
}

func (d *DAC) Layout() Layout { return d.layout }

// Write sends one value. Once the latch is pulled low the transfer always
// runs to the end; the first pin error is returned afterwards.
func (d *DAC) Write(value int, gainEnable, shutdown bool) error {
	first, second := d.layout.Encode(value, gainEnable, shutdown)
	var errs pinErrors
	errs.add(d.latch.Set(false))
	d.sendByte(first, &errs)
	d.sendByte(second, &errs)
	errs.add(d.latch.Set(true))
	if errs.first != nil {
		return fmt.Errorf("mcp48x1: write %d: %w", value, errs.first)
	}
	return nil
}

// Shutdown puts the output into its high impedance shutdown state.
func (d *DAC) Shutdown() error {
	return d.Write(0, true, true)
}

func (d *DAC) sendByte(b byte, errs *pinErrors) {
	for i := 7; i >= 0; i-- {
		errs.add(d.data.Set(b>>uint(i)&1 == 1))
		errs.add(d.clock.Set(true))
		errs.add(d.clock.Set(false))
	}
}

type pinErrors struct {
	first error
}

func (p *pinErrors) add(err error) {
	if err != nil && p.first == nil {
		p.first = err
	}
}
