// Package sim provides virtual hardware for the controller: output pins that
// feed a logic analyzer, a potentiometer ADC, gate and trigger inputs, and a
// DAC that records what it was asked to write.
package sim

import (
	"sync"

	"github.com/zerogroup/uadsr"
)

type (
	// Bus watches the clock, data and latch lines of a 3-wire serial link and
	// decodes every latch-framed transfer into a Frame. Bits are sampled on
	// the rising clock edge, most significant first.
	Bus struct {
		mu       sync.Mutex
		clk      bool
		data     bool
		latch    bool
		selected bool
		shift    uint32
		nbits    int
		frames   []Frame
		edges    int
	}

	// Frame is one transfer between a falling and a rising latch edge.
	Frame struct {
		Bits int
		Word uint32
	}

	busPin struct {
		bus  *Bus
		line busLine
	}

	busLine int
)

const (
	clockLine busLine = iota
	dataLine
	latchLine
)

// NewBus returns a bus with the latch idle high.
func NewBus() *Bus {
	return &Bus{latch: true}
}

func (b *Bus) Clock() uadsr.Pin { return busPin{b, clockLine} }
func (b *Bus) Data() uadsr.Pin  { return busPin{b, dataLine} }
func (b *Bus) Latch() uadsr.Pin { return busPin{b, latchLine} }

func (p busPin) Set(high bool) error {
	p.bus.set(p.line, high)
	return nil
}

func (b *Bus) set(line busLine, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch line {
	case dataLine:
		b.data = high
	case clockLine:
		if high && !b.clk {
			b.edges++
			if b.selected {
				b.shift <<= 1
				if b.data {
					b.shift |= 1
				}
				b.nbits++
			}
		}
		b.clk = high
	case latchLine:
		switch {
		case !high && b.latch:
			b.selected = true
			b.shift, b.nbits = 0, 0
		case high && !b.latch && b.selected:
			b.frames = append(b.frames, Frame{Bits: b.nbits, Word: b.shift})
			b.selected = false
		}
		b.latch = high
	}
}

// Frames returns a copy of the frames committed so far.
func (b *Bus) Frames() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	ret := make([]Frame, len(b.frames))
	copy(ret, b.frames)
	return ret
}

// Last returns the most recent frame.
func (b *Bus) Last() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == 0 {
		return Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// ClockEdges counts rising clock edges, whether or not the latch was low.
func (b *Bus) ClockEdges() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.edges
}

// Reset forgets all decoded frames.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
	b.edges = 0
}

// Bytes splits a 16-bit frame into the two transmitted bytes.
func (f Frame) Bytes() (byte, byte) {
	return byte(f.Word >> 8), byte(f.Word)
}
