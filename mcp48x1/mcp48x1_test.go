package mcp48x1_test

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/physic"

	"github.com/zerogroup/uadsr/mcp48x1"
	"github.com/zerogroup/uadsr/sim"
)

var encodeCases = []struct {
	bits          int
	value         int
	gain, shdn    bool
	first, second byte
}{
	{8, 0, true, false, 0x10, 0x00},
	{8, 0x80, true, false, 0x18, 0x00},
	{8, 0xff, true, false, 0x1f, 0xf0},
	{8, 0xa5, false, false, 0x3a, 0x50},
	{10, 0, true, false, 0x10, 0x00},
	{10, 0x200, true, false, 0x18, 0x00},
	{10, 0x3ff, true, false, 0x1f, 0xfc},
	{10, 0x155, false, true, 0x25, 0x54},
	{12, 0, true, false, 0x10, 0x00},
	{12, 0x800, true, false, 0x18, 0x00},
	{12, 0xfff, true, false, 0x1f, 0xff},
	{12, 0xabc, true, true, 0x0a, 0xbc},
}

func TestEncode(t *testing.T) {
	for _, c := range encodeCases {
		layout, err := mcp48x1.NewLayout(c.bits)
		if err != nil {
			t.Fatalf("NewLayout(%d) failed: %v", c.bits, err)
		}
		first, second := layout.Encode(c.value, c.gain, c.shdn)
		if first != c.first || second != c.second {
			t.Errorf("%d-bit Encode(%#x, %v, %v) = %#02x %#02x, expected %#02x %#02x",
				c.bits, c.value, c.gain, c.shdn, first, second, c.first, c.second)
		}
		value, gain, shdn := layout.Decode(first, second)
		if value != c.value || gain != c.gain || shdn != c.shdn {
			t.Errorf("%d-bit Decode(%#02x, %#02x) = (%#x, %v, %v)", c.bits, first, second, value, gain, shdn)
		}
	}
}

func TestEncodeClampsValue(t *testing.T) {
	layout, _ := mcp48x1.NewLayout(10)
	if f, s := layout.Encode(5000, true, false); f != 0x1f || s != 0xfc {
		t.Errorf("over range value encoded as %#02x %#02x", f, s)
	}
	if f, s := layout.Encode(-3, true, false); f != 0x10 || s != 0x00 {
		t.Errorf("negative value encoded as %#02x %#02x", f, s)
	}
}

func TestNewLayoutRejectsResolution(t *testing.T) {
	for _, bits := range []int{0, 4, 9, 16} {
		if _, err := mcp48x1.NewLayout(bits); err == nil {
			t.Errorf("NewLayout(%d) should fail", bits)
		}
	}
}

func TestWireFraming(t *testing.T) {
	for _, c := range encodeCases {
		layout, _ := mcp48x1.NewLayout(c.bits)
		bus := sim.NewBus()
		dac := mcp48x1.New(layout, bus.Clock(), bus.Data(), bus.Latch())
		if err := dac.Write(c.value, c.gain, c.shdn); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		frames := bus.Frames()
		if len(frames) != 1 {
			t.Fatalf("expected one latched frame, got %d", len(frames))
		}
		if frames[0].Bits != 16 {
			t.Errorf("frame has %d bits, expected 16", frames[0].Bits)
		}
		first, second := frames[0].Bytes()
		if first != c.first || second != c.second {
			t.Errorf("%d-bit wire bytes for %#x = %#02x %#02x, expected %#02x %#02x",
				c.bits, c.value, first, second, c.first, c.second)
		}
	}
}

func TestShutdownFrame(t *testing.T) {
	layout, _ := mcp48x1.NewLayout(12)
	bus := sim.NewBus()
	dac := mcp48x1.New(layout, bus.Clock(), bus.Data(), bus.Latch())
	if err := dac.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	first, _ := bus.Frames()[0].Bytes()
	if first&0x10 != 0 {
		t.Errorf("shutdown frame %#02x has the active bit set", first)
	}
}

type failingPin struct{ calls int }

func (p *failingPin) Set(bool) error {
	p.calls++
	return errors.New("line gone")
}

func TestWriteCompletesDespitePinError(t *testing.T) {
	layout, _ := mcp48x1.NewLayout(10)
	bus := sim.NewBus()
	data := &failingPin{}
	dac := mcp48x1.New(layout, bus.Clock(), data, bus.Latch())
	if err := dac.Write(100, true, false); err == nil {
		t.Fatal("expected the pin error to be returned")
	}
	if data.calls != 16 {
		t.Errorf("data line set %d times, expected 16", data.calls)
	}
	if n := len(bus.Frames()); n != 1 {
		t.Errorf("expected the latch to still commit one frame, got %d", n)
	}
}

func TestVoltage(t *testing.T) {
	layout, _ := mcp48x1.NewLayout(12)
	if v := layout.Voltage(2048, false); v != 1024*physic.MilliVolt {
		t.Errorf("mid scale at 1x = %v, expected 1.024V", v)
	}
	if v := layout.Voltage(2048, true); v != 2048*physic.MilliVolt {
		t.Errorf("mid scale at 2x = %v, expected 2.048V", v)
	}
}
