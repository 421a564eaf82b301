package gomidi_test

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/zerogroup/uadsr"
	"github.com/zerogroup/uadsr/gomidi"
)

func levels(t *testing.T, k *gomidi.Keyboard) (bool, bool) {
	t.Helper()
	gate, trigger, err := k.Levels()
	if err != nil {
		t.Fatalf("Levels failed: %v", err)
	}
	return gate, trigger
}

func TestGateFollowsHeldKeys(t *testing.T) {
	k := gomidi.NewKeyboard()
	k.HandleMessage(midi.NoteOn(0, 60, 100), 0)
	k.HandleMessage(midi.NoteOn(0, 64, 100), 0)
	if gate, trigger := levels(t, k); !gate || !trigger {
		t.Fatalf("after note on: gate %v trigger %v, expected both high", gate, trigger)
	}
	if _, trigger := levels(t, k); trigger {
		t.Error("trigger reported twice for one press")
	}
	k.HandleMessage(midi.NoteOff(0, 60), 0)
	if gate, _ := levels(t, k); !gate {
		t.Error("gate dropped while a key is still held")
	}
	// note on with zero velocity is a note off
	k.HandleMessage(midi.NoteOn(0, 64, 0), 0)
	if gate, trigger := levels(t, k); gate || trigger {
		t.Errorf("all keys up: gate %v trigger %v, expected both low", gate, trigger)
	}
}

func TestRepeatedNoteOn(t *testing.T) {
	k := gomidi.NewKeyboard()
	k.HandleMessage(midi.NoteOn(3, 60, 100), 0)
	k.HandleMessage(midi.NoteOn(3, 60, 90), 0)
	k.HandleMessage(midi.NoteOff(3, 60), 0)
	if gate, _ := levels(t, k); gate {
		t.Error("a doubled note on should be released by one note off")
	}
}

func TestAllOff(t *testing.T) {
	k := gomidi.NewKeyboard()
	k.HandleMessage(midi.NoteOn(0, 1, 1), 0)
	k.AllOff()
	if gate, trigger := levels(t, k); gate || trigger {
		t.Errorf("gate %v trigger %v after AllOff", gate, trigger)
	}
}

func TestKnobs(t *testing.T) {
	k := gomidi.NewKeyboard(gomidi.WithPots([uadsr.NumChannels]int{0, 100, 2000, -1}))
	if k.Pot(uadsr.SustainChannel) != uadsr.RawMax || k.Pot(uadsr.ReleaseChannel) != 0 {
		t.Errorf("initial pots not clamped")
	}
	k.HandleMessage(midi.ControlChange(0, gomidi.DefaultControls[uadsr.DecayChannel], 127), 0)
	k.HandleMessage(midi.ControlChange(0, 1, 127), 0) // mod wheel, ignored
	if err := k.StartConversion(uadsr.DecayChannel); err != nil {
		t.Fatalf("StartConversion failed: %v", err)
	}
	if !k.ConversionReady() {
		t.Fatal("conversion not ready")
	}
	raw, err := k.ReadRaw()
	if err != nil || raw != uadsr.RawMax {
		t.Errorf("ReadRaw = %d, %v; expected %d", raw, err, uadsr.RawMax)
	}
	if _, err := k.ReadRaw(); err == nil {
		t.Error("second read of one conversion should fail")
	}
	if k.Pot(uadsr.AttackChannel) != 0 {
		t.Error("mod wheel moved the attack pot")
	}
}

func TestCustomControls(t *testing.T) {
	k := gomidi.NewKeyboard(gomidi.WithControls([uadsr.NumChannels]uint8{20, 21, 22, 23}))
	k.HandleMessage(midi.ControlChange(5, 22, 64), 0)
	if got, want := k.Pot(uadsr.SustainChannel), 64*uadsr.RawMax/127; got != want {
		t.Errorf("sustain pot = %d, expected %d", got, want)
	}
}
