// Package gomidi lets a MIDI controller stand in for the envelope hardware.
// Held keys drive the gate, each new key press pulses the trigger, and four
// control change knobs act as the potentiometers.
package gomidi

import (
	"errors"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/zerogroup/uadsr"
)

type (
	// Keyboard implements both uadsr.Inputs and uadsr.ADC from incoming MIDI
	// messages. HandleMessage is called from the MIDI driver's goroutine, the
	// other methods from the foreground context.
	Keyboard struct {
		mu       sync.Mutex
		held     [16][128]bool
		numHeld  int
		pulse    bool
		controls [uadsr.NumChannels]uint8
		pots     [uadsr.NumChannels]int
		channel  uadsr.Channel
		ready    bool
	}

	Option func(*Keyboard)
)

// DefaultControls are the sound controller numbers for attack, decay,
// sustain and release. Attack and release are the General MIDI 2 assignments.
var DefaultControls = [uadsr.NumChannels]uint8{73, 75, 79, 72}

var ErrNoConversion = errors.New("gomidi: no conversion started")

// WithControls maps control change numbers to the potentiometers, in channel
// order.
func WithControls(c [uadsr.NumChannels]uint8) Option {
	return func(k *Keyboard) { k.controls = c }
}

// WithPots sets the raw readings used until a knob is turned.
func WithPots(raw [uadsr.NumChannels]int) Option {
	return func(k *Keyboard) {
		for ch, r := range raw {
			k.pots[ch] = min(max(r, 0), uadsr.RawMax)
		}
	}
}

func NewKeyboard(options ...Option) *Keyboard {
	k := &Keyboard{controls: DefaultControls}
	for i := range k.pots {
		k.pots[i] = uadsr.RawMax / 2
	}
	for _, o := range options {
		o(k)
	}
	return k
}

// HandleMessage has the signature of a midi.ListenTo receiver.
func (k *Keyboard) HandleMessage(msg midi.Message, timestampms int32) {
	var channel, key, velocity, control, value uint8
	k.mu.Lock()
	defer k.mu.Unlock()
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
		if !k.held[channel][key] {
			k.held[channel][key] = true
			k.numHeld++
		}
		k.pulse = true
	case msg.GetNoteOn(&channel, &key, &velocity), msg.GetNoteOff(&channel, &key, &velocity):
		if k.held[channel][key] {
			k.held[channel][key] = false
			k.numHeld--
		}
	case msg.GetControlChange(&channel, &control, &value):
		for ch, c := range k.controls {
			if c == control {
				k.pots[ch] = int(value) * uadsr.RawMax / 127
			}
		}
	}
}

// Levels reports the gate high while any key is held. The trigger is high
// once for every poll that follows at least one key press.
func (k *Keyboard) Levels() (gate, trigger bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	trigger, k.pulse = k.pulse, false
	return k.numHeld > 0, trigger, nil
}

// AllOff releases every held key and drops a pending trigger.
func (k *Keyboard) AllOff() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.held = [16][128]bool{}
	k.numHeld = 0
	k.pulse = false
}

// StartConversion selects a knob. The reading is ready at once.
func (k *Keyboard) StartConversion(ch uadsr.Channel) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.channel, k.ready = ch, true
	return nil
}

func (k *Keyboard) ConversionReady() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ready
}

func (k *Keyboard) ReadRaw() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.ready {
		return 0, ErrNoConversion
	}
	k.ready = false
	return k.pots[k.channel], nil
}

// Pot returns the current raw reading of a knob.
func (k *Keyboard) Pot(ch uadsr.Channel) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pots[ch]
}
