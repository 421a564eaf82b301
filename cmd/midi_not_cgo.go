//go:build !cgo

package cmd

import (
	"errors"
	"io"

	"github.com/zerogroup/uadsr/gomidi"
)

// without cgo there is no MIDI driver
var errNoMIDI = errors.New("MIDI input needs a build with cgo enabled")

func OpenMIDI(k *gomidi.Keyboard, namePrefix string) (io.Closer, string, error) {
	return nil, "", errNoMIDI
}

func MIDIInputs() ([]string, error) {
	return nil, errNoMIDI
}
