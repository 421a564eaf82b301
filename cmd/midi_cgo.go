//go:build cgo

package cmd

import (
	"io"

	"github.com/zerogroup/uadsr/gomidi"
)

// OpenMIDI connects k to the first MIDI input whose name starts with
// namePrefix.
func OpenMIDI(k *gomidi.Keyboard, namePrefix string) (io.Closer, string, error) {
	p, err := gomidi.Open(k, namePrefix)
	if err != nil {
		return nil, "", err
	}
	return p, p.String(), nil
}

func MIDIInputs() ([]string, error) {
	return gomidi.Inputs()
}
