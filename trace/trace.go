// Package trace records the DAC output of a simulated envelope run, one value
// per tick, and exports it for listening or plotting.
package trace

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/zerogroup/uadsr"
)

type Trace struct {
	TickRate int
	Bits     int
	Values   []uint16
	Modes    []uadsr.Mode
	Frames   int // serial frames seen on the DAC bus
}

func New(cfg uadsr.Config) *Trace {
	return &Trace{TickRate: cfg.TickRate, Bits: cfg.ResolutionBits}
}

func (t *Trace) Append(value int, mode uadsr.Mode) {
	t.Values = append(t.Values, uint16(clamp(value, 0, t.Max())))
	t.Modes = append(t.Modes, mode)
}

func (t *Trace) Len() int { return len(t.Values) }

// Max is the largest value the DAC accepts at the trace resolution.
func (t *Trace) Max() int { return 1<<t.Bits - 1 }

func (t *Trace) Duration() time.Duration {
	if t.TickRate <= 0 {
		return 0
	}
	return time.Duration(len(t.Values)) * time.Second / time.Duration(t.TickRate)
}

// Normalized returns the values scaled into [0, 1].
func (t *Trace) Normalized() []float32 {
	ret := make([]float32, len(t.Values))
	m := float32(t.Max())
	for i, v := range t.Values {
		ret[i] = float32(v) / m
	}
	return ret
}

// Raw returns the values as little-endian uint16 words.
func (t *Trace) Raw() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, t.Values); err != nil {
		return nil, fmt.Errorf("could not binary write trace: %v", err)
	}
	return buf.Bytes(), nil
}

// Wav returns the trace as a mono 16-bit PCM wave file sampled at the tick
// rate. Full scale maps to the largest positive sample.
func (t *Trace) Wav() ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(len(t.Values), t.TickRate, buf)
	pcm := make([]int16, len(t.Values))
	for i, v := range t.Normalized() {
		pcm[i] = int16(clamp(int(v*math.MaxInt16), 0, math.MaxInt16))
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("Wav failed: %v", err)
	}
	return buf.Bytes(), nil
}

// WriteCSV writes one row per tick: tick, time in seconds, value, mode.
func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"tick", "time", "value", "mode"})
	for i, v := range t.Values {
		cw.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(float64(i)/float64(t.TickRate), 'f', 6, 64),
			strconv.Itoa(int(v)),
			t.Modes[i].String(),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("could not write csv: %w", err)
	}
	return nil
}

// wavHeader writes a wave header for mono int16 audio of the given length in
// samples.
func wavHeader(length, sampleRate int, buf *bytes.Buffer) {
	// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	const numChannels, bytesPerSample = 1, 2
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(36+bytesPerSample*length))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*numChannels*bytesPerSample)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(numChannels*bytesPerSample))            // blockAlign
	binary.Write(buf, binary.LittleEndian, uint16(8*bytesPerSample))                      // bits per sample
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(bytesPerSample*length))
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
