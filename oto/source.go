package oto

import (
	"io"
	"math"

	"github.com/zerogroup/uadsr/controller"
	"github.com/zerogroup/uadsr/trace"
)

type (
	// Voice is a sine oscillator whose amplitude is set by the envelope.
	Voice struct {
		phase float64
		step  float64
		Gain  float32
	}

	// TraceSource plays a rendered trace, holding each tick's value for as
	// many output samples as the tick lasts.
	TraceSource struct {
		voice      *Voice
		levels     []float32
		tickRate   int
		sampleRate int
		pos        int
		buf        []float32
	}

	// LiveSource plays the samples a running controller sends to its
	// observer. Each read drains the channel and ramps from the previous
	// level to the newest one.
	LiveSource struct {
		voice   *Voice
		samples <-chan controller.Sample
		max     float32
		level   float32
		last    controller.Sample
		buf     []float32
	}
)

func NewVoice(sampleRate int, frequency float64) *Voice {
	return &Voice{step: 2 * math.Pi * frequency / float64(sampleRate), Gain: 0.5}
}

// render fills dst with the tone, ramping the amplitude linearly from one
// level to another.
func (v *Voice) render(dst []float32, from, to float32) {
	if len(dst) == 0 {
		return
	}
	delta := (to - from) / float32(len(dst))
	for i := range dst {
		dst[i] = v.Gain * (from + delta*float32(i)) * float32(math.Sin(v.phase))
		v.phase += v.step
		if v.phase >= 2*math.Pi {
			v.phase -= 2 * math.Pi
		}
	}
}

func NewTraceSource(tr *trace.Trace, sampleRate int, voice *Voice) *TraceSource {
	return &TraceSource{
		voice:      voice,
		levels:     tr.Normalized(),
		tickRate:   tr.TickRate,
		sampleRate: sampleRate,
	}
}

// Len is the length of the source in output samples.
func (s *TraceSource) Len() int {
	return int(int64(len(s.levels)) * int64(s.sampleRate) / int64(s.tickRate))
}

func (s *TraceSource) Read(p []byte) (int, error) {
	n := min(len(p)/4, s.Len()-s.pos)
	if n <= 0 {
		return 0, io.EOF
	}
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	buf := s.buf[:n]
	for i := range buf {
		tick := int(int64(s.pos+i) * int64(s.tickRate) / int64(s.sampleRate))
		level := s.levels[tick]
		s.voice.render(buf[i:i+1], level, level)
	}
	s.pos += n
	return floatsToBytes(p, buf), nil
}

func NewLiveSource(samples <-chan controller.Sample, maxLevel int, voice *Voice) *LiveSource {
	return &LiveSource{voice: voice, samples: samples, max: float32(maxLevel)}
}

func (s *LiveSource) Read(p []byte) (int, error) {
	n := len(p) / 4
	if n == 0 {
		return 0, nil
	}
F:
	for {
		select {
		case v, ok := <-s.samples:
			if !ok {
				break F
			}
			s.last = v
		default:
			break F
		}
	}
	if cap(s.buf) < n {
		s.buf = make([]float32, n)
	}
	target := float32(s.last.Value) / s.max
	s.voice.render(s.buf[:n], s.level, target)
	s.level = target
	return floatsToBytes(p, s.buf[:n]), nil
}
