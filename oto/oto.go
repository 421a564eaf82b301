// Package oto plays envelope output through the sound card, so that an
// envelope can be auditioned instead of measured. The envelope sets the
// amplitude of a sine tone, the way it would drive a VCA.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

type (
	Context struct {
		ctx        *oto.Context
		sampleRate int
	}

	Playback struct {
		player *oto.Player
	}
)

const otoBufferSize = 20 * time.Millisecond

// NewContext opens the default output device for mono float32 audio and waits
// until it is ready.
func NewContext(sampleRate int) (*Context, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, sampleRate: sampleRate}, nil
}

func (c *Context) SampleRate() int { return c.sampleRate }

// Play starts playing r, which must produce mono float32 little-endian
// samples at the context sample rate.
func (c *Context) Play(r io.Reader) *Playback {
	p := c.ctx.NewPlayer(r)
	p.Play()
	return &Playback{player: p}
}

// Wait blocks until the reader is exhausted and everything buffered has been
// played.
func (p *Playback) Wait() {
	for p.player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
}

func (p *Playback) Close() error {
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
