package controller

import (
	"sync/atomic"
	"time"

	"github.com/zerogroup/uadsr"
)

type (
	// Sample is one value sent to the DAC, as seen by observers.
	Sample struct {
		Tick  uint64
		Value int
		Mode  uadsr.Mode
	}

	// tap sits between the envelope and the DAC and copies every write to the
	// observer channel. The tick context must never wait on an observer, so
	// samples are dropped when the channel is full.
	tap struct {
		dac      uadsr.DAC
		observer chan<- Sample
		tick     *uint64
		mode     func() uadsr.Mode
		dropped  atomic.Uint64
	}
)

func (t *tap) Write(value int, gainEnable, shutdown bool) error {
	err := t.dac.Write(value, gainEnable, shutdown)
	if t.observer != nil && !shutdown {
		if !TrySend(t.observer, Sample{Tick: *t.tick, Value: value, Mode: t.mode()}) {
			t.dropped.Add(1)
		}
	}
	return err
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
