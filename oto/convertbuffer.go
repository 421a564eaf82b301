package oto

import (
	"encoding/binary"
	"math"
)

// floatsToBytes writes src into dst as little-endian float32 samples clamped
// to [-1, 1], and returns the number of bytes written. dst must hold at
// least 4*len(src) bytes.
func floatsToBytes(dst []byte, src []float32) int {
	for i, v := range src {
		if v < -1.0 {
			v = -1.0
		} else if v > 1.0 {
			v = 1.0
		}
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
	return 4 * len(src)
}
