package pcm

import (
	"encoding/binary"
	"math"
	"sync/atomic"
)

// gain is a linear volume factor that can change while a clip plays.
type gain struct {
	bits atomic.Uint32
}

func (g *gain) load() float32 {
	return math.Float32frombits(g.bits.Load())
}

func (g *gain) store(v float32) {
	g.bits.Store(math.Float32bits(v))
}

// apply scales 16-bit samples by the current factor, clipping at the
// sample range. Other depths and unity gain pass through unchanged.
func (g *gain) apply(f Format, frame []byte) []byte {
	k := g.load()
	if k == 1 || f.Depth != 16 {
		return frame
	}
	out := make([]byte, len(frame))
	for i := 0; i+1 < len(frame); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) * float64(k)
		s = math.Max(math.MinInt16, math.Min(math.MaxInt16, s))
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(s)))
	}
	return out
}
