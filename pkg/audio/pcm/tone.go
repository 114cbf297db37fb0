package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// Tone generates a 16-bit sine wave at freq Hz for the given duration.
// Channels are filled with the same sample. It panics if f is not 16-bit.
func (f Format) Tone(freq float64, d time.Duration) []byte {
	if f.Depth != 16 {
		panic("pcm: tone requires 16-bit format")
	}
	samples := int(f.SamplesInDuration(d))
	data := make([]byte, samples*f.BlockAlign())
	for i := range samples {
		t := float64(i) / float64(f.SampleRate)
		v := int16(math.Sin(2*math.Pi*freq*t) * 16000)
		for ch := range f.Channels {
			binary.LittleEndian.PutUint16(data[(i*f.Channels+ch)*2:], uint16(v))
		}
	}
	return data
}
