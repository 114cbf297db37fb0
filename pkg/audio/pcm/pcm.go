package pcm

import (
	"fmt"
	"io"
	"time"
)

var (
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K = Format{SampleRate: 16000, Channels: 1, Depth: 16}
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K = Format{SampleRate: 24000, Channels: 1, Depth: 16}
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K = Format{SampleRate: 48000, Channels: 1, Depth: 16}
)

// Chunk is a chunk of audio data.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// Format describes interleaved little-endian PCM. The zero value is invalid.
type Format struct {
	SampleRate int
	Channels   int
	Depth      int
}

// Valid reports whether f describes a usable format.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0 && f.Depth > 0 && f.Depth%8 == 0
}

// BlockAlign returns the size in bytes of one frame (one sample for every
// channel).
func (f Format) BlockAlign() int {
	return f.Channels * f.Depth / 8
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels) / int64(f.Depth)
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.Channels) * int64(f.Depth) / 8
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate)
}

// BitsRate returns the bit rate of the audio data.
func (f Format) BitsRate() int {
	return f.SampleRate * f.Channels * f.Depth
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.BitsRate() / 8
}

// SilenceChunk returns a silence chunk of the given duration.
func (f Format) SilenceChunk(duration time.Duration) Chunk {
	return &SilenceChunk{
		Duration: duration,
		len:      f.BytesInDuration(duration),
		fmt:      f,
	}
}

// DataChunk returns a chunk of audio data.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{
		Data: data,
		fmt:  f,
	}
}

// ReadChunk reads exactly the given duration of audio data from the reader.
func (f Format) ReadChunk(r io.Reader, duration time.Duration) (Chunk, error) {
	buf := make([]byte, f.BytesInDuration(duration))
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, err
	}
	return f.DataChunk(buf), nil
}

// String returns the MIME-style description of the format.
func (f Format) String() string {
	return fmt.Sprintf("audio/L%d; rate=%d; channels=%d", f.Depth, f.SampleRate, f.Channels)
}

// Clip is a fully decoded piece of audio.
type Clip struct {
	Format Format
	Data   []byte
}

// Duration returns the playable length of the clip.
func (c *Clip) Duration() time.Duration {
	if c == nil || !c.Format.Valid() {
		return 0
	}
	return c.Format.Duration(int64(len(c.Data)))
}

// Slice returns the bytes between the two offsets. Offsets round up to the
// next whole frame, so Slice(c.Duration(), ...) starts exactly where a
// clip of the same length ends. Offsets past the end are clamped.
func (c *Clip) Slice(from, to time.Duration) []byte {
	if c == nil || !c.Format.Valid() {
		return nil
	}
	align := int64(c.Format.BlockAlign())
	frames := int64(len(c.Data)) / align
	pos := func(d time.Duration) int64 {
		n := c.Format.FramesAt(d)
		return min(n, frames) * align
	}
	start, end := pos(from), pos(to)
	if start >= end {
		return nil
	}
	return c.Data[start:end]
}

// FramesAt returns the index of the first frame that starts at or after d.
// It inverts Duration: FramesAt(Duration(n)) is the frame count of n bytes.
func (f Format) FramesAt(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	rate := int64(f.SampleRate)
	return (rate*int64(d) + int64(time.Second) - 1) / int64(time.Second)
}

// DataChunk is a chunk of audio data.
type DataChunk struct {
	Data []byte
	fmt  Format
}

// Len returns the length of the audio data in bytes.
func (c *DataChunk) Len() int64 {
	return int64(len(c.Data))
}

// Format returns the audio format of this chunk.
func (c *DataChunk) Format() Format {
	return c.fmt
}

// WriteTo writes the audio data to the writer.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// SilenceChunk is a chunk of silence.
type SilenceChunk struct {
	Duration time.Duration
	len      int64
	fmt      Format
}

// Len returns the length of the silence in bytes.
func (c *SilenceChunk) Len() int64 {
	return c.len
}

// Format returns the audio format of this chunk.
func (c *SilenceChunk) Format() Format {
	return c.fmt
}

var emptyBytes [32000]byte

// WriteTo writes silence (zero bytes) to the writer.
func (c *SilenceChunk) WriteTo(w io.Writer) (int64, error) {
	tw := c.len
	wn := int64(0)
	for tw > 0 {
		var silence []byte
		if tw > int64(len(emptyBytes)) {
			silence = emptyBytes[:]
			tw -= int64(len(silence))
		} else {
			silence = emptyBytes[:tw]
			tw = 0
		}
		n, err := w.Write(silence)
		if err != nil {
			return 0, err
		}
		wn += int64(n)
	}
	return wn, nil
}
