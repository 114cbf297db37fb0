// Package pcm provides types and utilities for working with PCM (Pulse Code Modulation) audio data.
//
// A Format describes sample rate, channel count and bit depth. Decoded audio
// is carried around as a Clip, and a Player writes a clip (or the tail of it
// starting at some offset) to a Writer in fixed-size frames.
//
// Key types:
//   - Format: audio format (sample rate, channels, bit depth)
//   - Chunk: interface for audio data chunks
//   - Clip: a decoded piece of audio with its format
//   - Player: paced, cancellable frame writer
//   - Writer: interface for writing audio chunks
//
// Example usage:
//
//	format := pcm.L16Mono16K
//	clip := &pcm.Clip{Format: format, Data: format.Tone(440, time.Second)}
//
//	p := pcm.NewPlayer(out, pcm.WithRealtime(true))
//	err := p.Play(ctx, clip, 250*time.Millisecond)
package pcm
