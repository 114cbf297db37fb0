// Package wav reads and writes RIFF/WAVE containers holding linear PCM.
//
// Decoding is lenient by default: a buffer that has a complete header and
// at least one whole frame decodes even when the declared data size is a
// streaming placeholder or larger than what has arrived so far. This makes
// it possible to decode a growing prefix of a WAV file as it streams in.
package wav
