// Package audio groups the audio sub-packages:
//
//   - pcm: raw PCM formats, clips and the paced player
//   - wav: RIFF/WAVE parsing and encoding
package audio
