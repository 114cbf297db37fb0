package wav

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
)

// MIMEType is the content type used when storing encoded clips.
const MIMEType = "audio/wav"

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE

	riffHeaderSize  = 12
	chunkHeaderSize = 8
	minFmtSize      = 16
)

var (
	// ErrIncomplete means the buffer is a plausible WAV prefix but does not
	// yet hold a full header and at least one frame of audio.
	ErrIncomplete = errors.New("wav: incomplete data")

	// ErrInvalid means the buffer is not a RIFF/WAVE container.
	ErrInvalid = errors.New("wav: invalid data")

	// ErrUnsupported means the container holds something other than
	// integer PCM.
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

// Header describes the PCM stream inside a WAV container.
type Header struct {
	Format pcm.Format
	// DataOffset is the position of the first audio byte.
	DataOffset int
	// DataSize is the data chunk size as declared in the file. Streaming
	// writers often leave it as 0 or 0xFFFFFFFF.
	DataSize uint32
}

// ParseHeader walks the RIFF chunks up to the start of the data chunk.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < riffHeaderSize {
		if bytes.HasPrefix([]byte("RIFF"), data[:min(len(data), 4)]) {
			return nil, ErrIncomplete
		}
		return nil, ErrInvalid
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrInvalid)
	}

	var (
		h      Header
		gotFmt bool
	)
	pos := riffHeaderSize
	for {
		if len(data) < pos+chunkHeaderSize {
			return nil, ErrIncomplete
		}
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + chunkHeaderSize

		switch id {
		case "fmt ":
			if size < minFmtSize {
				return nil, fmt.Errorf("%w: fmt chunk too short (%d)", ErrInvalid, size)
			}
			if len(data) < body+minFmtSize {
				return nil, ErrIncomplete
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			if audioFormat != formatPCM && audioFormat != formatExtensible {
				return nil, fmt.Errorf("%w: format tag %d", ErrUnsupported, audioFormat)
			}
			h.Format = pcm.Format{
				Channels:   int(binary.LittleEndian.Uint16(data[body+2:])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4:])),
				Depth:      int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			if !h.Format.Valid() {
				return nil, fmt.Errorf("%w: %d Hz, %d channels, %d bits",
					ErrUnsupported, h.Format.SampleRate, h.Format.Channels, h.Format.Depth)
			}
			gotFmt = true
		case "data":
			if !gotFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalid)
			}
			h.DataOffset = body
			h.DataSize = size
			return &h, nil
		}

		// Chunks are word aligned.
		next := body + int(size) + int(size&1)
		if next <= pos {
			return nil, fmt.Errorf("%w: chunk %q overflows", ErrInvalid, id)
		}
		pos = next
	}
}

// Options controls decoding.
type Options struct {
	// Strict rejects a buffer whose data chunk is shorter than declared.
	Strict bool
}

// Decode decodes the audio in data. The returned clip aliases data.
func Decode(data []byte) (*pcm.Clip, error) {
	return Options{}.Decode(data)
}

// Decode decodes the audio in data using the receiver's options.
func (o Options) Decode(data []byte) (*pcm.Clip, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	avail := len(data) - h.DataOffset
	n := avail
	if declared := int64(h.DataSize); h.DataSize != 0 && h.DataSize != 0xFFFFFFFF {
		if declared <= int64(avail) {
			n = int(declared)
		} else if o.Strict {
			return nil, fmt.Errorf("%w: have %d of %d data bytes", ErrIncomplete, avail, declared)
		}
	}
	align := h.Format.BlockAlign()
	n -= n % align
	if n <= 0 {
		return nil, ErrIncomplete
	}
	return &pcm.Clip{
		Format: h.Format,
		Data:   data[h.DataOffset : h.DataOffset+n],
	}, nil
}

// Decoder adapts Options to a context-aware decode call.
type Decoder struct {
	Options
}

// Decode decodes data, honoring cancellation of ctx before starting.
func (d Decoder) Decode(ctx context.Context, data []byte) (*pcm.Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Options.Decode(data)
}

// Encode wraps PCM data in a canonical 44-byte header WAV container.
func Encode(f pcm.Format, data []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, struct {
		Size          uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}{
		Size:          minFmtSize,
		AudioFormat:   formatPCM,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.BytesRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.Depth),
	})
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
