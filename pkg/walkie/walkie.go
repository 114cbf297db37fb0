package walkie

import (
	"context"
	"iter"
	"time"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
)

// StartRequest describes the conversation a Session is opened for.
type StartRequest struct {
	UserID        string `json:"user_id"`
	TopicID       string `json:"powerup_id"`
	AISpeaksFirst bool   `json:"ai_speaks_first"`
	VoiceName     string `json:"voice_name,omitempty"`
	EnableBargeIn bool   `json:"enable_barge_in"`
}

// Grant is the result of session negotiation.
type Grant struct {
	SessionID    string         `json:"session_id"`
	Endpoint     string         `json:"ws_endpoint"`
	FirstMessage string         `json:"first_message,omitempty"`
	Context      map[string]any `json:"powerup_context,omitempty"`
}

// Negotiator obtains a session grant, typically from an HTTP API.
type Negotiator interface {
	StartSession(ctx context.Context, req StartRequest) (*Grant, error)
}

// Dialer opens a Channel to a granted endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Channel, error)
}

// Channel is a bidirectional, ordered message transport.
//
// Messages yields inbound messages in arrival order. It ends when the
// channel closes; a non-nil error is yielded if the close was not requested
// through Close.
type Channel interface {
	Messages() iter.Seq2[*Inbound, error]
	Send(ctx context.Context, msg *Outbound) error
	Close() error
}

// Decoder turns an encoded buffer into PCM. It must fail (rather than
// guess) when the buffer is not yet decodable.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*pcm.Clip, error)
}

// Player renders a clip starting at offset. Play blocks until the clip has
// been rendered or ctx is cancelled, and must not render anything after
// ctx is done.
type Player interface {
	Play(ctx context.Context, clip *pcm.Clip, offset time.Duration) error
}

// Capture records microphone audio. Start returns an error wrapping
// ErrPermissionDenied when access to the device is refused.
type Capture interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*Blob, error)
}

// Blob is a recorded audio file.
type Blob struct {
	Data     []byte
	MIMEType string
	// Duration is optional; zero means unknown.
	Duration time.Duration
}

// BlobStore keeps durable copies of audio. Upload overwrites any existing
// object at path and returns its public URL.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}
