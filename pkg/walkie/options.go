package walkie

import (
	"time"

	"github.com/groovydhruv/power-ups/pkg/audio/pcm"
	"github.com/groovydhruv/power-ups/pkg/audio/wav"
	"github.com/groovydhruv/power-ups/pkg/history"
	"github.com/groovydhruv/power-ups/pkg/storage"
)

// DefaultConnectTimeout bounds how long Start waits for the channel to
// open.
const DefaultConnectTimeout = 10 * time.Second

// DefaultChunkDuration is the per-chunk estimate used when neither the
// backend nor the decoder can tell a message's duration.
const DefaultChunkDuration = 500 * time.Millisecond

// sessionConfig holds the session configuration.
type sessionConfig struct {
	decoder              Decoder
	player               Player
	capture              Capture
	blobs                BlobStore
	history              *history.Store
	logger               Logger
	metrics              *Metrics
	autoPlay             bool
	connectTimeout       time.Duration
	maxRecordingDuration time.Duration
	maxProbeBytes        int
}

// Option configures a Session.
type Option func(*sessionConfig)

func defaultConfig() *sessionConfig {
	return &sessionConfig{
		decoder:        wav.Decoder{},
		player:         pcm.NewPlayer(pcm.Discard),
		blobs:          storage.NewBucket(storage.NewMemory(), "memory://walkie"),
		logger:         DefaultLogger(),
		connectTimeout: DefaultConnectTimeout,
		maxProbeBytes:  DefaultMaxProbeBytes,
	}
}

// WithDecoder sets the decoder used for probing and playback. The default
// decodes WAV.
func WithDecoder(d Decoder) Option {
	return func(c *sessionConfig) {
		c.decoder = d
	}
}

// WithPlayer sets the audio output. The default discards audio.
func WithPlayer(p Player) Option {
	return func(c *sessionConfig) {
		c.player = p
	}
}

// WithCapture sets the microphone. Without one StartRecording fails.
func WithCapture(cp Capture) Option {
	return func(c *sessionConfig) {
		c.capture = cp
	}
}

// WithBlobStore sets where durable copies are uploaded. The default keeps
// them in memory.
func WithBlobStore(b BlobStore) Option {
	return func(c *sessionConfig) {
		c.blobs = b
	}
}

// WithHistory records every message in h.
func WithHistory(h *history.Store) Option {
	return func(c *sessionConfig) {
		c.history = h
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(c *sessionConfig) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *sessionConfig) {
		c.metrics = m
	}
}

// WithAutoPlay starts playing an inbound message as soon as it becomes
// playable.
func WithAutoPlay(on bool) Option {
	return func(c *sessionConfig) {
		c.autoPlay = on
	}
}

// WithConnectTimeout sets how long Start waits for the channel.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithMaxRecordingDuration stops a recording automatically after d. Zero
// disables the limit.
func WithMaxRecordingDuration(d time.Duration) Option {
	return func(c *sessionConfig) {
		c.maxRecordingDuration = d
	}
}

// WithMaxProbeBytes sets the size above which buffers are no longer
// decoded speculatively.
func WithMaxProbeBytes(n int) Option {
	return func(c *sessionConfig) {
		if n > 0 {
			c.maxProbeBytes = n
		}
	}
}
