package walkie

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the stream controller. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ChunksReceived prometheus.Counter
	DecodeAttempts *prometheus.CounterVec
	DecodeDuration prometheus.Histogram
	Uploads        *prometheus.CounterVec
	PlaybackUnits  *prometheus.CounterVec
	Recordings     *prometheus.CounterVec
	ProtocolErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksReceived: f.NewCounter(prometheus.CounterOpts{
			Name: "walkie_chunks_received_total",
			Help: "Total number of audio chunks appended to inbound messages",
		}),
		DecodeAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walkie_decode_attempts_total",
			Help: "Speculative decode attempts by result",
		}, []string{"result"}),
		DecodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "walkie_decode_duration_seconds",
			Help:    "Time spent decoding a message buffer",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walkie_uploads_total",
			Help: "Durable uploads by direction and result",
		}, []string{"direction", "result"}),
		PlaybackUnits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walkie_playback_units_total",
			Help: "Playback units started by source kind",
		}, []string{"source"}),
		Recordings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walkie_recordings_total",
			Help: "Finished recordings by result",
		}, []string{"result"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "walkie_protocol_violations_total",
			Help: "Inbound messages rejected as protocol violations",
		}),
	}
}

func (m *Metrics) chunk() {
	if m != nil {
		m.ChunksReceived.Inc()
	}
}

func (m *Metrics) decode(result string, d time.Duration) {
	if m != nil {
		m.DecodeAttempts.WithLabelValues(result).Inc()
		if d > 0 {
			m.DecodeDuration.Observe(d.Seconds())
		}
	}
}

func (m *Metrics) upload(dir Direction, ok bool) {
	if m != nil {
		m.Uploads.WithLabelValues(dir.String(), result(ok)).Inc()
	}
}

func (m *Metrics) playback(source string) {
	if m != nil {
		m.PlaybackUnits.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) recording(res string) {
	if m != nil {
		m.Recordings.WithLabelValues(res).Inc()
	}
}

func (m *Metrics) protocolError() {
	if m != nil {
		m.ProtocolErrors.Inc()
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
