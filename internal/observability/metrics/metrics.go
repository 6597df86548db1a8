// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_transcription"

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Session lifecycle metrics
	SessionsStarted prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsFailed  *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Connection metrics
	ConnectsTotal   prometheus.Counter
	ConnectFailures *prometheus.CounterVec
	ConnectLatency  prometheus.Histogram

	// Outbound audio metrics
	AudioFramesSent    prometheus.Counter
	AudioBytesSent     prometheus.Counter
	AudioFramesDropped prometheus.Counter
	CommitsSent        prometheus.Counter

	// Inbound event metrics
	EventsReceived    *prometheus.CounterVec
	MalformedMessages prometheus.Counter
	UnknownMessages   prometheus.Counter

	// Segment metrics
	SegmentsCreated  prometheus.Counter
	SegmentsPromoted prometheus.Counter
	SegmentsUpdated  prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of transcription sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active transcription sessions",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in an error state",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of transcription sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		ConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Total number of recognizer connection attempts",
		}),
		ConnectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Total number of failed recognizer connection attempts",
		}, []string{"reason"}),
		ConnectLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_latency_seconds",
			Help:      "Time to reach an open recognizer connection",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		AudioFramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_sent_total",
			Help:      "Total audio frames sent to the recognizer",
		}),
		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total audio bytes sent to the recognizer",
		}),
		AudioFramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_dropped_total",
			Help:      "Total audio frames dropped because the connection was not open",
		}),
		CommitsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_sent_total",
			Help:      "Total end-of-utterance commit signals sent",
		}),

		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total transcript events received from the recognizer",
		}, []string{"type"}),
		MalformedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Total inbound messages dropped because they could not be parsed",
		}),
		UnknownMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_messages_total",
			Help:      "Total inbound messages dropped because of an unknown type tag",
		}),

		SegmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_created_total",
			Help:      "Total transcript segments created",
		}),
		SegmentsPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_promoted_total",
			Help:      "Total partial segments promoted to committed in place",
		}),
		SegmentsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_updated_total",
			Help:      "Total in-place segment updates (partial text replacement, speaker refinement)",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records a session ending in an error state.
func (m *Metrics) RecordSessionFailed(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
}

// RecordConnect records a connection attempt and its outcome.
func (m *Metrics) RecordConnect(err error, reason string, latencySeconds float64) {
	m.ConnectsTotal.Inc()
	if err != nil {
		m.ConnectFailures.WithLabelValues(reason).Inc()
		return
	}
	m.ConnectLatency.Observe(latencySeconds)
}

// RecordAudioSent records an audio frame sent to the recognizer.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioFramesSent.Inc()
	m.AudioBytesSent.Add(float64(bytes))
}

// RecordEventReceived records an inbound transcript event by type tag.
func (m *Metrics) RecordEventReceived(eventType string) {
	m.EventsReceived.WithLabelValues(eventType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
