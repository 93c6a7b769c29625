// Package observe provides observability primitives for the interview
// client: OpenTelemetry metrics with a Prometheus exporter bridge so the
// local /metrics endpoint can be scraped.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/prepwell/intervox/internal/protocol"
	"github.com/prepwell/intervox/internal/session"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/prepwell/intervox"

// Metrics holds all OpenTelemetry metric instruments for the client.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TurnDuration tracks the full question→answer turn latency.
	TurnDuration metric.Float64Histogram

	// TranscriptionDuration tracks the record-and-transcribe round trip.
	TranscriptionDuration metric.Float64Histogram

	// SpeechDuration tracks synthesis latency per utterance.
	SpeechDuration metric.Float64Histogram

	// MessagesReceived counts inbound backend messages. Use with attribute:
	//   attribute.String("type", ...)
	MessagesReceived metric.Int64Counter

	// TranscriptsRejected counts filtered transcripts. Use with attribute:
	//   attribute.String("reason", ...)
	TranscriptsRejected metric.Int64Counter

	// Reconnects counts reconnection attempts.
	Reconnects metric.Int64Counter

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech round trips: sub-second synthesis up to multi-second turns.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("intervox.turn.duration",
		metric.WithDescription("Latency of one full question-answer turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("intervox.transcription.duration",
		metric.WithDescription("Latency of the record-and-transcribe round trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Histogram("intervox.speech.duration",
		metric.WithDescription("Latency of speech synthesis per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.MessagesReceived, err = m.Int64Counter("intervox.messages.received",
		metric.WithDescription("Total inbound backend messages by type."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptsRejected, err = m.Int64Counter("intervox.transcripts.rejected",
		metric.WithDescription("Total transcripts discarded by the filter pipeline, by reason."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("intervox.reconnects",
		metric.WithDescription("Total WebSocket reconnection attempts."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("intervox.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records one completed question-answer turn.
func (m *Metrics) RecordTurn(ctx context.Context, d time.Duration) {
	m.TurnDuration.Record(ctx, d.Seconds())
}

// SessionObserver adapts Metrics to the session runtime's observer hooks.
// It keeps the session package free of any telemetry dependency.
type SessionObserver struct {
	metrics *Metrics
}

// Compile-time assertion that SessionObserver implements session.Observer.
var _ session.Observer = (*SessionObserver)(nil)

// NewSessionObserver wraps metrics for use as a [session.Observer].
func NewSessionObserver(m *Metrics) *SessionObserver {
	return &SessionObserver{metrics: m}
}

// MessageReceived counts an inbound message by type.
func (o *SessionObserver) MessageReceived(msgType protocol.MessageType) {
	o.metrics.MessagesReceived.Add(context.Background(), 1,
		metric.WithAttributes(Attr("type", string(msgType))),
	)
}

// TranscriptRejected counts a filtered transcript by reason.
func (o *SessionObserver) TranscriptRejected(reason string) {
	o.metrics.TranscriptsRejected.Add(context.Background(), 1,
		metric.WithAttributes(Attr("reason", reason)),
	)
}

// TurnCompleted records one full question-answer turn latency.
func (o *SessionObserver) TurnCompleted(d time.Duration) {
	o.metrics.RecordTurn(context.Background(), d)
}

// TranscriptionFinished records one record-and-transcribe round trip.
func (o *SessionObserver) TranscriptionFinished(d time.Duration) {
	o.metrics.TranscriptionDuration.Record(context.Background(), d.Seconds())
}

// UtteranceSpoken records how long one utterance held the floor.
func (o *SessionObserver) UtteranceSpoken(d time.Duration) {
	o.metrics.SpeechDuration.Record(context.Background(), d.Seconds())
}

// Reconnecting counts one reconnection attempt.
func (o *SessionObserver) Reconnecting() {
	o.metrics.Reconnects.Add(context.Background(), 1)
}

// PhaseChanged tracks session liveness from phase edges.
func (o *SessionObserver) PhaseChanged(from, to session.Phase) {
	ctx := context.Background()
	if from == session.PhaseConnecting && to == session.PhaseIdle {
		o.metrics.ActiveSessions.Add(ctx, 1)
	}
	if to == session.PhaseCompleted {
		o.metrics.ActiveSessions.Add(ctx, -1)
	}
}
