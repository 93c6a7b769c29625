package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/prepwell/intervox/internal/protocol"
	"github.com/prepwell/intervox/internal/session"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"intervox.turn.duration", m.TurnDuration},
		{"intervox.transcription.duration", m.TranscriptionDuration},
		{"intervox.speech.duration", m.SpeechDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.4)
		tc.h.Record(ctx, 2.1)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordTurn(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordTurn(context.Background(), 3500*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "intervox.turn.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if got := hist.DataPoints[0].Sum; got != 3.5 {
		t.Errorf("sum = %v, want 3.5", got)
	}
}

func TestSessionObserver_MessageCounts(t *testing.T) {
	m, reader := newTestMetrics(t)
	o := NewSessionObserver(m)

	o.MessageReceived(protocol.TypeQuestion)
	o.MessageReceived(protocol.TypeQuestion)
	o.MessageReceived(protocol.TypeHint)

	rm := collect(t, reader)
	met := findMetric(rm, "intervox.messages.received")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "type" && kv.Value.AsString() == "question" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with type=question not found")
}

func TestSessionObserver_RejectionReasons(t *testing.T) {
	m, reader := newTestMetrics(t)
	o := NewSessionObserver(m)

	o.TranscriptRejected("echo_similarity")
	o.TranscriptRejected("echo_similarity")
	o.TranscriptRejected("too_short")

	rm := collect(t, reader)
	met := findMetric(rm, "intervox.transcripts.rejected")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}

	for _, dp := range sum.DataPoints {
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == "reason" && kv.Value.AsString() == "echo_similarity" {
				if dp.Value != 2 {
					t.Errorf("counter value = %d, want 2", dp.Value)
				}
				return
			}
		}
	}
	t.Error("data point with reason=echo_similarity not found")
}

func TestSessionObserver_DurationHooks(t *testing.T) {
	m, reader := newTestMetrics(t)
	o := NewSessionObserver(m)

	o.TurnCompleted(2 * time.Second)
	o.TranscriptionFinished(500 * time.Millisecond)
	o.UtteranceSpoken(1200 * time.Millisecond)

	rm := collect(t, reader)
	cases := []struct {
		name string
		want float64
	}{
		{"intervox.turn.duration", 2.0},
		{"intervox.transcription.duration", 0.5},
		{"intervox.speech.duration", 1.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if got := hist.DataPoints[0].Sum; got != tc.want {
				t.Errorf("sum = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSessionObserver_Reconnects(t *testing.T) {
	m, reader := newTestMetrics(t)
	o := NewSessionObserver(m)

	o.Reconnecting()
	o.Reconnecting()

	rm := collect(t, reader)
	met := findMetric(rm, "intervox.reconnects")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if got := sum.DataPoints[0].Value; got != 2 {
		t.Errorf("reconnects = %d, want 2", got)
	}
}

func TestSessionObserver_ActiveSessionsLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	o := NewSessionObserver(m)

	o.PhaseChanged(session.PhaseConnecting, session.PhaseIdle)
	o.PhaseChanged(session.PhaseIdle, session.PhaseSpeaking) // no-op edge
	o.PhaseChanged(session.PhaseEnding, session.PhaseCompleted)

	rm := collect(t, reader)
	met := findMetric(rm, "intervox.active_sessions")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := sum.DataPoints[0].Value; got != 0 {
		t.Errorf("active sessions = %d, want 0 after full lifecycle", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
