// Package observe provides application-wide observability primitives for
// lingostream: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the standard /metrics endpoint. A package-level default [Metrics] instance
// ([Default]) is provided for convenience; tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/lingostream/lingostream"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ASRDuration tracks sliding-window transcription latency.
	ASRDuration metric.Float64Histogram

	// MTDuration tracks translation latency.
	MTDuration metric.Float64Histogram

	// TTSDuration tracks speech-synthesis latency.
	TTSDuration metric.Float64Histogram

	// E2EDuration tracks commit-to-audio-end latency per segment.
	E2EDuration metric.Float64Histogram

	// --- Counters ---

	// Commits counts committed segments. Use with attribute:
	//   attribute.String("kind", "stability"|"timeout"|"forced")
	Commits metric.Int64Counter

	// Hypotheses counts accepted ASR hypotheses.
	Hypotheses metric.Int64Counter

	// FilteredHypotheses counts hypotheses rejected by the filter gates.
	FilteredHypotheses metric.Int64Counter

	// ProviderErrors counts stage-local backend failures. Use with attribute:
	//   attribute.String("stage", "asr"|"mt"|"tts")
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming sessions.
	ActiveSessions metric.Int64UpDownCounter

	// PendingTTS tracks outstanding TTS jobs across all sessions.
	PendingTTS metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ASRDuration, err = m.Float64Histogram("lingostream.asr.duration",
		metric.WithDescription("Latency of sliding-window transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MTDuration, err = m.Float64Histogram("lingostream.mt.duration",
		metric.WithDescription("Latency of segment translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("lingostream.tts.duration",
		metric.WithDescription("Latency of segment speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.E2EDuration, err = m.Float64Histogram("lingostream.e2e.duration",
		metric.WithDescription("Commit-to-audio-end latency per segment."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Commits, err = m.Int64Counter("lingostream.commits",
		metric.WithDescription("Total committed segments by commit kind."),
	); err != nil {
		return nil, err
	}
	if met.Hypotheses, err = m.Int64Counter("lingostream.hypotheses",
		metric.WithDescription("Total accepted ASR hypotheses."),
	); err != nil {
		return nil, err
	}
	if met.FilteredHypotheses, err = m.Int64Counter("lingostream.hypotheses.filtered",
		metric.WithDescription("Total hypotheses rejected by the filter gates."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lingostream.provider.errors",
		metric.WithDescription("Total stage-local backend failures by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("lingostream.active_sessions",
		metric.WithDescription("Number of live streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.PendingTTS, err = m.Int64UpDownCounter("lingostream.pending_tts",
		metric.WithDescription("Outstanding TTS jobs across all sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide [Metrics] instance backed by the global
// OTel meter provider. The first call creates the instruments; creation
// errors fall back to no-op instruments that silently drop recordings.
func Default() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			m, _ = NewMetrics(noop.NewMeterProvider())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
