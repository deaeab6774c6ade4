package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance with a manual reader so tests
// can collect recorded data synchronously.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data points from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	return rm
}

// findMetric returns the metric with the given name, or fails the test.
func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return metricdata.Metrics{}
}

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	t.Parallel()

	m, _ := newTestMetrics(t)
	if m.ASRDuration == nil || m.MTDuration == nil || m.TTSDuration == nil || m.E2EDuration == nil {
		t.Fatal("latency histograms must be non-nil")
	}
	if m.Commits == nil || m.Hypotheses == nil || m.FilteredHypotheses == nil || m.ProviderErrors == nil {
		t.Fatal("counters must be non-nil")
	}
	if m.ActiveSessions == nil || m.PendingTTS == nil {
		t.Fatal("gauges must be non-nil")
	}
}

func TestCommitCounterRecordsAttributes(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Commits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "stability")))
	m.Commits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "stability")))
	m.Commits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "timeout")))

	rm := collect(t, reader)
	data := findMetric(t, rm, "lingostream.commits")
	sum, ok := data.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("want Sum[int64], got %T", data.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 3 {
		t.Fatalf("want 3 commits recorded, got %d", total)
	}
	if len(sum.DataPoints) != 2 {
		t.Fatalf("want 2 attribute sets (stability, timeout), got %d", len(sum.DataPoints))
	}
}

func TestHistogramRecords(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	m.ASRDuration.Record(context.Background(), 0.42)

	rm := collect(t, reader)
	data := findMetric(t, rm, "lingostream.asr.duration")
	hist, ok := data.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("want Histogram[float64], got %T", data.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("want one recorded sample, got %+v", hist.DataPoints)
	}
}

func TestActiveSessionsUpDown(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	data := findMetric(t, rm, "lingostream.active_sessions")
	sum, ok := data.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("want Sum[int64], got %T", data.Data)
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Fatalf("want net value 1, got %+v", sum.DataPoints)
	}
}
