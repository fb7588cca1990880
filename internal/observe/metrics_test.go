package observe

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
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

func TestRecordTierHit(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTierHit(ctx, "memory")
	m.RecordTierHit(ctx, "memory")
	m.RecordTierHit(ctx, "postgres")

	rm := collect(t, reader)
	met := findMetric(rm, "hanzicache.tier.hits")
	if met == nil {
		t.Fatal("hanzicache.tier.hits not found")
	}

	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	var total int64
	var memoryCount int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
		if v, ok := dp.Attributes.Value(attribute.Key("tier")); ok && v.AsString() == "memory" {
			memoryCount = dp.Value
		}
	}
	if total != 3 {
		t.Errorf("total hits = %d, want 3", total)
	}
	if memoryCount != 2 {
		t.Errorf("memory hits = %d, want 2", memoryCount)
	}
}

func TestRecordGeneration_RecordsCounterAndHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGeneration(ctx, "audio", "ok", 120*time.Millisecond)

	rm := collect(t, reader)
	if findMetric(rm, "hanzicache.generation.total") == nil {
		t.Error("generation counter not recorded")
	}
	met := findMetric(rm, "hanzicache.generation.duration")
	if met == nil {
		t.Fatal("generation histogram not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type %T", met.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("histogram datapoints = %+v", hist.DataPoints)
	}
}

func TestRecordSweep_SkipsZero(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSweep(ctx, "audio", 0)
	rm := collect(t, reader)
	if findMetric(rm, "hanzicache.sweep.deleted") != nil {
		t.Error("zero-delta sweep must not record")
	}

	m.RecordSweep(ctx, "audio", 7)
	rm = collect(t, reader)
	met := findMetric(rm, "hanzicache.sweep.deleted")
	if met == nil {
		t.Fatal("sweep counter not recorded")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 7 {
		t.Errorf("sweep datapoints = %+v", sum.DataPoints)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics must return a stable pointer")
	}
}
