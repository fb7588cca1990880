// Package observe provides application-wide observability primitives for
// hanzicache: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all hanzicache metrics.
const meterName = "github.com/hanzicard/hanzicache"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// FetchDuration tracks end-to-end cache fetch latency. Use with
	// attributes: attribute.String("kind", ...), attribute.String("source", ...)
	// where source is the tier (or "generator") that served the payload.
	FetchDuration metric.Float64Histogram

	// GenerationDuration tracks external generator latency. Use with
	// attribute: attribute.String("kind", ...)
	GenerationDuration metric.Float64Histogram

	// --- Counters ---

	// TierHits counts cache hits per tier. Use with attribute:
	//   attribute.String("tier", ...)
	TierHits metric.Int64Counter

	// TierErrors counts transient tier failures that were absorbed by the
	// cascade. Use with attributes:
	//   attribute.String("tier", ...), attribute.String("op", ...)
	TierErrors metric.Int64Counter

	// Generations counts generator invocations. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Generations metric.Int64Counter

	// FlightShared counts fetches that attached to an in-flight generation
	// instead of starting their own.
	FlightShared metric.Int64Counter

	// SweepDeleted counts entries removed by the retention sweeper. Use with
	// attribute: attribute.String("kind", ...)
	SweepDeleted metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The low
// end covers memory-tier hits, the high end slow stroke-source scrapes.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.FetchDuration, err = m.Float64Histogram("hanzicache.fetch.duration",
		metric.WithDescription("End-to-end asset fetch latency by kind and serving source."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("hanzicache.generation.duration",
		metric.WithDescription("External generator latency by asset kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TierHits, err = m.Int64Counter("hanzicache.tier.hits",
		metric.WithDescription("Cache hits by tier."),
	); err != nil {
		return nil, err
	}
	if met.TierErrors, err = m.Int64Counter("hanzicache.tier.errors",
		metric.WithDescription("Transient tier failures absorbed by the lookup cascade."),
	); err != nil {
		return nil, err
	}
	if met.Generations, err = m.Int64Counter("hanzicache.generation.total",
		metric.WithDescription("Generator invocations by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.FlightShared, err = m.Int64Counter("hanzicache.flight.shared",
		metric.WithDescription("Fetches that attached to an already in-flight generation."),
	); err != nil {
		return nil, err
	}
	if met.SweepDeleted, err = m.Int64Counter("hanzicache.sweep.deleted",
		metric.WithDescription("Entries removed by the retention sweeper, by kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("hanzicache.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordTierHit records a cache hit on the named tier.
func (m *Metrics) RecordTierHit(ctx context.Context, tierName string) {
	m.TierHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tier", tierName)),
	)
}

// RecordTierError records an absorbed transient tier failure.
func (m *Metrics) RecordTierError(ctx context.Context, tierName, op string) {
	m.TierErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tier", tierName),
			attribute.String("op", op),
		),
	)
}

// RecordGeneration records one generator invocation with its latency.
func (m *Metrics) RecordGeneration(ctx context.Context, kind, status string, elapsed time.Duration) {
	m.Generations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
	m.GenerationDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordFlightShared records a fetch that attached to an in-flight
// generation started by another caller.
func (m *Metrics) RecordFlightShared(ctx context.Context, kind string) {
	m.FlightShared.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordFetch records an end-to-end fetch with the source that served it.
func (m *Metrics) RecordFetch(ctx context.Context, kind, source string, elapsed time.Duration) {
	m.FetchDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("source", source),
		),
	)
}

// RecordSweep records entries deleted by a sweeper pass.
func (m *Metrics) RecordSweep(ctx context.Context, kind string, deleted int64) {
	if deleted == 0 {
		return
	}
	m.SweepDeleted.Add(ctx, deleted,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}
