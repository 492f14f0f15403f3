// Package observe provides application-wide observability primitives for
// synk: OpenTelemetry metrics, distributed tracing, trace-aware structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so they can be scraped from
// /metrics. A package-level [DefaultMetrics] instance is provided for
// convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all synk metrics.
const meterName = "github.com/synk-web/synk"

// Generation kinds used as the "kind" attribute on generation metrics.
const (
	KindMain         = "main"
	KindTikiTaka     = "tikitaka"
	KindInterjection = "interjection"
	KindSub          = "sub"
	KindThought      = "thought"
	KindSummary      = "summary"
	KindProfile      = "profile"
)

// Metrics holds all OpenTelemetry instruments for the application. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// TurnDuration tracks end-to-end chat turn latency.
	TurnDuration metric.Float64Histogram

	// Turns counts resolved turns. Attribute: outcome.
	Turns metric.Int64Counter

	// GenerationDuration tracks text generation latency. Attributes: kind, provider.
	GenerationDuration metric.Float64Histogram

	// GenerationErrors counts failed generations. Attributes: kind, error_kind.
	GenerationErrors metric.Int64Counter

	// Degraded counts best-effort operations that fell back to a default.
	// Attribute: op.
	Degraded metric.Int64Counter

	// StoreErrors counts persistence failures. Attribute: op.
	StoreErrors metric.Int64Counter

	// ActiveSessions tracks the number of scene sessions held in memory.
	ActiveSessions metric.Int64UpDownCounter

	// EvictedSessions counts sessions dropped by the registry. Attribute: reason.
	EvictedSessions metric.Int64Counter

	// ReactionPartition counts characters per partition. Attribute: type.
	ReactionPartition metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram bucket boundaries (in seconds) sized for
// LLM-bound turns.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("synk.turn.duration",
		metric.WithDescription("Latency of a full chat turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("synk.turns",
		metric.WithDescription("Total chat turns by outcome."),
	); err != nil {
		return nil, err
	}
	if met.GenerationDuration, err = m.Float64Histogram("synk.generation.duration",
		metric.WithDescription("Latency of text generation by kind and provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerationErrors, err = m.Int64Counter("synk.generation.errors",
		metric.WithDescription("Total failed generations by kind and error kind."),
	); err != nil {
		return nil, err
	}
	if met.Degraded, err = m.Int64Counter("synk.degraded",
		metric.WithDescription("Best-effort operations that returned a fallback value."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("synk.store.errors",
		metric.WithDescription("Persistence failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("synk.sessions.active",
		metric.WithDescription("Number of scene sessions held in memory."),
	); err != nil {
		return nil, err
	}
	if met.EvictedSessions, err = m.Int64Counter("synk.sessions.evicted",
		metric.WithDescription("Scene sessions evicted by reason."),
	); err != nil {
		return nil, err
	}
	if met.ReactionPartition, err = m.Int64Counter("synk.reaction.partition",
		metric.WithDescription("Characters placed in each reaction partition."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("synk.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records a completed turn.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string, seconds float64) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
	m.TurnDuration.Record(ctx, seconds, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordGeneration records the latency of one generation call.
func (m *Metrics) RecordGeneration(ctx context.Context, kind, provider string, seconds float64) {
	m.GenerationDuration.Record(ctx, seconds,
		metric.WithAttributes(Attr("kind", kind), Attr("provider", provider)))
}

// RecordGenerationError records one failed generation.
func (m *Metrics) RecordGenerationError(ctx context.Context, kind, errorKind string) {
	m.GenerationErrors.Add(ctx, 1,
		metric.WithAttributes(Attr("kind", kind), Attr("error_kind", errorKind)))
}

// RecordDegraded records one best-effort fallback.
func (m *Metrics) RecordDegraded(ctx context.Context, op string) {
	m.Degraded.Add(ctx, 1, metric.WithAttributes(Attr("op", op)))
}

// RecordStoreError records one persistence failure.
func (m *Metrics) RecordStoreError(ctx context.Context, op string) {
	m.StoreErrors.Add(ctx, 1, metric.WithAttributes(Attr("op", op)))
}

// RecordEviction records one session eviction.
func (m *Metrics) RecordEviction(ctx context.Context, reason string) {
	m.EvictedSessions.Add(ctx, 1, metric.WithAttributes(Attr("reason", reason)))
}

// RecordPartition adds n characters to the given reaction partition.
func (m *Metrics) RecordPartition(ctx context.Context, partition string, n int) {
	if n <= 0 {
		return
	}
	m.ReactionPartition.Add(ctx, int64(n), metric.WithAttributes(Attr("type", partition)))
}
