package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Telemetry owns the SDK providers installed by [InitProvider].
type Telemetry struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// Shutdown flushes spans and stops both providers, tracer first.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.TracerProvider.Shutdown(ctx),
		t.MeterProvider.Shutdown(ctx),
	)
}

// ProviderOption configures [InitProvider].
type ProviderOption func(*providerOptions)

type providerOptions struct {
	version    string
	exporter   sdktrace.SpanExporter
	ratio      float64
	registerer prometheus.Registerer
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) ProviderOption {
	return func(o *providerOptions) { o.version = v }
}

// WithSpanExporter batches finished spans to exp. Without it spans are
// recorded (so trace ids reach the logs) but never exported.
func WithSpanExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(o *providerOptions) { o.exporter = exp }
}

// WithSampleRatio samples root spans at ratio in [0,1]; child spans follow
// their parent. The default samples everything.
func WithSampleRatio(ratio float64) ProviderOption {
	return func(o *providerOptions) { o.ratio = ratio }
}

// WithRegisterer registers the Prometheus collector with reg instead of
// [prometheus.DefaultRegisterer], which is what promhttp.Handler serves.
func WithRegisterer(reg prometheus.Registerer) ProviderOption {
	return func(o *providerOptions) { o.registerer = reg }
}

// InitProvider builds the meter provider (bridged to Prometheus) and tracer
// provider for service, installs both as the OTel globals together with a
// W3C trace-context and baggage propagator, and returns them. Call
// [Telemetry.Shutdown] on exit.
func InitProvider(ctx context.Context, service string, opts ...ProviderOption) (*Telemetry, error) {
	o := providerOptions{ratio: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if service == "" {
		service = "synk"
	}
	if o.ratio < 0 || o.ratio > 1 {
		return nil, fmt.Errorf("observe: sample ratio %v outside [0,1]", o.ratio)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
			semconv.ServiceVersion(o.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	var expOpts []promexporter.Option
	if o.registerer != nil {
		expOpts = append(expOpts, promexporter.WithRegisterer(o.registerer))
	}
	promExp, err := promexporter.New(expOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.ratio))),
	}
	if o.exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(o.exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Telemetry{MeterProvider: mp, TracerProvider: tp}, nil
}
