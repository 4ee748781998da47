package observe

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// ServiceName is reported in the telemetry resource.
const ServiceName = "verbi"

type providerSettings struct {
	version     string
	spans       sdktrace.SpanExporter
	reader      sdkmetric.Reader
	sampleRatio float64
}

// ProviderOption configures [InitProvider].
type ProviderOption func(*providerSettings)

// WithServiceVersion overrides the version read from the binary's build info.
func WithServiceVersion(v string) ProviderOption {
	return func(s *providerSettings) { s.version = v }
}

// WithTraceExporter batches finished spans to exp. Without it spans are
// sampled and carried in context but never exported.
func WithTraceExporter(exp sdktrace.SpanExporter) ProviderOption {
	return func(s *providerSettings) { s.spans = exp }
}

// WithMetricReader replaces the Prometheus exporter with r.
func WithMetricReader(r sdkmetric.Reader) ProviderOption {
	return func(s *providerSettings) { s.reader = r }
}

// WithSampleRatio samples the given fraction of root spans. Values outside
// (0, 1] are ignored.
func WithSampleRatio(ratio float64) ProviderOption {
	return func(s *providerSettings) {
		if ratio > 0 && ratio <= 1 {
			s.sampleRatio = ratio
		}
	}
}

// InitProvider installs global meter and tracer providers plus the W3C trace
// context propagator. Metrics go to the Prometheus default registry unless
// [WithMetricReader] is given, so /metrics serves them via promhttp.
//
// The returned function flushes and shuts down both providers.
func InitProvider(ctx context.Context, opts ...ProviderOption) (func(context.Context) error, error) {
	s := providerSettings{version: buildVersion(), sampleRatio: 1}
	for _, opt := range opts {
		opt(&s)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(s.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	reader := s.reader
	if reader == nil {
		if reader, err = promexporter.New(); err != nil {
			return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
		}
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.sampleRatio))),
	}
	if s.spans != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(s.spans))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// buildVersion returns the main module version, or "dev" for builds outside
// module mode and for "(devel)" builds.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
