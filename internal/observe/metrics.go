// Package observe carries verbi's telemetry: OpenTelemetry metric
// instruments, provider and HTTP spans, trace-aware slog loggers, and the
// middleware for the health and metrics server.
//
// [InitProvider] bridges the metrics to the Prometheus default registry for
// /metrics. Code that does not receive a [Metrics] explicitly uses
// [DefaultMetrics]; tests build their own with [NewMetrics] over a manual
// reader.
package observe

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/verbi"

// Status attribute values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the instruments recorded by dispatchers, the turn loop, the
// liveness probe and the HTTP middleware.
type Metrics struct {
	// Per-stage latency, attributed by provider.
	TranscriptionDuration metric.Float64Histogram
	ResponseDuration      metric.Float64Histogram
	SpeechDuration        metric.Float64Histogram

	// ProviderRequests is attributed by provider, role and status;
	// ProviderErrors by provider and role.
	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter

	// ResponseFallbacks counts replies replaced by the apology.
	ResponseFallbacks metric.Int64Counter

	// LivenessProbes counts GETs against local service health endpoints, by
	// service and status.
	LivenessProbes metric.Int64Counter

	Turns metric.Int64Counter

	// HTTPRequestDuration is attributed by method, path and status.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are sized for hosted model round trips, in seconds.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

// NewMetrics creates every instrument on a meter from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var errs []error

	latency := func(name, desc string) metric.Float64Histogram {
		h, err := m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	met := &Metrics{
		TranscriptionDuration: latency("verbi.transcription.duration", "Latency of speech-to-text transcription."),
		ResponseDuration:      latency("verbi.response.duration", "Latency of response generation."),
		SpeechDuration:        latency("verbi.speech.duration", "Latency of text-to-speech synthesis."),
		ProviderRequests:      counter("verbi.provider.requests", "Provider calls by provider, role and status."),
		ProviderErrors:        counter("verbi.provider.errors", "Failed provider calls by provider and role."),
		ResponseFallbacks:     counter("verbi.response.fallbacks", "Replies replaced by the apology message."),
		LivenessProbes:        counter("verbi.liveness.probes", "Liveness probes against local services by service and status."),
		Turns:                 counter("verbi.assistant.turns", "Completed conversation turns."),
		HTTPRequestDuration:   latency("verbi.http.request.duration", "Health and metrics server latency by method, path and status."),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide instance, created on first use from
// [otel.GetMeterProvider]. Call [InitProvider] before the first call so the
// instruments are exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, role, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.String(AttrRole, role),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError counts one failed provider call.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, role string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.String(AttrRole, role),
		),
	)
}

// RecordResponseFallback records that provider's reply was replaced by the
// apology.
func (m *Metrics) RecordResponseFallback(ctx context.Context, provider string) {
	m.ResponseFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String(AttrProvider, provider)),
	)
}

// RecordLivenessProbe records one probe of service.
func (m *Metrics) RecordLivenessProbe(ctx context.Context, service string, ok bool) {
	status := StatusOK
	if !ok {
		status = StatusError
	}
	m.LivenessProbes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", service),
			attribute.String("status", status),
		),
	)
}

func (m *Metrics) RecordTurn(ctx context.Context) {
	m.Turns.Add(ctx, 1)
}
