// Package observe provides observability primitives for the companion
// server: OpenTelemetry metrics with a Prometheus exporter bridge so the
// standard /metrics endpoint keeps working.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all companion metrics.
const meterName = "github.com/bella-ai/bella"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// RespondDuration tracks end-to-end reply production latency. Use with
	// attributes: attribute.String("source", ...), attribute.String("backend", ...)
	RespondDuration metric.Float64Histogram

	// STTDuration tracks server-side transcription latency.
	STTDuration metric.Float64Histogram

	// TTSDuration tracks speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// Replies counts produced replies. Use with attribute:
	//   attribute.String("source", ...)
	Replies metric.Int64Counter

	// BackendErrors counts failed backend calls. Use with attribute:
	//   attribute.String("backend", ...)
	BackendErrors metric.Int64Counter

	// TranscriptCorrections counts vocabulary substitutions made on
	// recognized utterances.
	TranscriptCorrections metric.Int64Counter

	// ActiveSessions tracks the number of connected companion sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// conversational round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RespondDuration, err = m.Float64Histogram("bella.respond.duration",
		metric.WithDescription("Latency of reply production by source and backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("bella.stt.duration",
		metric.WithDescription("Latency of server-side speech transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("bella.tts.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Replies, err = m.Int64Counter("bella.replies",
		metric.WithDescription("Total replies produced by source."),
	); err != nil {
		return nil, err
	}
	if met.BackendErrors, err = m.Int64Counter("bella.backend.errors",
		metric.WithDescription("Total failed backend calls by backend."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptCorrections, err = m.Int64Counter("bella.transcript.corrections",
		metric.WithDescription("Total vocabulary corrections applied to recognized utterances."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("bella.active_sessions",
		metric.WithDescription("Number of connected companion sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Panics if instrument creation fails, which
// cannot happen with the global provider.
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

// RecordReply records one produced reply and its latency.
func (m *Metrics) RecordReply(ctx context.Context, source, backend string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("backend", backend),
	)
	m.RespondDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.Replies.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordBackendError records one failed backend call.
func (m *Metrics) RecordBackendError(ctx context.Context, backend string) {
	m.BackendErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}
