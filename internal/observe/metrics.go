// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics and HTTP middleware that records and logs requests.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/nvail/echodrill"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// LineDuration tracks how long one practice line takes from being
	// dispatched to being scored or advanced past.
	LineDuration metric.Float64Histogram

	// --- Counters ---

	// Reviews counts flashcard ratings. Use with attributes:
	//   attribute.String("rating", ...), attribute.String("item_type", ...)
	Reviews metric.Int64Counter

	// Imports counts import operations by format and status.
	Imports metric.Int64Counter

	// RecognitionResults counts recognition attempts by outcome
	// ("passed", "failed", "timeout", "error").
	RecognitionResults metric.Int64Counter

	// --- Gauges ---

	// ActivePracticeSessions tracks live practice sessions.
	ActivePracticeSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// synthesis calls and spoken practice lines.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SynthesisDuration, err = m.Float64Histogram("echodrill.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LineDuration, err = m.Float64Histogram("echodrill.practice.line.duration",
		metric.WithDescription("Time spent on one practice line from dispatch to advance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Reviews, err = m.Int64Counter("echodrill.reviews",
		metric.WithDescription("Total flashcard ratings by rating and item type."),
	); err != nil {
		return nil, err
	}
	if met.Imports, err = m.Int64Counter("echodrill.imports",
		metric.WithDescription("Total import operations by format and status."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionResults, err = m.Int64Counter("echodrill.recognition.results",
		metric.WithDescription("Total recognition attempts by outcome."),
	); err != nil {
		return nil, err
	}

	if met.ActivePracticeSessions, err = m.Int64UpDownCounter("echodrill.active_practice_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("echodrill.http.request.duration",
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

// RecordReview records one flashcard rating.
func (m *Metrics) RecordReview(ctx context.Context, rating, itemType string) {
	m.Reviews.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("rating", rating),
			attribute.String("item_type", itemType),
		),
	)
}

// RecordImport records one import operation.
func (m *Metrics) RecordImport(ctx context.Context, format, status string) {
	m.Imports.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("format", format),
			attribute.String("status", status),
		),
	)
}

// RecordRecognition records the outcome of one recognition attempt.
func (m *Metrics) RecordRecognition(ctx context.Context, outcome string) {
	m.RecognitionResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
