// Package observe provides application-wide observability primitives for
// solidquery: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all solidquery metrics.
const meterName = "github.com/soliddata/solidquery"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AuthDuration tracks management-key exchange latency.
	AuthDuration metric.Float64Histogram

	// TranslateDuration tracks text-to-SQL translation latency.
	TranslateDuration metric.Float64Histogram

	// ExecuteDuration tracks warehouse query execution latency.
	ExecuteDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// TaskDuration tracks pipeline task latency. Use with attributes:
	//   attribute.String("task", ...), attribute.String("status", ...)
	TaskDuration metric.Float64Histogram

	// --- Counters ---

	// Runs counts completed question runs. Use with attribute:
	//   attribute.String("status", ...)
	Runs metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts LLM provider errors. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// --- Result size ---

	// ResultRows tracks the number of rows returned per warehouse execution.
	ResultRows metric.Int64Histogram

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). The upper
// buckets accommodate multi-second LLM completions and translation retries.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// rowBuckets defines histogram bucket boundaries for warehouse result sizes.
// The top bucket matches the execution row cap.
var rowBuckets = []float64{
	0, 1, 10, 50, 100, 250, 500, 1000,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AuthDuration, err = m.Float64Histogram("solidquery.auth.duration",
		metric.WithDescription("Latency of the management key exchange."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("solidquery.translate.duration",
		metric.WithDescription("Latency of text-to-SQL translation calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExecuteDuration, err = m.Float64Histogram("solidquery.execute.duration",
		metric.WithDescription("Latency of warehouse query execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("solidquery.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TaskDuration, err = m.Float64Histogram("solidquery.task.duration",
		metric.WithDescription("Latency of pipeline tasks by task name and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Runs, err = m.Int64Counter("solidquery.runs",
		metric.WithDescription("Total question runs by status."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("solidquery.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("solidquery.provider.errors",
		metric.WithDescription("Total LLM provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Result size histogram.
	if met.ResultRows, err = m.Int64Histogram("solidquery.result.rows",
		metric.WithDescription("Rows returned per warehouse execution."),
		metric.WithExplicitBucketBoundaries(rowBuckets...),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("solidquery.http.request.duration",
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

// RecordRun is a convenience method that records one completed question run.
func (m *Metrics) RecordRun(ctx context.Context, status string) {
	m.Runs.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records an LLM provider
// error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// TaskCompleted records a finished pipeline task's duration and outcome. It
// satisfies the task telemetry hook used by the agent crew.
func (m *Metrics) TaskCompleted(taskName string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TaskDuration.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(
			attribute.String("task", taskName),
			attribute.String("status", status),
		),
	)
}
