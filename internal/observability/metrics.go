package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the client-side metrics for one slopectl process:
// - API calls: latency, count and errors per endpoint
// - Jobs: poll checks, wait duration and terminal outcome per job kind
// - Transfers: bytes moved to and from storage URLs
//
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	meter metric.Meter

	APIRequestDuration metric.Float64Histogram
	APIRequestsTotal   metric.Int64Counter
	APIErrorsTotal     metric.Int64Counter

	PollChecksTotal metric.Int64Counter
	JobWaitDuration metric.Float64Histogram
	JobsTotal       metric.Int64Counter

	TransferBytes metric.Int64Counter
}

// NewMetrics creates all metrics on a private Prometheus registry and returns
// the handler that exposes it.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("slopectl")
	m := &Metrics{meter: meter}

	m.APIRequestDuration, err = meter.Float64Histogram(
		"slope_api_request_duration_seconds",
		metric.WithDescription("Slope API request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, nil, err
	}

	m.APIRequestsTotal, err = meter.Int64Counter(
		"slope_api_requests_total",
		metric.WithDescription("Total number of Slope API requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.APIErrorsTotal, err = meter.Int64Counter(
		"slope_api_errors_total",
		metric.WithDescription("Total number of failed Slope API requests (non-2xx or no response)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.PollChecksTotal, err = meter.Int64Counter(
		"slope_poll_checks_total",
		metric.WithDescription("Total number of job status checks"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobWaitDuration, err = meter.Float64Histogram(
		"slope_job_wait_duration_seconds",
		metric.WithDescription("Time spent waiting for a job to reach a terminal state"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 15, 30, 60, 120, 300, 600, 900, 1800, 3600),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsTotal, err = meter.Int64Counter(
		"slope_jobs_total",
		metric.WithDescription("Total number of jobs waited on, by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.TransferBytes, err = meter.Int64Counter(
		"slope_transfer_bytes_total",
		metric.WithDescription("Bytes transferred to or from storage URLs"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordAPIRequest records one API round trip. statusCode is 0 when no response arrived.
func (m *Metrics) RecordAPIRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		methodAttr(method),
		endpointAttr(path),
		statusAttr(statusCode),
	)

	m.APIRequestDuration.Record(ctx, durationSeconds, attrs)
	m.APIRequestsTotal.Add(ctx, 1, attrs)

	if statusCode == 0 || statusCode >= 400 {
		m.APIErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordPollCheck records a single status check for a job kind.
func (m *Metrics) RecordPollCheck(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.PollChecksTotal.Add(ctx, 1, metric.WithAttributes(kindAttr(kind)))
}

// RecordJobFinished records how a wait ended and how long it took.
func (m *Metrics) RecordJobFinished(ctx context.Context, kind, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(kindAttr(kind), outcomeAttr(outcome))
	m.JobWaitDuration.Record(ctx, durationSeconds, attrs)
	m.JobsTotal.Add(ctx, 1, attrs)
}

// RecordTransfer records bytes moved in a direction ("upload" or "download").
func (m *Metrics) RecordTransfer(ctx context.Context, direction string, bytes int64) {
	if m == nil {
		return
	}
	m.TransferBytes.Add(ctx, bytes, metric.WithAttributes(directionAttr(direction)))
}
