package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds batch execution metrics covering the golden signals:
// - Latency: how long each engine run takes
// - Traffic: job throughput per batch
// - Errors: rate of failed jobs
// - Saturation: concurrent jobs and pending queue depth
type Metrics struct {
	meter metric.Meter

	JobDuration metric.Float64Histogram
	JobsTotal   metric.Int64Counter
	JobErrors   metric.Int64Counter
	JobsSkipped metric.Int64Counter
	JobsActive  metric.Int64UpDownCounter
	QueueDepth  metric.Int64Gauge
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("qcbatch")
	m := &Metrics{meter: meter}

	// Engine runs range from seconds (small molecules) to hours (geometry
	// optimization of large cells), hence the wide bucket spread.
	m.JobDuration, err = meter.Float64Histogram(
		"job_duration_seconds",
		metric.WithDescription("Engine run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 300, 900, 1800, 3600, 7200, 14400),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsTotal, err = meter.Int64Counter(
		"jobs_total",
		metric.WithDescription("Total number of jobs started"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobErrors, err = meter.Int64Counter(
		"job_errors_total",
		metric.WithDescription("Total number of failed jobs"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsSkipped, err = meter.Int64Counter(
		"jobs_skipped_total",
		metric.WithDescription("Total number of jobs skipped as already complete"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsActive, err = meter.Int64UpDownCounter(
		"jobs_active",
		metric.WithDescription("Number of currently running jobs (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.QueueDepth, err = meter.Int64Gauge(
		"batch_queue_depth",
		metric.WithDescription("Current number of jobs waiting for a worker (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordJobStarted records a job being picked up by a worker.
func (m *Metrics) RecordJobStarted(ctx context.Context, engine string) {
	attrs := metric.WithAttributes(engineAttr(engine))
	m.JobsTotal.Add(ctx, 1, attrs)
	m.JobsActive.Add(ctx, 1, attrs)
}

// RecordJobCompleted records a job finishing (success, failure, or skip).
func (m *Metrics) RecordJobCompleted(ctx context.Context, engine string, success, skipped bool, durationSeconds float64) {
	engineOnly := metric.WithAttributes(engineAttr(engine))
	m.JobsActive.Add(ctx, -1, engineOnly)

	if skipped {
		m.JobsSkipped.Add(ctx, 1, engineOnly)
		return
	}

	attrs := metric.WithAttributes(engineAttr(engine), successAttr(success))
	m.JobDuration.Record(ctx, durationSeconds, attrs)
	if !success {
		m.JobErrors.Add(ctx, 1, attrs)
	}
}

// RecordQueueDepth records the current number of queued jobs.
func (m *Metrics) RecordQueueDepth(ctx context.Context, depth int64) {
	m.QueueDepth.Record(ctx, depth)
}
