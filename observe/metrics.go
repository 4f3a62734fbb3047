package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricAttempts = "auth.attempt.total"
	MetricFailures = "auth.attempt.failures"
	MetricDuration = "auth.attempt.duration_ms"
)

// Metrics records strategy attempt metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt records an attempt with its duration and outcome.
	RecordAttempt(ctx context.Context, meta AttemptMeta, duration time.Duration, err error)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	attempts metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics creates the attempt instruments on meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	attempts, err := meter.Int64Counter(
		MetricAttempts,
		metric.WithDescription("Total number of strategy attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		MetricFailures,
		metric.WithDescription("Total number of failed strategy attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Strategy attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		attempts: attempts,
		failures: failures,
		duration: duration,
	}, nil
}

// RecordAttempt records metrics for one attempt.
func (m *metricsImpl) RecordAttempt(ctx context.Context, meta AttemptMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("auth.strategy", meta.Strategy))

	m.attempts.Add(ctx, 1, opt)
	if err != nil {
		m.failures.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (noopMetrics) RecordAttempt(context.Context, AttemptMeta, time.Duration, error) {}
