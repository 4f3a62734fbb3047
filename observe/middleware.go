package observe

import (
	"context"
	"time"
)

// AttemptFunc runs one strategy attempt. A non-nil error means the attempt
// failed.
type AttemptFunc func(ctx context.Context, meta AttemptMeta) error

// Middleware wraps strategy attempts with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe AttemptFunc.
//   - Context: the span is propagated through the context passed to fn.
//   - Errors: errors from the wrapped function are recorded and returned
//     unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps fn with a span, attempt metrics and a debug log line.
func (m *Middleware) Wrap(fn AttemptFunc) AttemptFunc {
	return func(ctx context.Context, meta AttemptMeta) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordAttempt(ctx, meta, duration, err)

		fields := []Field{
			{Key: "strategy", Value: meta.Strategy},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if meta.Guard != "" {
			fields = append(fields, Field{Key: "guard", Value: meta.Guard})
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Debug(ctx, "auth attempt failed", fields...)
		} else {
			m.logger.Debug(ctx, "auth attempt succeeded", fields...)
		}
		return err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(newTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
