package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// AttemptMeta describes one strategy attempt for telemetry purposes.
type AttemptMeta struct {
	Strategy string // Strategy name (required)
	Guard    string // Label of the guard running the attempt (optional)
	Stage    int    // 1 for the first factor, 2 for the second
}

// SpanName returns the deterministic span name for this attempt.
// Format: auth.attempt.<strategy>
func (m AttemptMeta) SpanName() string {
	return "auth.attempt." + m.Strategy
}

func (m AttemptMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("auth.strategy", m.Strategy),
	}
	if m.Guard != "" {
		attrs = append(attrs, attribute.String("auth.guard", m.Guard))
	}
	if m.Stage > 0 {
		attrs = append(attrs, attribute.String("auth.stage", strconv.Itoa(m.Stage)))
	}
	return attrs
}

// Tracer manages spans for strategy attempts.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an attempt.
	StartSpan(ctx context.Context, meta AttemptMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts an internal span with the attempt attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta AttemptMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("auth.failed", false))
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span. A failed attempt is recorded as an error status.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("auth.failed", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta AttemptMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
