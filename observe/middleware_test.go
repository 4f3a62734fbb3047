package observe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type telemetry struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	mw     *Middleware
	logs   *bytes.Buffer
}

func newTelemetry(t *testing.T) *telemetry {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}

	var logs bytes.Buffer
	mw := NewMiddleware(newTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", &logs))
	return &telemetry{spans: spans, reader: reader, mw: mw, logs: &logs}
}

func (tt *telemetry) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := tt.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range s.DataPoints {
					total += dp.Value
				}
				return total
			}
		}
	}
	return 0
}

func TestMiddleware_SuccessPath(t *testing.T) {
	tel := newTelemetry(t)
	meta := AttemptMeta{Strategy: "local", Guard: "local,basic", Stage: 1}

	err := tel.mw.Wrap(func(ctx context.Context, _ AttemptMeta) error {
		return nil
	})(context.Background(), meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := tel.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "auth.attempt.local" {
		t.Errorf("span name = %q, want auth.attempt.local", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status().Code)
	}
	if got := tel.sum(t, MetricAttempts); got != 1 {
		t.Errorf("%s = %d, want 1", MetricAttempts, got)
	}
	if got := tel.sum(t, MetricFailures); got != 0 {
		t.Errorf("%s = %d, want 0", MetricFailures, got)
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	tel := newTelemetry(t)
	wantErr := errors.New("auth: invalid credentials")

	err := tel.mw.Wrap(func(ctx context.Context, _ AttemptMeta) error {
		return wantErr
	})(context.Background(), AttemptMeta{Strategy: "basic"})

	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
	spans := tel.spans.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one error span, got %+v", spans)
	}
	if got := tel.sum(t, MetricFailures); got != 1 {
		t.Errorf("%s = %d, want 1", MetricFailures, got)
	}
	if !bytes.Contains(tel.logs.Bytes(), []byte("auth attempt failed")) {
		t.Errorf("expected failure log, got %q", tel.logs.String())
	}
}

func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	tel := newTelemetry(t)

	_ = tel.mw.Wrap(func(ctx context.Context, _ AttemptMeta) error {
		NewLoggerWithWriter("info", tel.logs).Info(ctx, "inside")
		return nil
	})(context.Background(), AttemptMeta{Strategy: "jwt"})

	if !bytes.Contains(tel.logs.Bytes(), []byte("trace_id")) {
		t.Errorf("expected trace_id in logs written inside the span, got %q", tel.logs.String())
	}
}

func TestNewMiddleware_NilComponents(t *testing.T) {
	mw := NewMiddleware(nil, nil, nil)
	err := mw.Wrap(func(context.Context, AttemptMeta) error { return nil })(context.Background(), AttemptMeta{Strategy: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMiddlewareFromObserver_Nil(t *testing.T) {
	if _, err := MiddlewareFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Fatalf("error = %v, want ErrNilObserver", err)
	}
}
