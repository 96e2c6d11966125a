package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return tp, exporter, func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	}
}

func attributesToMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func waitForLogEntry(t *testing.T, hook *test.Hook, timeout time.Duration) *log.Entry {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if entry := hook.LastEntry(); entry != nil {
			return entry
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no log entry recorded within %s", timeout)
	return nil
}

func TestMoveRequestMetricsLogProducesObservabilityEvent(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newMoveRequestMetrics(context.Background(), logger, "/api/tasks/move")
	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.ObserveAuth(10 * time.Millisecond)
	metrics.ObserveMove(15 * time.Millisecond)

	metrics.Log(http.StatusOK, nil)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	entry := waitForLogEntry(t, hook, time.Second)
	if entry.Message != "observability.event" {
		t.Fatalf("unexpected message: %s", entry.Message)
	}
	if got := entry.Data["event.name"]; got != moveEventName {
		t.Fatalf("unexpected event name: %v", got)
	}
	if got := entry.Data["event.domain"]; got != moveEventDomain {
		t.Fatalf("unexpected event domain: %v", got)
	}
	attrs, ok := entry.Data["attributes"].(log.Fields)
	if !ok {
		t.Fatalf("attributes not logged as fields: %#v", entry.Data["attributes"])
	}
	if attrs["http.route"] != "/api/tasks/move" {
		t.Fatalf("unexpected route attribute: %#v", attrs["http.route"])
	}
	if attrs["auth_ms"] != 10.0 {
		t.Fatalf("unexpected auth duration: %#v", attrs["auth_ms"])
	}
	if attrs["move_ms"] != 15.0 {
		t.Fatalf("unexpected move duration: %#v", attrs["move_ms"])
	}
	if total, ok := attrs["total_ms"].(float64); !ok || total <= 0 {
		t.Fatalf("expected total duration attribute, got %#v", attrs["total_ms"])
	}
	if entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected severity text: %v", entry.Data["severity_text"])
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "/api/tasks/move" {
		t.Fatalf("unexpected span name: %s", span.Name)
	}
	spanAttrs := attributesToMap(span.Attributes)
	if spanAttrs["http.route"] != "/api/tasks/move" {
		t.Fatalf("span route attribute mismatch: %#v", spanAttrs["http.route"])
	}
	if code, ok := spanAttrs["http.status_code"].(int64); !ok || code != int64(http.StatusOK) {
		t.Fatalf("unexpected http.status_code on span: %#v", spanAttrs["http.status_code"])
	}
	if span.Status.Code == codes.Error {
		t.Fatalf("successful request must not mark the span failed")
	}
}

func TestMoveRequestMetricsLogWithErrorSetsSpanStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetFormatter(&log.JSONFormatter{})

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newMoveRequestMetrics(context.Background(), logger, "/api/tasks/move")
	metrics.SetErrorStage("persist")
	boom := errors.New("storage failure")

	metrics.Log(http.StatusInternalServerError, boom)

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status.Code != codes.Error {
		t.Fatalf("expected span status error, got %v", span.Status.Code)
	}
	spanAttrs := attributesToMap(span.Attributes)
	if spanAttrs["error_stage"] != "persist" {
		t.Fatalf("expected error stage attribute, got %#v", spanAttrs["error_stage"])
	}

	entry := waitForLogEntry(t, hook, time.Second)
	if entry.Data["error"] != boom.Error() {
		t.Fatalf("expected error field on log entry, got %#v", entry.Data["error"])
	}
}

func TestMoveRequestMetricsSpanNestsUnderParent(t *testing.T) {
	logger, _ := test.NewNullLogger()

	tp, exporter, restore := setupTestTracer(t)
	defer restore()

	ctx, parent := otel.Tracer("test").Start(context.Background(), "parent")
	metrics, spanCtx := newMoveRequestMetrics(ctx, logger, "/api/columns/reorder")
	if !trace.SpanContextFromContext(spanCtx).IsValid() {
		t.Fatalf("expected a span context for downstream calls")
	}
	metrics.Log(http.StatusOK, nil)
	parent.End()

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("force flush spans: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	var child tracetest.SpanStub
	for _, s := range spans {
		if s.Name == "/api/columns/reorder" {
			child = s
		}
	}
	if child.Name == "" {
		t.Fatalf("request span missing: %#v", spans)
	}
	if !child.Parent.IsValid() {
		t.Fatalf("request span must nest under the caller's span")
	}
}
