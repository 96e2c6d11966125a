package api

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	moveEventName   = "kanban.move.request"
	moveEventDomain = "board"
)

// moveRequestMetrics captures per-request timings on the mutation endpoints
// and emits them both as an otel span and a structured log entry.
type moveRequestMetrics struct {
	logger *log.Logger
	route  string
	span   trace.Span

	start        time.Time
	authDuration time.Duration
	moveDuration time.Duration
	errorStage   string
}

func newMoveRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*moveRequestMetrics, context.Context) {
	m := &moveRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer("kanban-api/api").Start(ctx, route)
	m.span = span
	return m, spanCtx
}

func (m *moveRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *moveRequestMetrics) ObserveMove(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.moveDuration = duration
}

func (m *moveRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log closes the span and writes one observability event for the request.
func (m *moveRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := log.Fields{
		"http.route":  m.route,
		"http.status": status,
		"total_ms":    durationToMillis(time.Since(m.start)),
	}
	spanAttrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
	}
	if m.authDuration > 0 {
		attrs["auth_ms"] = durationToMillis(m.authDuration)
		spanAttrs = append(spanAttrs, attribute.Float64("auth_ms", durationToMillis(m.authDuration)))
	}
	if m.moveDuration > 0 {
		attrs["move_ms"] = durationToMillis(m.moveDuration)
		spanAttrs = append(spanAttrs, attribute.Float64("move_ms", durationToMillis(m.moveDuration)))
	}
	if m.errorStage != "" {
		attrs["error_stage"] = m.errorStage
		spanAttrs = append(spanAttrs, attribute.String("error_stage", m.errorStage))
	}

	if m.span != nil {
		m.span.SetAttributes(spanAttrs...)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, m.errorStage)
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	severity := "INFO"
	fields := log.Fields{
		"event.name":    moveEventName,
		"event.domain":  moveEventDomain,
		"attributes":    attrs,
		"severity_text": severity,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
