package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Message outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeUnknown  = "unknown_method"
	OutcomePanic    = "panic"
)

// Instruments records dispatched messages and published diagnostics.
type Instruments struct {
	messages    metric.Int64Counter
	duration    metric.Float64Histogram
	diagnostics metric.Int64Counter
	tracer      trace.Tracer
}

func newInstruments(meter metric.Meter, tracer trace.Tracer) (*Instruments, error) {
	messages, err := meter.Int64Counter(
		"lsp.messages",
		metric.WithDescription("Dispatched JSON-RPC messages"),
	)
	if err != nil {
		return nil, fmt.Errorf("create lsp.messages: %w", err)
	}
	duration, err := meter.Float64Histogram(
		"lsp.message.duration",
		metric.WithDescription("Time spent handling a JSON-RPC message"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create lsp.message.duration: %w", err)
	}
	diagnostics, err := meter.Int64Counter(
		"lsp.diagnostics.published",
		metric.WithDescription("Diagnostics sent with textDocument/publishDiagnostics"),
	)
	if err != nil {
		return nil, fmt.Errorf("create lsp.diagnostics.published: %w", err)
	}
	return &Instruments{
		messages:    messages,
		duration:    duration,
		diagnostics: diagnostics,
		tracer:      tracer,
	}, nil
}

// MessageHandle tracks one message from dispatch to completion.
type MessageHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
	inst  *Instruments
}

// StartMessage opens a span for method and starts the clock. A nil
// Instruments yields a handle whose End does nothing.
func (i *Instruments) StartMessage(ctx context.Context, method string, notification bool) (context.Context, *MessageHandle) {
	if i == nil {
		return ctx, &MessageHandle{ctx: ctx}
	}
	kind := "request"
	if notification {
		kind = "notification"
	}
	attrs := []attribute.KeyValue{
		attribute.String("rpc.method", method),
		attribute.String("rpc.kind", kind),
	}
	ctx, span := i.tracer.Start(ctx, "lsp "+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, &MessageHandle{ctx: ctx, span: span, start: time.Now(), attrs: attrs, inst: i}
}

// End records the outcome of the message.
func (h *MessageHandle) End(outcome string) {
	if h == nil || h.inst == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(h.attrs)+1)
	attrs = append(attrs, h.attrs...)
	attrs = append(attrs, attribute.String("outcome", outcome))
	set := metric.WithAttributes(attrs...)
	h.inst.messages.Add(h.ctx, 1, set)
	h.inst.duration.Record(h.ctx, float64(time.Since(h.start).Microseconds())/1000, set)

	if outcome != OutcomeOK {
		h.span.SetStatus(codes.Error, outcome)
	}
	h.span.SetAttributes(attribute.String("outcome", outcome))
	h.span.End()
}

// DiagnosticsPublished counts diagnostics sent for a document.
func (i *Instruments) DiagnosticsPublished(ctx context.Context, count int) {
	if i == nil {
		return
	}
	i.diagnostics.Add(ctx, int64(count))
}
