package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span is the subset of trace.Span used by business code.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	AddEvent(name string, options ...trace.EventOption)
	NoticeError(err error)
	End(options ...trace.SpanEndOption)
}

type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

type openTracer struct {
	tracer trace.Tracer
}

func NewTracer(name string) Tracer {
	return &openTracer{
		otel.Tracer(name),
	}
}

func (t *openTracer) StartSpanFromContext(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, &traceSpan{span}
}

type traceSpan struct {
	span trace.Span
}

func (t *traceSpan) SetAttributes(values ...attribute.KeyValue) {
	t.span.SetAttributes(values...)
}

func (t *traceSpan) AddEvent(name string, options ...trace.EventOption) {
	t.span.AddEvent(name, options...)
}

// NoticeError records err and marks the span failed. A nil err is ignored.
func (t *traceSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	t.span.RecordError(err)
	t.span.SetStatus(codes.Error, err.Error())
}

func (t *traceSpan) End(options ...trace.SpanEndOption) {
	t.span.End(options...)
}
