// Package apm configures the otel trace pipeline.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/depth-compare/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp_grpc"
	OTLPHTTPProvider Provider = "otlp_http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "none"
)

type TraceProvider interface {
	Stop() error
}

// Config selects and configures the span exporter.
type Config struct {
	ServiceName string
	Provider    Provider
	Endpoint    string
	// Headers is a single "key=value" pair sent with OTLP exports.
	Headers string
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error { return nil }

// NewEmptyTraceProvider leaves the global no-op tracer in place.
func NewEmptyTraceProvider() TraceProvider {
	return emptyTraceProvider{}
}

// NewTraceProvider builds the exporter named by cfg.Provider and installs it as
// the global tracer provider. Unknown providers fall back to the empty one.
func NewTraceProvider(ctx context.Context, cfg Config, log logger.LoggerInterface) (TraceProvider, error) {
	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("trace exporter %s: %w", cfg.Provider, err)
	}
	if exp == nil {
		if cfg.Provider != EmptyProvider && cfg.Provider != "" {
			log.Warn(ctx, "trace provider not found, using empty provider", "provider", cfg.Provider)
		}
		return NewEmptyTraceProvider(), nil
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("otel.provider", string(cfg.Provider)),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	// Set trace propagator
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(ctx, "trace provider initialized", "provider", cfg.Provider, "endpoint", cfg.Endpoint)
	return &traceProvider{tp}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Provider {
	case ZipkinProvider:
		return zipkin.New(cfg.Endpoint)
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case OTLPGRPCProvider:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpointURL(cfg.Endpoint)}
		if h, ok := parseHeader(cfg.Headers); ok {
			opts = append(opts, otlptracegrpc.WithHeaders(h))
		}
		return otlptracegrpc.New(ctx, opts...)
	case OTLPHTTPProvider:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
		if h, ok := parseHeader(cfg.Headers); ok {
			opts = append(opts, otlptracehttp.WithHeaders(h))
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, nil
	}
}

// parseHeader splits "key=value".
func parseHeader(raw string) (map[string]string, bool) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok || key == "" {
		return nil, false
	}
	return map[string]string{strings.TrimSpace(key): strings.TrimSpace(value)}, true
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
