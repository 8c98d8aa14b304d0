// Package metrics installs the otel meter provider and serves the
// prometheus scrape endpoint.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

func getReaders(ctx context.Context, cfg Config) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	for _, provider := range cfg.Provider {
		switch provider.Provider {
		case PrometheusProvider:
			promExporter, err := prometheus.New()
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}
			readers = append(readers, promExporter)
		case OtelCollector:
			opts := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(provider.Endpoint),
				otlpmetricgrpc.WithHeaders(provider.Headers),
			}
			if provider.Insecure {
				opts = append(opts, otlpmetricgrpc.WithInsecure())
			}

			exp, err := otlpmetricgrpc.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}
			readers = append(readers, sdkmetric.NewPeriodicReader(exp))
		}
	}

	return readers, nil
}

// NewMetricProvider builds a meter provider with the configured readers and
// installs it globally. Without readers, meters record into nothing.
func NewMetricProvider(options ...OptionFn) (MetricProvider, error) {
	var cfg Config
	for _, opt := range options {
		cfg = opt(cfg)
	}

	readers, err := getReaders(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	metricsOps := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName))),
	}
	for _, reader := range readers {
		metricsOps = append(metricsOps, sdkmetric.WithReader(reader))
	}

	meterProvider := sdkmetric.NewMeterProvider(metricsOps...)
	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// PromServer serves /metrics from the default prometheus registry.
type PromServer struct {
	server *http.Server
}

// NewPromServer builds the scrape server. Default port is 2223.
func NewPromServer(opt ...PromOptionFn) *PromServer {
	cfg := PromServerConfig{port: 2223}
	for _, o := range opt {
		cfg = o(cfg)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &PromServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the mux for tests.
func (s *PromServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background. Listen errors go to errFn.
func (s *PromServer) Start(errFn func(error)) {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && errFn != nil {
			errFn(err)
		}
	}()
}

// Stop gracefully stops the server.
func (s *PromServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
