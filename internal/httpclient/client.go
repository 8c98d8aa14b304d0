package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 4
	defaultIdleConnTimeout = 90 * time.Second
)

// Client issues instrumented GET requests against one upstream.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

// InstrumentedClient wraps http.Client with otel tracing, a request counter
// and a latency histogram.
type InstrumentedClient struct {
	http     *http.Client
	opts     clientOptions
	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewInstrumentedClient creates a client. The tracer defaults to the global
// provider's.
func NewInstrumentedClient(opts ...ClientOption) (Client, error) {
	o := clientOptions{providerName: "default", requestTimeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("httpclient")
	}

	transport := &http.Transport{
		DialContext:         (&net.Dialer{KeepAlive: 30 * time.Second}).DialContext,
		MaxConnsPerHost:     defaultMaxConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	meter := otel.Meter("httpclient")
	requests, err := meter.Int64Counter("http_client_requests_total",
		metric.WithDescription("Upstream REST requests by provider and outcome"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("http_client_request_duration_seconds",
		metric.WithDescription("Upstream REST round trip time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &InstrumentedClient{
		http: &http.Client{
			Timeout: o.requestTimeout,
			Transport: otelhttp.NewTransport(transport,
				otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
					return otelhttptrace.NewClientTrace(ctx)
				}),
			),
		},
		opts:     o,
		requests: requests,
		latency:  latency,
	}, nil
}

func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return &request{client: c, opts: ro}
}
