// Package httpclient is the instrumented REST client used for exchange
// snapshots, instrument metadata and price lookups. Every call is a GET
// returning JSON.
package httpclient

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/internal/ratelimit"
)

// TraceOption selects which bodies are attached to spans.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

type clientOptions struct {
	providerName   string
	baseURL        string
	headers        map[string]string
	requestTimeout time.Duration
	limiter        *ratelimit.Limiter
	tracer         trace.Tracer
	traceQuery     bool
	traceBody      bool
}

// ClientOption configures NewInstrumentedClient.
type ClientOption func(*clientOptions)

// WithProviderName names the upstream in spans and metrics.
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) { o.providerName = name }
}

// WithBaseURL prefixes relative request paths.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithHeaders sets headers sent with every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = headers }
}

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

// WithRateLimiter makes every request wait on l before it is sent.
func WithRateLimiter(l *ratelimit.Limiter) ClientOption {
	return func(o *clientOptions) { o.limiter = l }
}

// WithTraceOptions sets the tracer. TraceRequest records the query string,
// TraceResponse the response body.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(o *clientOptions) {
		o.tracer = tracer
		for _, opt := range opts {
			switch opt {
			case TraceRequest:
				o.traceQuery = true
			case TraceResponse:
				o.traceBody = true
			}
		}
	}
}

// ResponseErrorHandler maps an upstream status and body to an error, or nil
// when the response is usable.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is an extra metric attribute for one request.
type Label struct {
	Key   string
	Value string
}

func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

type requestOptions struct {
	errorHandler ResponseErrorHandler
	labels       []*Label
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = handler }
}

// WithLabels tags the request's metrics, e.g. endpoint and symbol.
func WithLabels(labels ...*Label) RequestOption {
	return func(o *requestOptions) { o.labels = labels }
}
