package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/internal/apperror"
)

// maxBody caps how much of a response is read. Full-depth snapshots stay
// well below it.
const maxBody = 16 << 20

// Request builds one GET call.
type Request interface {
	SetQueryParam(key, value string) Request
	// SetResult decodes a successful JSON body into v.
	SetResult(v any) Request
	Get(ctx context.Context, path string) (*Response, error)
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	body       []byte
}

func (r *Response) Body() []byte { return r.body }

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type request struct {
	client *InstrumentedClient
	opts   requestOptions
	query  url.Values
	result any
}

func (r *request) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

func (r *request) SetResult(v any) Request {
	r.result = v
	return r
}

func (r *request) Get(ctx context.Context, path string) (*Response, error) {
	o := r.client.opts
	ctx, span := o.tracer.Start(ctx, "http.get",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("provider", o.providerName),
			attribute.String("http.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := r.do(ctx, span, path)
	r.record(ctx, start, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (r *request) do(ctx context.Context, span trace.Span, path string) (*Response, error) {
	o := r.client.opts

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, apperror.New(apperror.CodeRateLimitExceeded,
				apperror.WithCause(err),
				apperror.WithContext(o.providerName))
		}
	}

	target := r.url(path)
	if o.traceQuery && len(r.query) > 0 {
		span.SetAttributes(attribute.String("http.query", r.query.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	httpResp, err := r.client.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			span.SetAttributes(attribute.Bool("request.timeout", true))
		}
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", httpResp.StatusCode))
	if o.traceBody {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("body", string(body))))
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, body: body}

	if r.opts.errorHandler != nil {
		if err := r.opts.errorHandler(resp.StatusCode, body); err != nil {
			return resp, err
		}
	}

	// A body that does not match the expected shape fails the request.
	if r.result != nil && resp.IsSuccess() && len(body) > 0 {
		if err := json.Unmarshal(body, r.result); err != nil {
			return resp, apperror.New(apperror.CodeInvalidFormat,
				apperror.WithCause(err),
				apperror.WithContext(o.providerName+" "+path))
		}
	}
	return resp, nil
}

func (r *request) url(path string) string {
	target := path
	if base := r.client.opts.baseURL; base != "" && !strings.HasPrefix(path, "http") {
		target = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + r.query.Encode()
}

func (r *request) record(ctx context.Context, start time.Time, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", r.client.opts.providerName),
		attribute.Bool("success", success),
	}
	for _, l := range r.opts.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	set := metric.WithAttributes(attrs...)
	r.client.requests.Add(ctx, 1, set)
	r.client.latency.Record(ctx, time.Since(start).Seconds(), set)
}
