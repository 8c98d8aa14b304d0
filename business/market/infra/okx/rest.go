package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/httpclient"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/depth-compare/business/market/infra/okx"

	booksEndpoint       = "/api/v5/market/books"
	instrumentsEndpoint = "/api/v5/public/instruments"

	maxRESTDepth = 400
	httpTimeout  = 10 * time.Second
)

// RESTConfig holds REST client settings.
type RESTConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// RESTClient fetches book snapshots and instrument tick sizes.
type RESTClient struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewRESTClient creates an OKX REST client.
func NewRESTClient(cfg RESTConfig, log logger.LoggerInterface) (*RESTClient, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("okx"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithRateLimiter(ratelimit.New(cfg.RatePerMinute)),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &RESTClient{client: client, logger: log, tracer: tracer}, nil
}

// FetchSnapshot fetches the book. The REST payload has no seqId, so the
// snapshot is unanchored until the stream pushes its own.
func (c *RESTClient) FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error) {
	instID := pair.String()
	if depth <= 0 || depth > maxRESTDepth {
		depth = maxRESTDepth
	}

	ctx, span := c.tracer.Start(ctx, "okx.rest.get_books",
		trace.WithAttributes(
			attribute.String("inst_id", instID),
			attribute.Int("sz", depth),
		),
	)
	defer span.End()

	var result envelope[bookData]
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "books"),
			httpclient.NewLabel("symbol", instID),
		),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("instId", instID).
		SetQueryParam("sz", strconv.Itoa(depth)).
		SetResult(&result).
		Get(ctx, booksEndpoint)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, apperror.New(apperror.CodeSnapshotFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("okx books "+instID))
	}
	if len(result.Data) == 0 {
		return domain.Snapshot{}, apperror.New(apperror.CodeSnapshotFetchFailed,
			apperror.WithContext("okx books "+instID+": empty data"))
	}

	ev, err := toEvent(instID, result.Data[0])
	if err != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err), apperror.WithContext("okx"))
	}

	c.logger.Debug(ctx, "fetched books snapshot", "inst_id", instID, "bids", len(ev.Bids), "asks", len(ev.Asks))

	return domain.Snapshot{Pair: pair, Bids: ev.Bids, Asks: ev.Asks, Marker: ev.Marker}, nil
}

// TickSize reads tickSz from the public instruments endpoint.
func (c *RESTClient) TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error) {
	instID := pair.String()

	var result envelope[instrument]
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "instruments")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("instType", "SPOT").
		SetQueryParam("instId", instID).
		SetResult(&result).
		Get(ctx, instrumentsEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("okx "+instID))
	}

	for _, inst := range result.Data {
		if inst.InstID != instID {
			continue
		}
		tick, err := asset.ParseDecimal(inst.TickSz)
		if err != nil {
			return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
				apperror.WithCause(err),
				apperror.WithContext("okx "+instID))
		}
		return tick, nil
	}

	return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
		apperror.WithContext("okx "+instID+": instrument not listed"))
}

// errorHandler fails HTTP errors and bodies whose code is not "0".
func errorHandler(statusCode int, body []byte) error {
	var head struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &head); err == nil && head.Code != "" && head.Code != "0" {
		return apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithCause(&apiError{Code: head.Code, Message: head.Msg}),
			apperror.WithStatusCode(statusCode))
	}
	if statusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
