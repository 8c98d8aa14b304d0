package bybit

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
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/httpclient"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/depth-compare/business/market/infra/bybit"

	orderbookEndpoint   = "/v5/market/orderbook"
	instrumentsEndpoint = "/v5/market/instruments-info"
	category            = "spot"

	// Spot REST depth is capped at 200 levels.
	maxRESTDepth = 200
	httpTimeout  = 10 * time.Second
)

// RESTConfig holds REST client settings.
type RESTConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// RESTClient fetches orderbook snapshots and instrument tick sizes.
type RESTClient struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewRESTClient creates a Bybit REST client.
func NewRESTClient(cfg RESTConfig, log logger.LoggerInterface) (*RESTClient, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("bybit"),
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

// FetchSnapshot fetches the orderbook. Its update id u becomes the marker.
func (c *RESTClient) FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error) {
	symbol := pair.Concat()
	if depth <= 0 || depth > maxRESTDepth {
		depth = maxRESTDepth
	}

	ctx, span := c.tracer.Start(ctx, "bybit.rest.get_orderbook",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.Int("limit", depth),
		),
	)
	defer span.End()

	var result envelope[bookData]
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "orderbook"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("category", category).
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(depth)).
		SetResult(&result).
		Get(ctx, orderbookEndpoint)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, apperror.New(apperror.CodeSnapshotFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("bybit orderbook "+symbol))
	}

	bids, err := syncer.ParseLevels(result.Result.Bids)
	if err != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err), apperror.WithContext("bybit"))
	}
	asks, err := syncer.ParseLevels(result.Result.Asks)
	if err != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err), apperror.WithContext("bybit"))
	}

	u := result.Result.UpdateID
	span.SetAttributes(attribute.Int64("update_id", u))
	c.logger.Debug(ctx, "fetched orderbook snapshot", "symbol", symbol, "bids", len(bids), "asks", len(asks), "u", u)

	return domain.Snapshot{
		Pair:   pair,
		Bids:   bids,
		Asks:   asks,
		Marker: domain.SequenceMarker(u, u),
	}, nil
}

// TickSize reads priceFilter.tickSize from instruments-info.
func (c *RESTClient) TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error) {
	symbol := pair.Concat()

	var result envelope[instrumentsResult]
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "instruments_info")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("category", category).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, instrumentsEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("bybit "+symbol))
	}

	for _, inst := range result.Result.List {
		if inst.Symbol != symbol {
			continue
		}
		tick, err := asset.ParseDecimal(inst.PriceFilter.TickSize)
		if err != nil {
			return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
				apperror.WithCause(err),
				apperror.WithContext("bybit "+symbol))
		}
		return tick, nil
	}

	return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
		apperror.WithContext("bybit "+symbol+": instrument not listed"))
}

// errorHandler fails both HTTP errors and 200 responses carrying a non-zero
// retCode.
func errorHandler(statusCode int, body []byte) error {
	var head struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &head); err == nil && head.RetCode != 0 {
		return apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithCause(&apiError{Code: head.RetCode, Message: head.RetMsg}),
			apperror.WithStatusCode(statusCode))
	}
	if statusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
