package binance

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
	tracerName = "github.com/fd1az/depth-compare/business/market/infra/binance"

	depthEndpoint        = "/api/v3/depth"
	exchangeInfoEndpoint = "/api/v3/exchangeInfo"

	httpTimeout = 10 * time.Second
)

// Binance accepts only these depth limits.
var validLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

// RESTConfig holds REST client settings.
type RESTConfig struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
}

// RESTClient fetches depth snapshots and tick sizes.
type RESTClient struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewRESTClient creates a Binance REST client.
func NewRESTClient(cfg RESTConfig, log logger.LoggerInterface) (*RESTClient, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
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

// FetchSnapshot fetches the depth snapshot. Its lastUpdateId becomes the
// snapshot marker.
func (c *RESTClient) FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error) {
	symbol := pair.Concat()
	limit := depthLimit(depth)

	ctx, span := c.tracer.Start(ctx, "binance.rest.get_depth",
		trace.WithAttributes(
			attribute.String("symbol", symbol),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	var result depthResponse
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "depth"),
			httpclient.NewLabel("symbol", symbol),
		),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&result).
		Get(ctx, depthEndpoint)
	if err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, apperror.New(apperror.CodeSnapshotFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("binance depth "+symbol))
	}

	bids, err := parseSides(result.Bids)
	if err != nil {
		return domain.Snapshot{}, err
	}
	asks, err := parseSides(result.Asks)
	if err != nil {
		return domain.Snapshot{}, err
	}

	span.SetAttributes(
		attribute.Int("bids", len(bids)),
		attribute.Int("asks", len(asks)),
		attribute.Int64("last_update_id", result.LastUpdateID),
	)

	c.logger.Debug(ctx, "fetched depth snapshot",
		"symbol", symbol,
		"bids", len(bids),
		"asks", len(asks),
		"last_update_id", result.LastUpdateID)

	return domain.Snapshot{
		Pair:   pair,
		Bids:   bids,
		Asks:   asks,
		Marker: domain.SequenceMarker(result.LastUpdateID, result.LastUpdateID),
	}, nil
}

// TickSize reads the PRICE_FILTER tick size from exchangeInfo.
func (c *RESTClient) TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error) {
	symbol := pair.Concat()

	var result exchangeInfoResponse
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "exchange_info")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get(ctx, exchangeInfoEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("binance "+symbol))
	}

	for _, s := range result.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType == "PRICE_FILTER" {
				tick, err := asset.ParseDecimal(f.TickSize)
				if err != nil {
					return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
						apperror.WithCause(err),
						apperror.WithContext("binance "+symbol))
				}
				return tick, nil
			}
		}
	}

	return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
		apperror.WithContext("binance "+symbol+": no PRICE_FILTER"))
}

func parseSides(raw [][]string) ([]domain.PriceLevel, error) {
	levels, err := syncer.ParseLevels(raw)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err), apperror.WithContext("binance"))
	}
	return levels, nil
}

// depthLimit rounds depth up to the nearest accepted limit.
func depthLimit(depth int) int {
	for _, l := range validLimits {
		if depth <= l {
			return l
		}
	}
	return validLimits[len(validLimits)-1]
}

// apiError is Binance's {code, msg} error body, also used on the stream.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

func errorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
			return apperror.New(apperror.CodeExchangeAPIError,
				apperror.WithCause(&apiErr),
				apperror.WithStatusCode(statusCode))
		}
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
