package kraken

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
	tracerName = "github.com/fd1az/depth-compare/business/market/infra/kraken"

	depthEndpoint      = "/0/public/Depth"
	assetPairsEndpoint = "/0/public/AssetPairs"

	httpTimeout = 10 * time.Second
)

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

// NewRESTClient creates a Kraken REST client.
func NewRESTClient(cfg RESTConfig, log logger.LoggerInterface) (*RESTClient, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("kraken"),
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

// restPair is the REST name, which still spells bitcoin XBT.
func restPair(pair asset.Pair) string {
	name := func(s asset.Symbol) string {
		if s == "BTC" {
			return "XBT"
		}
		return s.String()
	}
	return name(pair.Base) + name(pair.Quote)
}

// FetchSnapshot fetches the depth. Levels carry their own update time; the
// newest becomes the marker.
func (c *RESTClient) FetchSnapshot(ctx context.Context, pair asset.Pair, depth int) (domain.Snapshot, error) {
	name := restPair(pair)

	ctx, span := c.tracer.Start(ctx, "kraken.rest.get_depth",
		trace.WithAttributes(
			attribute.String("pair", name),
			attribute.Int("count", depth),
		),
	)
	defer span.End()

	var result envelope[restBook]
	req := c.client.NewRequestWithOptions(
		httpclient.WithLabels(
			httpclient.NewLabel("endpoint", "depth"),
			httpclient.NewLabel("symbol", name),
		),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("pair", name).
		SetResult(&result)
	if depth > 0 {
		req = req.SetQueryParam("count", strconv.Itoa(depth))
	}
	if _, err := req.Get(ctx, depthEndpoint); err != nil {
		span.RecordError(err)
		return domain.Snapshot{}, apperror.New(apperror.CodeSnapshotFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("kraken depth "+name))
	}

	book, ok := only(result.Result)
	if !ok {
		return domain.Snapshot{}, apperror.New(apperror.CodeSnapshotFetchFailed,
			apperror.WithContext(fmt.Sprintf("kraken depth %s: %d results", name, len(result.Result))))
	}

	bids, bidTS, err := restLevels(book.Bids)
	if err != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err), apperror.WithContext("kraken"))
	}
	asks, askTS, err := restLevels(book.Asks)
	if err != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidOrderbook, apperror.WithCause(err), apperror.WithContext("kraken"))
	}

	newest := max(bidTS, askTS)
	c.logger.Debug(ctx, "fetched depth snapshot", "pair", name, "bids", len(bids), "asks", len(asks))

	return domain.Snapshot{
		Pair:   pair,
		Bids:   bids,
		Asks:   asks,
		Marker: domain.Marker{First: newest, Last: newest},
	}, nil
}

// TickSize reads tick_size from AssetPairs.
func (c *RESTClient) TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error) {
	name := restPair(pair)

	var result envelope[assetPairInfo]
	_, err := c.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "asset_pairs")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("pair", name).
		SetResult(&result).
		Get(ctx, assetPairsEndpoint)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("kraken "+name))
	}

	info, ok := only(result.Result)
	if !ok || info.TickSize == "" {
		return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
			apperror.WithContext("kraken "+name+": pair not listed"))
	}
	tick, err := asset.ParseDecimal(info.TickSize)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeTickSizeUnavailable,
			apperror.WithCause(err),
			apperror.WithContext("kraken "+name))
	}
	return tick, nil
}

// only returns the single value of a one-entry result map.
func only[T any](m map[string]T) (T, bool) {
	var zero T
	if len(m) != 1 {
		return zero, false
	}
	for _, v := range m {
		return v, true
	}
	return zero, false
}

// restLevels parses levels and returns the newest level time in ms.
func restLevels(raw []restLevel) ([]domain.PriceLevel, int64, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	var newest int64
	for _, l := range raw {
		var price, volume string
		if err := json.Unmarshal(l[0], &price); err != nil {
			return nil, 0, fmt.Errorf("level price: %w", err)
		}
		if err := json.Unmarshal(l[1], &volume); err != nil {
			return nil, 0, fmt.Errorf("level volume: %w", err)
		}
		var ts decimal.Decimal
		if err := json.Unmarshal(l[2], &ts); err != nil {
			return nil, 0, fmt.Errorf("level timestamp: %w", err)
		}

		p, err := asset.ParseDecimal(price)
		if err != nil {
			return nil, 0, fmt.Errorf("level price %q: %w", price, err)
		}
		q, err := asset.ParseDecimal(volume)
		if err != nil {
			return nil, 0, fmt.Errorf("level volume %q: %w", volume, err)
		}
		levels = append(levels, domain.PriceLevel{Price: p, Quantity: q})

		if ms := ts.Shift(3).IntPart(); ms > newest {
			newest = ms
		}
	}
	return levels, newest, nil
}

// errorHandler fails HTTP errors and bodies with a non-empty error array.
func errorHandler(statusCode int, body []byte) error {
	var head struct {
		Error []string `json:"error"`
	}
	if err := json.Unmarshal(body, &head); err == nil && len(head.Error) > 0 {
		return apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithCause(&apiError{Messages: head.Error}),
			apperror.WithStatusCode(statusCode))
	}
	if statusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
