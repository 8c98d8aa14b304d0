// Package coingecko is a USD price source backed by CoinGecko's simple price
// endpoint.
package coingecko

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/httpclient"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/depth-compare/business/pricing/infra/coingecko"

	BaseAPIURL          = "https://api.coingecko.com"
	simplePriceEndpoint = "/api/v3/simple/price"

	httpTimeout = 5 * time.Second
)

// Config holds configuration for the CoinGecko source.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerMinute int
	// IDs maps symbols to CoinGecko coin ids ("BTC" -> "bitcoin"). Keys are
	// matched case-insensitively.
	IDs map[string]string
}

// Source prices assets from CoinGecko.
type Source struct {
	client httpclient.Client
	ids    map[asset.Symbol]string
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewSource creates a CoinGecko price source.
func NewSource(cfg Config, log logger.LoggerInterface) (*Source, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseAPIURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("coingecko"),
		httpclient.WithBaseURL(baseURL),
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

	ids := make(map[asset.Symbol]string, len(cfg.IDs))
	for sym, id := range cfg.IDs {
		ids[asset.NewSymbol(sym)] = id
	}

	return &Source{client: client, ids: ids, logger: log, tracer: tracer}, nil
}

// Name implements app.PriceSource.
func (s *Source) Name() string {
	return "coingecko"
}

// USDPrice implements app.PriceSource. Symbols without a configured id are
// looked up by their lower-cased ticker, which CoinGecko accepts for some
// coins but not all.
func (s *Source) USDPrice(ctx context.Context, sym asset.Symbol) (decimal.Decimal, error) {
	id, ok := s.ids[sym]
	if !ok {
		id = strings.ToLower(sym.String())
	}

	ctx, span := s.tracer.Start(ctx, "coingecko.simple_price",
		trace.WithAttributes(attribute.String("asset", sym.String()), attribute.String("id", id)))
	defer span.End()

	// {"bitcoin":{"usd":67187.33}}
	var result map[string]map[string]decimal.Decimal
	_, err := s.client.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "simple_price")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetQueryParam("ids", id).
		SetQueryParam("vs_currencies", "usd").
		SetQueryParam("precision", "full").
		SetResult(&result).
		Get(ctx, simplePriceEndpoint)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}

	price, ok := result[id]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("coingecko has no usd price for %s (%s)", sym, id)
	}

	s.logger.Debug(ctx, "coingecko price", "asset", sym.String(), "id", id, "price", price.String())
	return price, nil
}

func errorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		return fmt.Errorf("coingecko HTTP %d: %s", statusCode, string(body))
	}
	return nil
}
