// Package binance is a USD price source backed by Binance's public ticker.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/httpclient"
	"github.com/fd1az/depth-compare/internal/logger"
)

const (
	tracerName = "github.com/fd1az/depth-compare/business/pricing/infra/binance"

	// Binance REST API endpoints
	BaseAPIURL     = "https://api.binance.com"
	tickerEndpoint = "/api/v3/ticker/price"

	httpTimeout = 5 * time.Second

	// Binance's "Invalid symbol." error code.
	codeInvalidSymbol = -1121
)

// Dollar-pegged quotes tried in order. The stablecoin is taken at par.
var usdQuotes = []asset.Symbol{asset.USDT, asset.USDC, asset.FDUSD}

// TickerConfig holds configuration for the ticker source.
type TickerConfig struct {
	BaseURL string        // API base URL (empty = default)
	Timeout time.Duration // Request timeout
}

// TickerSource prices an asset from its last trade against a stablecoin.
type TickerSource struct {
	client httpclient.Client
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewTickerSource creates a Binance ticker price source.
func NewTickerSource(cfg TickerConfig, log logger.LoggerInterface) (*TickerSource, error) {
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
		httpclient.WithProviderName("binance-ticker"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &TickerSource{client: client, logger: log, tracer: tracer}, nil
}

// Name implements app.PriceSource.
func (s *TickerSource) Name() string {
	return "binance"
}

type tickerResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// USDPrice implements app.PriceSource.
func (s *TickerSource) USDPrice(ctx context.Context, sym asset.Symbol) (decimal.Decimal, error) {
	ctx, span := s.tracer.Start(ctx, "binance.ticker.price",
		trace.WithAttributes(attribute.String("asset", sym.String())))
	defer span.End()

	var lastErr error
	for _, quote := range usdQuotes {
		if quote == sym {
			continue
		}
		symbol := asset.Pair{Base: sym, Quote: quote}.Concat()

		var result tickerResponse
		_, err := s.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", "ticker_price")),
			httpclient.WithResponseErrorHandler(errorHandler),
		).
			SetQueryParam("symbol", symbol).
			SetResult(&result).
			Get(ctx, tickerEndpoint)
		if err != nil {
			lastErr = err
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
				continue
			}
			span.RecordError(err)
			return decimal.Zero, err
		}

		span.SetAttributes(attribute.String("symbol", symbol), attribute.String("price", result.Price.String()))
		s.logger.Debug(ctx, "binance ticker price", "symbol", symbol, "price", result.Price.String())
		return result.Price, nil
	}

	return decimal.Zero, fmt.Errorf("no stablecoin market for %s: %w", sym, lastErr)
}

// apiError is Binance's {code, msg} error body.
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
