package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/depth-compare/business/pricing/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/circuitbreaker"
	"github.com/fd1az/depth-compare/internal/logger"
)

const (
	tracerName = "github.com/fd1az/depth-compare/business/pricing/app"
	meterName  = "github.com/fd1az/depth-compare/business/pricing"
)

// OracleConfig holds oracle settings.
type OracleConfig struct {
	TTL time.Duration
	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

type guardedSource struct {
	src PriceSource
	cb  *circuitbreaker.CircuitBreaker[decimal.Decimal]
}

type oracleMetrics struct {
	lookups  metric.Int64Counter
	failures metric.Int64Counter
}

// Oracle converts asset amounts to USD through a stablecoin passthrough, an
// in-process cache, an optional persisted cache and remote sources in
// priority order.
type Oracle struct {
	cfg       OracleConfig
	registry  *asset.Registry
	persisted QuoteCache
	sources   []guardedSource
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	metrics   *oracleMetrics

	mu     sync.RWMutex
	memory map[asset.Symbol]domain.Quote

	group singleflight.Group
}

// NewOracle creates an Oracle. persisted may be nil.
func NewOracle(cfg OracleConfig, registry *asset.Registry, persisted QuoteCache, sources []PriceSource, log logger.LoggerInterface) (*Oracle, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("oracle ttl must be positive")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("oracle needs at least one price source")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	o := &Oracle{
		cfg:       cfg,
		registry:  registry,
		persisted: persisted,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		memory:    make(map[asset.Symbol]domain.Quote),
	}
	for _, src := range sources {
		o.sources = append(o.sources, guardedSource{
			src: src,
			cb:  circuitbreaker.New[decimal.Decimal](circuitbreaker.DefaultConfig("price-" + src.Name())),
		})
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return o, nil
}

func (o *Oracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &oracleMetrics{}

	o.metrics.lookups, err = meter.Int64Counter(
		"oracle_lookups_total",
		metric.WithDescription("Price lookups by the tier that answered"),
	)
	if err != nil {
		return err
	}

	o.metrics.failures, err = meter.Int64Counter(
		"oracle_source_failures_total",
		metric.WithDescription("Failed price source requests"),
	)
	return err
}

// ToCommonUnit values amount of sym in USD.
func (o *Oracle) ToCommonUnit(ctx context.Context, sym asset.Symbol, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsZero() {
		return decimal.Zero, nil
	}
	q, err := o.Price(ctx, sym)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Convert(amount), nil
}

// FromCommonUnit converts a USD amount into units of sym.
func (o *Oracle) FromCommonUnit(ctx context.Context, sym asset.Symbol, usd decimal.Decimal) (decimal.Decimal, error) {
	if usd.IsZero() {
		return decimal.Zero, nil
	}
	q, err := o.Price(ctx, sym)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := asset.SafeDiv(usd, q.USD)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeConversionUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(sym.String()))
	}
	return out, nil
}

// Price returns the USD price of one unit of sym.
func (o *Oracle) Price(ctx context.Context, sym asset.Symbol) (domain.Quote, error) {
	if o.registry.IsStablecoin(sym) {
		o.count(ctx, domain.TierStable)
		return domain.Quote{Asset: sym, USD: decimal.NewFromInt(1), Source: domain.TierStable, At: o.cfg.Now()}, nil
	}

	if q, ok := o.fromMemory(sym); ok {
		o.count(ctx, domain.TierMemory)
		return q, nil
	}

	v, err, _ := o.group.Do(sym.String(), func() (any, error) {
		return o.lookup(ctx, sym)
	})
	if err != nil {
		return domain.Quote{}, err
	}
	return v.(domain.Quote), nil
}

func (o *Oracle) fromMemory(sym asset.Symbol) (domain.Quote, bool) {
	o.mu.RLock()
	q, ok := o.memory[sym]
	o.mu.RUnlock()
	if !ok || !q.Fresh(o.cfg.Now(), o.cfg.TTL) {
		return domain.Quote{}, false
	}
	return q, true
}

func (o *Oracle) remember(q domain.Quote) {
	o.mu.Lock()
	o.memory[q.Asset] = q
	o.mu.Unlock()
}

func (o *Oracle) lookup(ctx context.Context, sym asset.Symbol) (domain.Quote, error) {
	ctx, span := o.tracer.Start(ctx, "oracle.lookup",
		trace.WithAttributes(attribute.String("asset", sym.String())))
	defer span.End()

	// Another caller may have filled memory while this one waited.
	if q, ok := o.fromMemory(sym); ok {
		o.count(ctx, domain.TierMemory)
		return q, nil
	}

	if o.persisted != nil {
		q, ok, err := o.persisted.Get(ctx, sym)
		if err != nil {
			o.logger.Warn(ctx, "persisted price cache read failed", "asset", sym.String(), "error", err)
		}
		if ok && q.Fresh(o.cfg.Now(), o.cfg.TTL) {
			o.remember(q)
			o.count(ctx, domain.TierPersisted)
			span.SetAttributes(attribute.String("tier", domain.TierPersisted))
			return q, nil
		}
	}

	var errs []error
	for _, gs := range o.sources {
		price, err := gs.cb.Execute(func() (decimal.Decimal, error) {
			return gs.src.USDPrice(ctx, sym)
		})
		if err == nil && !price.IsPositive() {
			err = fmt.Errorf("non-positive price %s", price)
		}
		if err != nil {
			o.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", gs.src.Name())))
			errs = append(errs, fmt.Errorf("%s: %w", gs.src.Name(), err))
			continue
		}

		q := domain.Quote{Asset: sym, USD: price, Source: gs.src.Name(), At: o.cfg.Now()}
		o.remember(q)
		if o.persisted != nil {
			if err := o.persisted.Set(ctx, q, o.cfg.TTL); err != nil {
				o.logger.Warn(ctx, "persisted price cache write failed", "asset", sym.String(), "error", err)
			}
		}
		o.count(ctx, domain.TierSource)
		span.SetAttributes(attribute.String("tier", domain.TierSource), attribute.String("source", q.Source))
		return q, nil
	}

	err := apperror.New(apperror.CodeConversionUnavailable,
		apperror.WithCause(errors.Join(errs...)),
		apperror.WithContext(sym.String()),
		apperror.WithDetail("asset", sym.String()),
		apperror.WithDetail("sources", o.sourceNames()))
	span.RecordError(err)
	span.SetStatus(codes.Error, "conversion unavailable")
	return domain.Quote{}, err
}

func (o *Oracle) count(ctx context.Context, tier string) {
	o.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

func (o *Oracle) sourceNames() string {
	names := make([]string, 0, len(o.sources))
	for _, gs := range o.sources {
		names = append(names, gs.src.Name())
	}
	return strings.Join(names, ",")
}
