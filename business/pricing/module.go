// Package pricing implements the pricing bounded context: converting asset
// amounts into the common USD unit.
package pricing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/depth-compare/business/pricing/app"
	pricingDI "github.com/fd1az/depth-compare/business/pricing/di"
	"github.com/fd1az/depth-compare/business/pricing/infra/binance"
	"github.com/fd1az/depth-compare/business/pricing/infra/coingecko"
	"github.com/fd1az/depth-compare/business/pricing/infra/rediscache"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/di"
	"github.com/fd1az/depth-compare/internal/health"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Price sources - private dependency, priority order from config
	di.RegisterToken(c, pricingDI.PriceSources, func(sr di.ServiceRegistry) []app.PriceSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sources := make([]app.PriceSource, 0, len(cfg.Oracle.Sources))
		for _, name := range cfg.Oracle.Sources {
			switch name {
			case "binance":
				src, err := binance.NewTickerSource(binance.TickerConfig{
					BaseURL: cfg.Oracle.BinanceURL,
					Timeout: cfg.Oracle.RequestTimeout,
				}, log)
				if err != nil {
					panic("failed to create binance price source: " + err.Error())
				}
				sources = append(sources, src)
			case "coingecko":
				src, err := coingecko.NewSource(coingecko.Config{
					BaseURL:       cfg.Oracle.CoinGeckoURL,
					Timeout:       cfg.Oracle.RequestTimeout,
					RatePerMinute: cfg.Oracle.CoinGeckoRatePerMinute,
					IDs:           cfg.Oracle.CoinGeckoIDs,
				}, log)
				if err != nil {
					panic("failed to create coingecko price source: " + err.Error())
				}
				sources = append(sources, src)
			default:
				panic("unknown price source " + name)
			}
		}
		return sources
	})

	// Persisted quote cache - private dependency, nil without redis
	di.RegisterToken(c, pricingDI.QuoteCache, func(sr di.ServiceRegistry) app.QuoteCache {
		cfg := sr.Get("config").(*config.Config)
		rdb, _ := sr.Get("redis").(*redis.Client)
		if rdb == nil {
			return nil
		}
		return rediscache.New(rdb, cfg.Redis.KeyPrefix)
	})

	// Oracle (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.Oracle, func(sr di.ServiceRegistry) *app.Oracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		oracle, err := app.NewOracle(app.OracleConfig{TTL: cfg.Oracle.TTL}, registry,
			pricingDI.GetQuoteCache(sr), pricingDI.GetPriceSources(sr), log)
		if err != nil {
			panic("failed to create price oracle: " + err.Error())
		}
		return oracle
	})

	return nil
}

// Startup resolves the oracle and registers a redis health check when the
// persisted cache is enabled.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	_ = pricingDI.GetOracle(mono.Services())

	if rdb := mono.Redis(); rdb != nil && mono.Services().Has("health") {
		hs := mono.Services().Get("health").(*health.Server)
		hs.RegisterCheck("redis", func(ctx context.Context) (bool, string) {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				return false, err.Error()
			}
			return true, ""
		})
	}

	log.Info(ctx, "pricing module started",
		"sources", mono.Config().Oracle.Sources,
		"persisted_cache", mono.Redis() != nil)
	return nil
}
