// Package market implements the market bounded context: one live order book
// synchronizer per exchange.
package market

import (
	"context"
	"fmt"

	"github.com/fd1az/depth-compare/business/market/app"
	marketDI "github.com/fd1az/depth-compare/business/market/di"
	"github.com/fd1az/depth-compare/business/market/infra/binance"
	"github.com/fd1az/depth-compare/business/market/infra/bybit"
	"github.com/fd1az/depth-compare/business/market/infra/kraken"
	"github.com/fd1az/depth-compare/business/market/infra/okx"
	"github.com/fd1az/depth-compare/business/market/infra/syncer"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/di"
	"github.com/fd1az/depth-compare/internal/health"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/monolith"
)

var factories = map[string]func(config.ExchangeConfig, logger.LoggerInterface) (*syncer.Venue, error){
	config.ExchangeBinance: binance.NewSynchronizer,
	config.ExchangeBybit:   bybit.NewSynchronizer,
	config.ExchangeOKX:     okx.NewSynchronizer,
	config.ExchangeKraken:  kraken.NewSynchronizer,
}

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Synchronizers - private dependency
	di.RegisterToken(c, marketDI.Synchronizers, func(sr di.ServiceRegistry) []app.Synchronizer {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		syncs := make([]app.Synchronizer, 0, len(cfg.Exchanges))
		for _, name := range cfg.EnabledExchanges() {
			build, ok := factories[name]
			if !ok {
				panic("no synchronizer for exchange " + name)
			}
			sy, err := build(cfg.Exchanges[name], log)
			if err != nil {
				panic(fmt.Sprintf("failed to create %s synchronizer: %v", name, err))
			}
			syncs = append(syncs, sy)
		}
		return syncs
	})

	// MarketService (public - exposed to other modules)
	di.RegisterToken(c, marketDI.MarketService, func(sr di.ServiceRegistry) *app.MarketService {
		log := sr.Get("logger").(logger.LoggerInterface)
		svc, err := app.NewMarketService(marketDI.GetSynchronizers(sr), log)
		if err != nil {
			panic("failed to create market service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup starts every synchronizer, watches the compared pair and exposes
// one health check per exchange.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	svc := marketDI.GetMarketService(mono.Services())

	if mono.Services().Has("health") {
		hs := mono.Services().Get("health").(*health.Server)
		for _, name := range svc.Exchanges() {
			sy, _ := svc.Synchronizer(name)
			hs.RegisterCheck("exchange:"+name, func(ctx context.Context) (bool, string) {
				st := sy.Status()
				if !st.Connected {
					return false, "stream disconnected"
				}
				if st.Synced < st.Watched {
					return false, fmt.Sprintf("%d of %d books synced", st.Synced, st.Watched)
				}
				return true, ""
			})
		}
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start synchronizers: %w", err)
	}

	pair, err := cfg.Compare.TradingPair()
	if err != nil {
		return err
	}
	if err := svc.Watch(ctx, pair); err != nil {
		return fmt.Errorf("watch %s: %w", pair, err)
	}

	log.Info(ctx, "market module started", "exchanges", svc.Exchanges(), "pair", pair.String())
	return nil
}

// Shutdown stops every synchronizer.
func (m *Module) Shutdown(mono monolith.Monolith) {
	marketDI.GetMarketService(mono.Services()).Stop()
}
