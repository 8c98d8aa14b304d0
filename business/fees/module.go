// Package fees implements the fee bounded context: per-exchange schedules
// and the rate engine that evaluates them.
package fees

import (
	"context"

	"github.com/fd1az/depth-compare/business/fees/app"
	feesDI "github.com/fd1az/depth-compare/business/fees/di"
	"github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/business/fees/infra/schedules"
	"github.com/fd1az/depth-compare/internal/asset"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/di"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/monolith"
)

// Module implements the fees bounded context.
type Module struct{}

// RegisterServices registers all fee services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Schedule store - loaded once, immutable afterwards
	di.RegisterToken(c, feesDI.ScheduleStore, func(sr di.ServiceRegistry) *schedules.Store {
		cfg := sr.Get("config").(*config.Config)

		store := schedules.NewStore(cfg.Fees.SchedulesDir)
		if err := store.LoadAll(cfg.EnabledExchanges()); err != nil {
			panic("failed to load fee schedules: " + err.Error())
		}
		return store
	})

	// FeeService (public - exposed to other modules)
	di.RegisterToken(c, feesDI.FeeService, func(sr di.ServiceRegistry) *app.FeeService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		accounts := make(map[string]app.Account, len(cfg.Exchanges))
		for _, name := range cfg.EnabledExchanges() {
			fee := cfg.Exchanges[name].Fee
			custom, err := fee.CustomRateDecimal()
			if err != nil {
				panic("invalid fee account for " + name + ": " + err.Error())
			}
			accounts[name] = app.Account{
				Tier:          fee.Tier,
				FeeAsset:      asset.NewSymbol(fee.FeeAsset),
				CustomRate:    custom,
				ExecutionType: domain.ExecutionType(fee.ExecutionType),
			}
		}
		return app.NewFeeService(app.NewEngine(), feesDI.GetScheduleStore(sr), accounts, log)
	})

	return nil
}

// Startup resolves the schedules so a bad document fails fast.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	store := feesDI.GetScheduleStore(mono.Services())
	_ = feesDI.GetFeeService(mono.Services())

	mono.Logger().Info(ctx, "fees module started", "schedules", store.Exchanges())
	return nil
}
