// Package execution implements the execution bounded context: simulating
// the configured order against every exchange's book and ranking the
// results.
package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fd1az/depth-compare/business/execution/app"
	execDI "github.com/fd1az/depth-compare/business/execution/di"
	"github.com/fd1az/depth-compare/business/execution/domain"
	"github.com/fd1az/depth-compare/business/execution/infra"
	"github.com/fd1az/depth-compare/business/execution/infra/postgres"
	feesDI "github.com/fd1az/depth-compare/business/fees/di"
	marketDI "github.com/fd1az/depth-compare/business/market/di"
	pricingDI "github.com/fd1az/depth-compare/business/pricing/di"
	"github.com/fd1az/depth-compare/internal/config"
	"github.com/fd1az/depth-compare/internal/di"
	"github.com/fd1az/depth-compare/internal/health"
	"github.com/fd1az/depth-compare/internal/logger"
	"github.com/fd1az/depth-compare/internal/monolith"
)

// consoleInterval bounds how often an unchanged ranking is reprinted in CLI
// mode.
const consoleInterval = 5 * time.Second

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Simulator - private dependency, values fees and slippage via the oracle
	di.RegisterToken(c, execDI.Simulator, func(sr di.ServiceRegistry) *app.Simulator {
		return app.NewSimulator(pricingDI.GetOracle(sr))
	})

	// Reporters - TUI or console depending on mode
	di.RegisterToken(c, execDI.Reporters, func(sr di.ServiceRegistry) []app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.App.TUIMode {
			return []app.Reporter{infra.NewTUIReporter()}
		}
		return []app.Reporter{infra.NewConsoleReporter(consoleInterval)}
	})

	// Audit store - private dependency, nil without postgres
	di.RegisterToken(c, execDI.AuditStore, func(sr di.ServiceRegistry) app.AuditStore {
		pool, _ := sr.Get("db").(*pgxpool.Pool)
		if pool == nil {
			return nil
		}
		return postgres.NewAuditStore(pool)
	})

	// Comparator (public)
	di.RegisterToken(c, execDI.Comparator, func(sr di.ServiceRegistry) *app.Comparator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		req, err := Request(cfg.Compare)
		if err != nil {
			panic("invalid compare configuration: " + err.Error())
		}

		cmp, err := app.NewComparator(
			marketDI.GetMarketService(sr),
			feesDI.GetFeeService(sr),
			execDI.GetSimulator(sr),
			execDI.GetReporters(sr),
			execDI.GetAuditStore(sr),
			app.ComparatorConfig{Request: req, Debounce: cfg.Compare.Debounce},
			log,
		)
		if err != nil {
			panic("failed to create comparator: " + err.Error())
		}
		return cmp
	})

	return nil
}

// Startup prepares the audit schema and registers its health check. The
// comparator itself is started by main once the UI is up.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cmp := execDI.GetComparator(mono.Services())

	if pool := mono.DB(); pool != nil {
		store := postgres.NewAuditStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		if mono.Services().Has("health") {
			hs := mono.Services().Get("health").(*health.Server)
			hs.RegisterCheck("postgres", func(ctx context.Context) (bool, string) {
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				defer cancel()
				if err := pool.Ping(pingCtx); err != nil {
					return false, err.Error()
				}
				return true, ""
			})
		}
	}

	log.Info(ctx, "execution module started",
		"request", cmp.Request().String(),
		"audit", mono.DB() != nil)
	return nil
}

// Request builds the compared order from configuration.
func Request(c config.CompareConfig) (domain.Request, error) {
	pair, err := c.TradingPair()
	if err != nil {
		return domain.Request{}, err
	}
	side, err := domain.ParseSide(c.Side)
	if err != nil {
		return domain.Request{}, err
	}
	size, err := c.SizeDecimal()
	if err != nil {
		return domain.Request{}, fmt.Errorf("invalid size %q: %w", c.Size, err)
	}

	req := domain.Request{
		Pair:      pair,
		Side:      side,
		Size:      size,
		SizeAsset: domain.SizeInBase,
		Reference: domain.ReferenceBest,
	}
	switch c.SizeAsset {
	case "", "base":
	case "quote":
		req.SizeAsset = domain.SizeInQuote
	default:
		return domain.Request{}, fmt.Errorf("size_asset must be base or quote, got %q", c.SizeAsset)
	}
	switch c.ReferencePrice {
	case "", "best":
	case "mid":
		req.Reference = domain.ReferenceMid
	default:
		return domain.Request{}, fmt.Errorf("reference_price must be best or mid, got %q", c.ReferencePrice)
	}
	return req, nil
}
