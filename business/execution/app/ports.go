// Package app contains the execution simulator, the ranking engine and the
// comparator that drives them from live books.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/execution/domain"
	feesApp "github.com/fd1az/depth-compare/business/fees/app"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// Converter values assets in the common unit.
type Converter interface {
	ToCommonUnit(ctx context.Context, sym asset.Symbol, amount decimal.Decimal) (decimal.Decimal, error)
	FromCommonUnit(ctx context.Context, sym asset.Symbol, usd decimal.Decimal) (decimal.Decimal, error)
}

// BookSource is the market view the comparator reads.
type BookSource interface {
	OnUpdate(listener func(*marketDomain.OrderBook)) func()
	ReadyBooks(pair asset.Pair) map[string]*marketDomain.OrderBook
	TickSizes(ctx context.Context, exchanges []string, pair asset.Pair) (map[string]decimal.Decimal, map[string]error)
	Statuses() []marketDomain.SyncStatus
}

// FeeQuoter evaluates an exchange's fee schedule for the configured account.
type FeeQuoter interface {
	Quote(ctx context.Context, exchange string, pair asset.Pair, received asset.Symbol) (*feesApp.Quote, error)
}

// Reporter displays comparisons.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report hands over a finished comparison.
	Report(c *domain.Comparison)

	// UpdateStatus refreshes per-exchange synchronizer health.
	UpdateStatus(statuses []marketDomain.SyncStatus)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// AuditStore persists comparisons.
type AuditStore interface {
	Save(ctx context.Context, c *domain.Comparison) error
}
