// Package app contains application services and port definitions for the
// market context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// Synchronizer keeps live order books for one exchange.
type Synchronizer interface {
	Exchange() string

	// Start connects in the background; Stop tears everything down.
	Start(ctx context.Context) error
	Stop()

	// Watch starts synchronizing pair. Unwatch returns once the pair's state
	// is gone and is safe to call twice.
	Watch(ctx context.Context, pair asset.Pair) error
	Unwatch(ctx context.Context, pair asset.Pair) error

	// OnUpdate registers a listener for emitted books and returns its
	// unsubscribe func.
	OnUpdate(listener func(*domain.OrderBook)) func()

	// CurrentBook returns the latest synced book. ok is false while the pair
	// is unwatched, resyncing or disconnected.
	CurrentBook(pair asset.Pair) (*domain.OrderBook, bool)

	Status() domain.SyncStatus

	// TickSize returns the exchange's price increment for pair.
	TickSize(ctx context.Context, pair asset.Pair) (decimal.Decimal, error)
}
