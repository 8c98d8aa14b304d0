// Package app contains the price oracle and its port definitions.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/pricing/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// PriceSource is a remote USD price feed.
type PriceSource interface {
	// Name identifies the source in cached quotes and metrics.
	Name() string
	USDPrice(ctx context.Context, sym asset.Symbol) (decimal.Decimal, error)
}

// QuoteCache is the persisted cache tier. A miss returns ok=false and no
// error; unreadable entries are misses too.
type QuoteCache interface {
	Get(ctx context.Context, sym asset.Symbol) (q domain.Quote, ok bool, err error)
	Set(ctx context.Context, q domain.Quote, ttl time.Duration) error
}
