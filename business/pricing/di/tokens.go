// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/depth-compare/business/pricing/app"
	"github.com/fd1az/depth-compare/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Oracle = di.NewToken[*app.Oracle]("pricing.Oracle")
)

// Private dependency tokens - internal to pricing module
var (
	PriceSources = di.NewToken[[]app.PriceSource]("pricing:priceSources")
	QuoteCache   = di.NewToken[app.QuoteCache]("pricing:quoteCache")
)

// GetOracle resolves the price oracle.
func GetOracle(c di.ServiceRegistry) *app.Oracle {
	return di.GetToken(c, Oracle)
}

// GetPriceSources resolves the configured sources in priority order.
func GetPriceSources(c di.ServiceRegistry) []app.PriceSource {
	return di.GetToken(c, PriceSources)
}

// GetQuoteCache resolves the persisted cache, nil when redis is disabled.
func GetQuoteCache(c di.ServiceRegistry) app.QuoteCache {
	return di.GetToken(c, QuoteCache)
}
