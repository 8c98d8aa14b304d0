// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/fd1az/depth-compare/business/market/app"
	"github.com/fd1az/depth-compare/internal/di"
)

// Public service tokens - exposed to other modules
var (
	MarketService = di.NewToken[*app.MarketService]("market.MarketService")
)

// Private dependency tokens - internal to market module
var (
	Synchronizers = di.NewToken[[]app.Synchronizer]("market:synchronizers")
)

// GetMarketService resolves the market service.
func GetMarketService(c di.ServiceRegistry) *app.MarketService {
	return di.GetToken(c, MarketService)
}

// GetSynchronizers resolves the per-exchange synchronizers.
func GetSynchronizers(c di.ServiceRegistry) []app.Synchronizer {
	return di.GetToken(c, Synchronizers)
}
