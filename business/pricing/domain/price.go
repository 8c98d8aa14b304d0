// Package domain contains the core domain types for the pricing context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
)

// Tier names where a quote was found.
const (
	TierStable    = "stable"
	TierMemory    = "memory"
	TierPersisted = "persisted"
	TierSource    = "source"
)

// Quote is the USD value of one unit of an asset.
type Quote struct {
	Asset  asset.Symbol
	USD    decimal.Decimal
	Source string
	At     time.Time
}

// Fresh reports whether q is younger than ttl at now.
func (q Quote) Fresh(now time.Time, ttl time.Duration) bool {
	return !q.At.IsZero() && now.Sub(q.At) < ttl
}

// Convert values amount of the quoted asset in USD.
func (q Quote) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(q.USD)
}
