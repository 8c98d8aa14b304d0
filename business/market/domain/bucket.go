package domain

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
)

// Bucketize re-keys the book onto a tick grid: bids floor, asks ceil, and
// colliding quantities are summed. A tick that is not positive returns an
// unchanged copy. Bucketize is idempotent for a given tick.
func Bucketize(book *OrderBook, tick decimal.Decimal) *OrderBook {
	out := book.Clone()
	if !tick.IsPositive() {
		return out
	}
	out.Bids = bucketSide(book.Bids, tick, asset.RoundFloor, true)
	out.Asks = bucketSide(book.Asks, tick, asset.RoundCeil, false)
	return out
}

func bucketSide(levels []PriceLevel, tick decimal.Decimal, mode asset.RoundingMode, descending bool) []PriceLevel {
	buckets := make(map[string]PriceLevel, len(levels))
	for _, level := range levels {
		price := asset.Quantize(level.Price, tick, mode)
		key := asset.Canonical(price)
		if existing, ok := buckets[key]; ok {
			existing.Quantity = existing.Quantity.Add(level.Quantity)
			buckets[key] = existing
			continue
		}
		buckets[key] = PriceLevel{Price: price, Quantity: level.Quantity}
	}

	out := make([]PriceLevel, 0, len(buckets))
	for _, level := range buckets {
		out = append(out, level)
	}
	SortLevels(out, descending)
	return out
}

// CoarsestTick returns the largest positive tick, or false when none is
// positive.
func CoarsestTick(ticks ...decimal.Decimal) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, t := range ticks {
		if !t.IsPositive() {
			continue
		}
		if !found || t.GreaterThan(best) {
			best = t
			found = true
		}
	}
	return best, found
}
