// Package domain contains the order book model and the consistency rules
// that decide whether an incremental update may be applied.
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
)

// PriceLevel is one price and the quantity resting at it. A zero quantity in
// an update means "remove this level".
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a materialized, immutable view of one venue's book.
// Bids are sorted descending, asks ascending; prices are unique per side and
// quantities strictly positive.
type OrderBook struct {
	Exchange  string
	Pair      asset.Pair
	Bids      []PriceLevel
	Asks      []PriceLevel
	Marker    Marker
	UpdatedAt time.Time
}

// Key identifies the book as "exchange:BASE-QUOTE".
func (b *OrderBook) Key() string {
	return b.Exchange + ":" + b.Pair.String()
}

// BestBid returns the highest bid.
func (b *OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask.
func (b *OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// MidPrice returns the bid/ask midpoint. Both sides must be present.
func (b *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Spread returns best ask minus best bid.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// IsEmpty reports whether both sides are empty.
func (b *OrderBook) IsEmpty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// Clone returns a deep copy. Decimals are immutable so copying the slices is
// enough.
func (b *OrderBook) Clone() *OrderBook {
	c := *b
	c.Bids = append([]PriceLevel(nil), b.Bids...)
	c.Asks = append([]PriceLevel(nil), b.Asks...)
	return &c
}

// Levels is a price-keyed side of a book under construction. Keys are the
// canonical decimal string so "100.50" and "100.5" are one level.
type Levels map[string]PriceLevel

// Set upserts a level, or deletes it when quantity is zero.
func (l Levels) Set(level PriceLevel) {
	key := asset.Canonical(level.Price)
	if level.Quantity.IsZero() || level.Quantity.IsNegative() {
		delete(l, key)
		return
	}
	l[key] = level
}

// Replace clears l and loads levels into it.
func (l Levels) Replace(levels []PriceLevel) {
	clear(l)
	for _, level := range levels {
		l.Set(level)
	}
}

// Sorted materializes the side, descending for bids.
func (l Levels) Sorted(descending bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(l))
	for _, level := range l {
		out = append(out, level)
	}
	SortLevels(out, descending)
	return out
}

// SortLevels sorts by price, descending for bids.
func SortLevels(levels []PriceLevel, descending bool) {
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
}

// Snapshot is a full replacement of both sides, from REST or from a stream
// snapshot message.
type Snapshot struct {
	Pair   asset.Pair
	Bids   []PriceLevel
	Asks   []PriceLevel
	Marker Marker
}

// Diff is an incremental update. Zero quantities delete.
type Diff struct {
	Pair   asset.Pair
	Bids   []PriceLevel
	Asks   []PriceLevel
	Marker Marker
}

// SyncStatus is a coarse health view of one exchange synchronizer.
type SyncStatus struct {
	Exchange  string
	Connected bool
	Watched   int
	Synced    int
	LastError string
}
