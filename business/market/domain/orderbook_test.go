package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
)

func lvl(price, qty string) PriceLevel {
	return PriceLevel{Price: decimal.RequireFromString(price), Quantity: decimal.RequireFromString(qty)}
}

func assertLevels(t *testing.T, side string, got []PriceLevel, want []PriceLevel) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d levels %v, want %d %v", side, len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Price.Equal(want[i].Price) || !got[i].Quantity.Equal(want[i].Quantity) {
			t.Errorf("%s[%d] = %s@%s, want %s@%s", side, i,
				got[i].Quantity, got[i].Price, want[i].Quantity, want[i].Price)
		}
	}
}

func TestOrderBook_BestAndMid(t *testing.T) {
	book := &OrderBook{
		Exchange: "binance",
		Pair:     asset.NewPair("BTC", "USDT"),
		Bids:     []PriceLevel{lvl("99", "1"), lvl("98", "2")},
		Asks:     []PriceLevel{lvl("101", "1"), lvl("102", "3")},
	}

	bid, ok := book.BestBid()
	if !ok || !bid.Price.Equal(decimal.NewFromInt(99)) {
		t.Errorf("BestBid = %v, %v", bid, ok)
	}
	ask, ok := book.BestAsk()
	if !ok || !ask.Price.Equal(decimal.NewFromInt(101)) {
		t.Errorf("BestAsk = %v, %v", ask, ok)
	}
	mid, ok := book.MidPrice()
	if !ok || !mid.Equal(decimal.NewFromInt(100)) {
		t.Errorf("MidPrice = %s, %v", mid, ok)
	}
	spread, _ := book.Spread()
	if !spread.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Spread = %s", spread)
	}
	if book.Key() != "binance:BTC-USDT" {
		t.Errorf("Key = %s", book.Key())
	}

	empty := &OrderBook{}
	if _, ok := empty.MidPrice(); ok {
		t.Error("expected no mid price for an empty book")
	}
	if !empty.IsEmpty() {
		t.Error("expected IsEmpty")
	}
}

func TestOrderBook_CloneIsIndependent(t *testing.T) {
	book := &OrderBook{Bids: []PriceLevel{lvl("99", "1")}}
	c := book.Clone()
	c.Bids[0] = lvl("1", "1")
	if !book.Bids[0].Price.Equal(decimal.NewFromInt(99)) {
		t.Error("mutating the clone changed the original")
	}
}

func TestLevels_SetAndSorted(t *testing.T) {
	l := Levels{}
	l.Set(lvl("100.50", "1"))
	l.Set(lvl("100.5", "2")) // same price, different scale
	l.Set(lvl("101", "3"))
	l.Set(lvl("99", "4"))
	l.Set(lvl("101", "0")) // delete

	assertLevels(t, "asks", l.Sorted(false), []PriceLevel{lvl("99", "4"), lvl("100.5", "2")})
	assertLevels(t, "bids", l.Sorted(true), []PriceLevel{lvl("100.5", "2"), lvl("99", "4")})

	l.Replace([]PriceLevel{lvl("1", "1"), lvl("2", "0")})
	assertLevels(t, "replaced", l.Sorted(false), []PriceLevel{lvl("1", "1")})
}

// Applying diffs in marker order equals keeping only the last write per price.
func TestLevels_LastWriteWinsPerPrice(t *testing.T) {
	writes := []PriceLevel{
		lvl("100", "1"), lvl("101", "2"), lvl("100", "3"),
		lvl("102", "1"), lvl("101", "0"), lvl("102", "5"), lvl("103", "0"),
	}

	l := Levels{}
	last := map[string]PriceLevel{}
	for _, w := range writes {
		l.Set(w)
		last[w.Price.String()] = w
	}

	var want []PriceLevel
	for _, w := range last {
		if w.Quantity.IsPositive() {
			want = append(want, w)
		}
	}
	SortLevels(want, false)
	assertLevels(t, "book", l.Sorted(false), want)
}
