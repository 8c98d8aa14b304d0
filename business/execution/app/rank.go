package app

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/execution/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

var (
	tieEpsilon = decimal.New(1, -9)
	one        = decimal.NewFromInt(1)
)

type scored struct {
	b       *domain.CostBreakdown
	score   decimal.Decimal
	ok      bool
	cluster int
}

// Rank orders breakdowns best first. The score is the effective USD cost per
// base unit received on a buy and the negated USD proceeds per base unit sold
// on a sell, so lower is better on both sides. Breakdowns whose score cannot
// be computed sort last by exchange id.
func Rank(breakdowns []*domain.CostBreakdown, side domain.Side) domain.Ranking {
	items := make([]scored, 0, len(breakdowns))
	for _, b := range breakdowns {
		if b == nil {
			continue
		}
		s, ok := score(b, side)
		items = append(items, scored{b: b, score: s, ok: ok})
	}

	// Near-equality is not transitive, so scores are first grouped into
	// clusters no wider than the epsilon of their lowest member. The cascade
	// then only orders entries inside a cluster.
	slices.SortStableFunc(items, func(x, y scored) int {
		if c := compareScored(x, y); c != 0 {
			return c
		}
		return x.score.Cmp(y.score)
	})
	cluster, anchor := 0, 0
	for i := range items {
		if !items[i].ok {
			items[i].cluster = len(items)
			continue
		}
		if !nearlyEqual(items[i].score, items[anchor].score) {
			cluster++
			anchor = i
		}
		items[i].cluster = cluster
	}

	slices.SortStableFunc(items, func(x, y scored) int {
		if c := compareScored(x, y); c != 0 {
			return c
		}
		if x.cluster != y.cluster {
			return x.cluster - y.cluster
		}
		return tieBreak(x.b, y.b, side)
	})

	r := domain.Ranking{Side: side, Entries: make([]domain.RankedEntry, len(items))}
	for i, it := range items {
		r.Entries[i] = domain.RankedEntry{
			Rank:      i + 1,
			Exchange:  it.b.Exchange,
			Score:     it.score,
			Scored:    it.ok,
			Breakdown: it.b,
		}
	}
	return r
}

// compareScored puts scored entries first and orders unscored ones by
// exchange id. It returns 0 when both are scored.
func compareScored(x, y scored) int {
	switch {
	case x.ok && !y.ok:
		return -1
	case !x.ok && y.ok:
		return 1
	case !x.ok && !y.ok:
		return strings.Compare(x.b.Exchange, y.b.Exchange)
	}
	return 0
}

func score(b *domain.CostBreakdown, side domain.Side) (decimal.Decimal, bool) {
	// A fee paid in a third asset is approximated in quote units at the fill
	// price so it can be netted against the traded assets.
	thirdFeeQuote := decimal.Zero
	if b.Fee.ThirdAsset {
		thirdFeeQuote = b.Fee.QuoteValue
	}

	if side == domain.Buy {
		if !b.AveragePrice.IsPositive() {
			return decimal.Zero, false
		}
		effectiveBase := b.NetBaseReceived.Sub(asset.Div(thirdFeeQuote, b.AveragePrice))
		if !effectiveBase.IsPositive() {
			return decimal.Zero, false
		}
		return asset.Div(b.Totals.SpentUSD, effectiveBase), true
	}

	if !b.BaseSold.IsPositive() {
		return decimal.Zero, false
	}
	proceeds := b.NetQuoteReceived.Sub(thirdFeeQuote).Mul(b.QuoteUSD)
	return asset.Div(proceeds, b.BaseSold).Neg(), true
}

// nearlyEqual reports whether a and b differ by less than a relative epsilon
// anchored at the smaller magnitude.
func nearlyEqual(a, b decimal.Decimal) bool {
	scale := decimal.Max(one, decimal.Min(a.Abs(), b.Abs()))
	return a.Sub(b).Abs().LessThan(tieEpsilon.Mul(scale))
}

func tieBreak(x, y *domain.CostBreakdown, side domain.Side) int {
	var steps []int
	if side == domain.Buy {
		steps = []int{
			x.Totals.SpentUSD.Cmp(y.Totals.SpentUSD),
			y.NetBaseReceived.Cmp(x.NetBaseReceived),
		}
	} else {
		steps = []int{
			x.BaseSold.Cmp(y.BaseSold),
			y.Totals.ReceivedUSD.Cmp(x.Totals.ReceivedUSD),
		}
	}
	steps = append(steps,
		x.Slippage.Rate.Cmp(y.Slippage.Rate),
		x.Totals.FeeUSD.Cmp(y.Totals.FeeUSD),
	)
	if side == domain.Buy {
		steps = append(steps, x.AveragePrice.Cmp(y.AveragePrice))
	} else {
		steps = append(steps, y.AveragePrice.Cmp(x.AveragePrice))
	}
	for _, c := range steps {
		if c != 0 {
			return c
		}
	}
	return strings.Compare(x.Exchange, y.Exchange)
}
