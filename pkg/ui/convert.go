package ui

import (
	"fmt"

	"github.com/shopspring/decimal"

	execDomain "github.com/fd1az/depth-compare/business/execution/domain"
	"github.com/fd1az/depth-compare/pkg/ui/components"
)

var bps = decimal.NewFromInt(10000)

// rankingRows flattens a comparison into display rows. No figures are
// derived here beyond unit scaling.
func rankingRows(c *execDomain.Comparison) ([]components.RankingRow, []components.FailureRow) {
	rows := make([]components.RankingRow, 0, len(c.Ranking.Entries))
	for i, e := range c.Ranking.Entries {
		b := e.Breakdown
		row := components.RankingRow{
			Rank:        e.Rank,
			Exchange:    e.Exchange,
			AvgPrice:    b.AveragePrice,
			SlippageBps: b.Slippage.Rate.Mul(bps),
			FeeUSD:      b.Totals.FeeUSD,
			Score:       e.Score,
			Scored:      e.Scored,
			Best:        i == 0 && e.Scored,
		}
		if b.Side == execDomain.Buy {
			row.Net = b.NetBaseReceived
			row.NetAsset = b.Pair.Base.String()
		} else {
			row.Net = b.NetQuoteReceived
			row.NetAsset = b.Pair.Quote.String()
		}
		rows = append(rows, row)
	}

	failures := make([]components.FailureRow, 0, len(c.Failures))
	for _, f := range c.Failures {
		failures = append(failures, components.FailureRow{
			Exchange: f.Exchange,
			Code:     string(f.Code),
			Message:  f.Message,
		})
	}
	return rows, failures
}

func bestBreakdown(c *execDomain.Comparison) *components.Breakdown {
	best, ok := c.Ranking.Best()
	if !ok {
		return nil
	}
	b := best.Breakdown
	base, quote := b.Pair.Base.String(), b.Pair.Quote.String()

	out := &components.Breakdown{
		Exchange:       best.Exchange,
		Executed:       fmt.Sprintf("%s %s for %s %s", b.ExecutedBase.StringFixed(6), base, b.ExecutedQuote.StringFixed(2), quote),
		AvgPrice:       b.AveragePrice.StringFixed(4),
		ReferencePrice: b.ReferencePrice.StringFixed(4),
		Levels:         b.LevelsConsumed,
		Notional:       "$" + b.Totals.NotionalUSD.StringFixed(2),
		Slippage: fmt.Sprintf("%s bps ($%s)",
			b.Slippage.Rate.Mul(bps).StringFixed(2), b.Slippage.USD.StringFixed(4)),
		Fee: fmt.Sprintf("%s %s @ %s ($%s)",
			b.Fee.Amount.StringFixed(8), b.Fee.Asset, b.Fee.Rate.String(), b.Fee.USD.StringFixed(4)),
	}
	if b.Side == execDomain.Buy {
		out.Net = fmt.Sprintf("receive %s %s, spend %s %s",
			b.NetBaseReceived.StringFixed(8), base, b.QuoteSpent.StringFixed(4), quote)
	} else {
		out.Net = fmt.Sprintf("receive %s %s, sell %s %s",
			b.NetQuoteReceived.StringFixed(4), quote, b.BaseSold.StringFixed(8), base)
	}

	for _, s := range b.Fee.Trail {
		out.FeeSteps = append(out.FeeSteps, components.FeeStep{
			Kind:   string(s.Kind),
			Name:   s.Name,
			Before: s.Before.String(),
			After:  s.After.String(),
		})
	}
	return out
}
