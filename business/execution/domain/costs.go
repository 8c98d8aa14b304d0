// Package domain contains the core domain types for the execution context:
// order requests, cost breakdowns and rankings.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	feesDomain "github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// Side is the order side.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ParseSide validates s.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	}
	return "", fmt.Errorf("side must be buy or sell, got %q", s)
}

// SizeAsset says which asset the order size is denominated in.
type SizeAsset string

const (
	SizeInBase  SizeAsset = "base"
	SizeInQuote SizeAsset = "quote"
)

// ReferenceMode picks the price slippage is measured against.
type ReferenceMode string

const (
	ReferenceBest ReferenceMode = "best"
	ReferenceMid  ReferenceMode = "mid"
)

// Request is the order being compared across exchanges.
type Request struct {
	Pair      asset.Pair
	Side      Side
	Size      decimal.Decimal
	SizeAsset SizeAsset
	Reference ReferenceMode
}

func (r Request) String() string {
	sizeSym := r.Pair.Base
	if r.SizeAsset == SizeInQuote {
		sizeSym = r.Pair.Quote
	}
	return fmt.Sprintf("%s %s %s on %s", r.Side, r.Size, sizeSym, r.Pair)
}

// Received is the asset the side receives.
func (r Request) Received() asset.Symbol {
	if r.Side == Buy {
		return r.Pair.Base
	}
	return r.Pair.Quote
}

// Slippage is the cost of walking the book past the reference price.
type Slippage struct {
	PerUnit decimal.Decimal // quote per unit of base, never negative
	Amount  decimal.Decimal // quote units over the whole fill
	USD     decimal.Decimal
	Rate    decimal.Decimal // PerUnit / reference price
}

// FeeCharge is the trading fee for one fill.
type FeeCharge struct {
	Rate   decimal.Decimal
	Asset  asset.Symbol
	Amount decimal.Decimal // in Asset units
	USD    decimal.Decimal
	// QuoteValue is rate * executed quote, the fee expressed in quote units.
	QuoteValue decimal.Decimal
	// ThirdAsset is set when the fee is neither base nor quote.
	ThirdAsset bool
	Trail      feesDomain.Trail
}

// Totals are the headline figures in USD.
type Totals struct {
	NotionalUSD decimal.Decimal
	FeeUSD      decimal.Decimal
	SlippageUSD decimal.Decimal
	SpentUSD    decimal.Decimal // buy only
	ReceivedUSD decimal.Decimal // sell only
}

// CostBreakdown is the result of simulating one order on one exchange's
// book. It is built once and never mutated.
type CostBreakdown struct {
	Exchange  string
	Pair      asset.Pair
	Side      Side
	SizeAsset SizeAsset
	Requested decimal.Decimal

	ExecutedBase   decimal.Decimal
	ExecutedQuote  decimal.Decimal
	AveragePrice   decimal.Decimal
	ReferencePrice decimal.Decimal
	LevelsConsumed int

	Slippage Slippage
	Fee      FeeCharge

	NetBaseReceived  decimal.Decimal // buy: executed base less a base fee
	NetQuoteReceived decimal.Decimal // sell: executed quote less a quote fee
	QuoteSpent       decimal.Decimal // buy: executed quote plus a quote fee
	BaseSold         decimal.Decimal // sell: executed base plus a base fee

	// QuoteUSD is the USD value of one quote unit used for every conversion
	// in this breakdown.
	QuoteUSD decimal.Decimal
	Totals   Totals

	BookUpdatedAt time.Time
}
