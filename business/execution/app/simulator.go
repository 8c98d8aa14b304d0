package app

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/depth-compare/business/execution/domain"
	feesDomain "github.com/fd1az/depth-compare/business/fees/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apm"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
)

const tracerName = "github.com/fd1az/depth-compare/business/execution/app"

// Input is one simulation request.
type Input struct {
	Exchange  string
	Book      *marketDomain.OrderBook
	Side      domain.Side
	Size      decimal.Decimal
	SizeAsset domain.SizeAsset
	Reference domain.ReferenceMode
	FeeRate   decimal.Decimal
	FeeAsset  asset.Symbol
	FeeTrail  feesDomain.Trail
}

// Simulator walks a book to price a market order.
type Simulator struct {
	conv   Converter
	tracer apm.Tracer
}

// NewSimulator creates a Simulator.
func NewSimulator(conv Converter) *Simulator {
	return &Simulator{conv: conv, tracer: apm.NewTracer(tracerName)}
}

type fill struct {
	base   decimal.Decimal
	quote  decimal.Decimal
	levels int
}

// Simulate fills in.Size against the book and builds the cost breakdown.
func (s *Simulator) Simulate(ctx context.Context, in Input) (*domain.CostBreakdown, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "execution.simulate",
		trace.WithAttributes(
			attribute.String("exchange", in.Exchange),
			attribute.String("side", string(in.Side)),
			attribute.String("size", in.Size.String()),
			attribute.String("size_asset", string(in.SizeAsset)),
		),
	)
	defer span.End()

	if !in.Size.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext(in.Exchange),
			apperror.WithDetail("size", in.Size.String()))
	}
	if in.Book == nil {
		return nil, apperror.New(apperror.CodeBookUnavailable, apperror.WithContext(in.Exchange))
	}

	pair := in.Book.Pair
	levels := in.Book.Asks
	if in.Side == domain.Sell {
		levels = in.Book.Bids
	}

	var (
		f      fill
		filled bool
	)
	if in.SizeAsset == domain.SizeInQuote {
		f, filled = walkQuote(levels, in.Size)
	} else {
		f, filled = walkBase(levels, in.Size)
	}
	if !filled {
		available := f.base
		if in.SizeAsset == domain.SizeInQuote {
			available = f.quote
		}
		last := decimal.Zero
		if f.levels > 0 {
			last = levels[f.levels-1].Price
		}
		err := apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(in.Exchange),
			apperror.WithDetail("requested", in.Size.String()),
			apperror.WithDetail("available", available.String()),
			apperror.WithDetail("levels_seen", f.levels),
			apperror.WithDetail("last_price", last.String()),
			apperror.WithDetail("size_asset", string(in.SizeAsset)))
		span.NoticeError(err)
		return nil, err
	}

	avg := asset.Div(f.quote, f.base)
	ref, ok := reference(in.Book, in.Side, in.Reference)
	if !ok {
		ref = avg
	}

	quoteUSD, err := s.conv.ToCommonUnit(ctx, pair.Quote, decimal.NewFromInt(1))
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}
	usd := func(quote decimal.Decimal) decimal.Decimal { return quote.Mul(quoteUSD) }

	b := &domain.CostBreakdown{
		Exchange:       in.Exchange,
		Pair:           pair,
		Side:           in.Side,
		SizeAsset:      in.SizeAsset,
		Requested:      in.Size,
		ExecutedBase:   f.base,
		ExecutedQuote:  f.quote,
		AveragePrice:   avg,
		ReferencePrice: ref,
		LevelsConsumed: f.levels,
		QuoteUSD:       quoteUSD,
		BookUpdatedAt:  in.Book.UpdatedAt,
	}

	// Slippage only counts adverse moves.
	delta := avg.Sub(ref)
	if in.Side == domain.Sell {
		delta = ref.Sub(avg)
	}
	if delta.IsNegative() {
		delta = decimal.Zero
	}
	b.Slippage = domain.Slippage{
		PerUnit: delta,
		Amount:  delta.Mul(f.base),
		USD:     usd(delta.Mul(f.base)),
	}
	if ref.IsPositive() {
		b.Slippage.Rate = asset.Div(delta, ref)
	}

	fee, err := s.fee(ctx, in, pair, f, avg, usd)
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}
	b.Fee = fee

	baseFee, quoteFee := decimal.Zero, decimal.Zero
	switch fee.Asset {
	case pair.Base:
		baseFee = fee.Amount
	case pair.Quote:
		quoteFee = fee.Amount
	}

	b.Totals.NotionalUSD = usd(f.quote)
	b.Totals.FeeUSD = fee.USD
	b.Totals.SlippageUSD = b.Slippage.USD

	if in.Side == domain.Buy {
		b.NetBaseReceived = f.base.Sub(baseFee)
		b.QuoteSpent = f.quote.Add(quoteFee)
		b.Totals.SpentUSD = usd(b.QuoteSpent)
	} else {
		b.NetQuoteReceived = f.quote.Sub(quoteFee)
		b.BaseSold = f.base.Add(baseFee)
		b.Totals.ReceivedUSD = usd(b.NetQuoteReceived)
	}

	span.SetAttributes(
		attribute.String("avg_price", avg.String()),
		attribute.Int("levels", f.levels),
		attribute.String("fee_usd", fee.USD.String()),
	)
	return b, nil
}

func (s *Simulator) fee(ctx context.Context, in Input, pair asset.Pair, f fill, avg decimal.Decimal, usd func(decimal.Decimal) decimal.Decimal) (domain.FeeCharge, error) {
	feeAsset := in.FeeAsset
	if feeAsset.IsZero() {
		feeAsset = pair.Quote
		if in.Side == domain.Buy {
			feeAsset = pair.Base
		}
	}

	charge := domain.FeeCharge{
		Rate:       in.FeeRate,
		Asset:      feeAsset,
		QuoteValue: in.FeeRate.Mul(f.quote),
		Trail:      in.FeeTrail,
	}

	switch feeAsset {
	case pair.Base:
		charge.Amount = in.FeeRate.Mul(f.base)
		charge.USD = usd(charge.Amount.Mul(avg))
	case pair.Quote:
		charge.Amount = charge.QuoteValue
		charge.USD = usd(charge.Amount)
	default:
		charge.ThirdAsset = true
		charge.USD = usd(charge.QuoteValue)
		amount, err := s.conv.FromCommonUnit(ctx, feeAsset, charge.USD)
		if err != nil {
			return domain.FeeCharge{}, err
		}
		charge.Amount = amount
	}
	return charge, nil
}

func reference(book *marketDomain.OrderBook, side domain.Side, mode domain.ReferenceMode) (decimal.Decimal, bool) {
	if mode == domain.ReferenceMid {
		return book.MidPrice()
	}
	if side == domain.Buy {
		l, ok := book.BestAsk()
		return l.Price, ok
	}
	l, ok := book.BestBid()
	return l.Price, ok
}

// walkBase consumes levels until size base units are filled. It reports
// false when the side runs out first.
func walkBase(levels []marketDomain.PriceLevel, size decimal.Decimal) (fill, bool) {
	var f fill
	remaining := size
	for _, l := range levels {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, l.Quantity)
		f.base = f.base.Add(take)
		f.quote = f.quote.Add(take.Mul(l.Price))
		f.levels++
		remaining = remaining.Sub(take)
	}
	return f, !remaining.IsPositive()
}

// walkQuote consumes levels until size quote units are spent or received.
func walkQuote(levels []marketDomain.PriceLevel, size decimal.Decimal) (fill, bool) {
	var f fill
	remaining := size
	for _, l := range levels {
		if !remaining.IsPositive() {
			break
		}
		notional := l.Quantity.Mul(l.Price)
		f.levels++
		if notional.LessThanOrEqual(remaining) {
			f.base = f.base.Add(l.Quantity)
			f.quote = f.quote.Add(notional)
			remaining = remaining.Sub(notional)
			continue
		}
		f.base = f.base.Add(asset.Div(remaining, l.Price))
		f.quote = f.quote.Add(remaining)
		remaining = decimal.Zero
	}
	return f, !remaining.IsPositive()
}
