// Package app evaluates fee schedules into final maker/taker rates.
package app

import (
	"fmt"
	"path"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

var hundred = decimal.NewFromInt(100)

// EvalContext is the account and order context a schedule is evaluated in.
type EvalContext struct {
	Pair          asset.Pair
	ExecutionType domain.ExecutionType
	Tier          string
	FeeAsset      asset.Symbol
	// CustomRate, when set, replaces every other rule.
	CustomRate *decimal.Decimal
}

// Result is the outcome of one evaluation.
type Result struct {
	Tier       string
	BaseRates  domain.Rates
	FinalRates domain.Rates
	Trail      domain.Trail
}

// Rate returns the final rate for the context's execution type.
func (r Result) Rate(t domain.ExecutionType) decimal.Decimal {
	return r.FinalRates.For(t)
}

// Engine evaluates schedules. It holds no state, so one instance serves every
// exchange concurrently.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate derives the final rates for ec under s.
func (e *Engine) Evaluate(s *domain.Schedule, ec EvalContext) (Result, error) {
	tier, ok := s.Tier(ec.Tier)
	if !ok {
		return Result{}, fmt.Errorf("%s: unknown tier %q", s.Exchange, ec.Tier)
	}

	res := Result{
		Tier:       tier.Name,
		BaseRates:  tier.Rates,
		FinalRates: tier.Rates,
	}
	res.Trail = append(res.Trail, domain.TrailEntry{
		Kind:  domain.StepTier,
		Name:  tier.Name,
		After: tier.Rates,
		Note:  fmt.Sprintf("schedule %s %s", s.Exchange, s.Version),
	})

	if ec.CustomRate != nil {
		custom := domain.Rates{Maker: *ec.CustomRate, Taker: *ec.CustomRate}
		res.Trail = append(res.Trail, domain.TrailEntry{
			Kind:   domain.StepCustomRate,
			Name:   "custom",
			Before: res.FinalRates,
			After:  custom,
		})
		res.FinalRates = custom
		return res, nil
	}

	discountAllowed := true
	discountDone := false

	if d := s.Discount; d != nil && d.Order == domain.BeforeModifiers {
		if entry, ok := applyDiscount(d, ec, res.FinalRates); ok {
			res.Trail = append(res.Trail, entry)
			res.FinalRates = entry.After
		}
		discountDone = true
	}

	for _, m := range s.Modifiers {
		if !matches(m.Match, ec, res.Tier) {
			continue
		}

		after := applyEffect(m.Effect, res.FinalRates, res.Tier)
		res.Trail = append(res.Trail, domain.TrailEntry{
			Kind:   domain.StepModifier,
			Name:   m.Name,
			Before: res.FinalRates,
			After:  after,
			Note:   string(m.Effect.Kind),
		})
		res.FinalRates = after

		if m.Stacking.Exclusive {
			discountAllowed = false
			break
		}
		if !m.Stacking.WithDiscounts {
			discountAllowed = false
		}
		if !m.Stacking.WithOtherModifiers {
			break
		}
	}

	if d := s.Discount; d != nil && !discountDone && discountAllowed {
		if entry, ok := applyDiscount(d, ec, res.FinalRates); ok {
			res.Trail = append(res.Trail, entry)
			res.FinalRates = entry.After
		}
	}

	return res, nil
}

func matches(m domain.Match, ec EvalContext, tier string) bool {
	if len(m.BaseAssets) > 0 && !slices.Contains(m.BaseAssets, ec.Pair.Base) {
		return false
	}
	if len(m.QuoteAssets) > 0 && !slices.Contains(m.QuoteAssets, ec.Pair.Quote) {
		return false
	}
	if len(m.Pairs) > 0 && !slices.Contains(m.Pairs, ec.Pair) {
		return false
	}
	if m.PairPattern != "" {
		ok, err := path.Match(m.PairPattern, ec.Pair.String())
		if err != nil || !ok {
			return false
		}
	}
	if len(m.ExecutionTypes) > 0 && !slices.Contains(m.ExecutionTypes, executionType(ec)) {
		return false
	}
	if len(m.Tiers) > 0 && !slices.Contains(m.Tiers, tier) {
		return false
	}
	return true
}

func executionType(ec EvalContext) domain.ExecutionType {
	if ec.ExecutionType == "" {
		return domain.Taker
	}
	return ec.ExecutionType
}

func applyEffect(eff domain.Effect, r domain.Rates, tier string) domain.Rates {
	switch eff.Kind {
	case domain.EffectOverride:
		return domain.Rates{Maker: eff.Maker, Taker: eff.Taker}
	case domain.EffectOverridePerTier:
		if row, ok := eff.PerTier[tier]; ok {
			return row
		}
		return r
	case domain.EffectAdd:
		return domain.Rates{Maker: r.Maker.Add(eff.Maker), Taker: r.Taker.Add(eff.Taker)}
	case domain.EffectMultiply:
		return domain.Rates{Maker: r.Maker.Mul(eff.Maker), Taker: r.Taker.Mul(eff.Taker)}
	}
	return r
}

func applyDiscount(d *domain.Discount, ec EvalContext, r domain.Rates) (domain.TrailEntry, bool) {
	if ec.FeeAsset != d.RequiredFeeAsset {
		return domain.TrailEntry{}, false
	}

	after := r
	if d.AppliesToMaker {
		after.Maker = discounted(d, r.Maker)
	}
	if d.AppliesToTaker {
		after.Taker = discounted(d, r.Taker)
	}
	return domain.TrailEntry{
		Kind:   domain.StepDiscount,
		Name:   d.Name,
		Before: r,
		After:  after,
		Note:   fmt.Sprintf("%s %s paid in %s", d.Kind, d.Value, d.RequiredFeeAsset),
	}, true
}

func discounted(d *domain.Discount, rate decimal.Decimal) decimal.Decimal {
	switch d.Kind {
	case domain.DiscountPercentage:
		return rate.Mul(hundred.Sub(d.Value)).Div(hundred)
	case domain.DiscountAbsolute:
		out := rate.Sub(d.Value)
		if out.IsNegative() {
			return decimal.Zero
		}
		return out
	}
	return rate
}
