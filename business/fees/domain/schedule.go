// Package domain holds the fee schedule model: tiers, modifiers and an
// optional fee-asset discount.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/asset"
)

// ExecutionType distinguishes liquidity-removing from liquidity-adding fills.
type ExecutionType string

const (
	Taker ExecutionType = "taker"
	Maker ExecutionType = "maker"
)

// Rates is a maker/taker pair expressed as fractions (0.001 = 10 bps).
type Rates struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// For returns the rate for an execution type; anything but maker is taker.
func (r Rates) For(t ExecutionType) decimal.Decimal {
	if t == Maker {
		return r.Maker
	}
	return r.Taker
}

// Equal compares both rates numerically.
func (r Rates) Equal(o Rates) bool {
	return r.Maker.Equal(o.Maker) && r.Taker.Equal(o.Taker)
}

func (r Rates) String() string {
	return fmt.Sprintf("maker=%s taker=%s", r.Maker, r.Taker)
}

// Tier is one row of the volume table.
type Tier struct {
	Name  string
	Rates Rates
}

// EffectKind is how a modifier changes the rates.
type EffectKind string

const (
	EffectOverride        EffectKind = "override"
	EffectOverridePerTier EffectKind = "override_per_tier"
	EffectAdd             EffectKind = "add"
	EffectMultiply        EffectKind = "multiply"
)

// Effect is the rate change a modifier applies.
type Effect struct {
	Kind  EffectKind
	Maker decimal.Decimal
	Taker decimal.Decimal
	// PerTier is consulted by override_per_tier. A tier missing from the
	// table leaves the rates untouched.
	PerTier map[string]Rates
}

// Match is a conjunction of predicates. Empty fields match anything.
type Match struct {
	BaseAssets     []asset.Symbol
	QuoteAssets    []asset.Symbol
	Pairs          []asset.Pair
	PairPattern    string // glob over "BASE-QUOTE", e.g. "*-USDC"
	ExecutionTypes []ExecutionType
	Tiers          []string
}

// Stacking controls what else may run after a modifier applies.
type Stacking struct {
	Exclusive          bool
	WithOtherModifiers bool
	WithDiscounts      bool
}

// DefaultStacking lets everything stack.
func DefaultStacking() Stacking {
	return Stacking{WithOtherModifiers: true, WithDiscounts: true}
}

// Modifier is a scoped adjustment, e.g. zero-fee promotions on a quote asset.
type Modifier struct {
	Name     string
	Match    Match
	Effect   Effect
	Stacking Stacking
}

// DiscountKind selects how Discount.Value is interpreted.
type DiscountKind string

const (
	// DiscountPercentage reduces rates by Value percent (25 = 25%).
	DiscountPercentage DiscountKind = "percentage"
	// DiscountAbsolute subtracts Value from the rate, floored at zero.
	DiscountAbsolute DiscountKind = "absolute"
)

// DiscountOrder places the discount relative to modifiers.
type DiscountOrder string

const (
	AfterModifiers  DiscountOrder = "after_modifiers"
	BeforeModifiers DiscountOrder = "before_modifiers"
)

// Discount applies when fees are paid in RequiredFeeAsset.
type Discount struct {
	Name             string
	RequiredFeeAsset asset.Symbol
	Kind             DiscountKind
	Value            decimal.Decimal
	AppliesToMaker   bool
	AppliesToTaker   bool
	Order            DiscountOrder
}

// Schedule is one exchange's immutable fee document.
type Schedule struct {
	Exchange    string
	Version     string
	DefaultTier string
	Tiers       []Tier
	Modifiers   []Modifier
	Discount    *Discount
}

// Tier looks a tier up by name. An empty name selects the default tier.
func (s *Schedule) Tier(name string) (Tier, bool) {
	if name == "" {
		name = s.DefaultTier
	}
	for _, t := range s.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Validate checks internal consistency of a loaded schedule.
func (s *Schedule) Validate() error {
	if s.Exchange == "" {
		return fmt.Errorf("exchange is required")
	}
	if len(s.Tiers) == 0 {
		return fmt.Errorf("at least one tier is required")
	}

	seen := make(map[string]bool, len(s.Tiers))
	for _, t := range s.Tiers {
		if t.Name == "" {
			return fmt.Errorf("tier name is required")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tier %q", t.Name)
		}
		seen[t.Name] = true
		if t.Rates.Maker.IsNegative() || t.Rates.Taker.IsNegative() {
			return fmt.Errorf("tier %q: negative rate", t.Name)
		}
	}
	if !seen[s.DefaultTier] {
		return fmt.Errorf("default tier %q is not defined", s.DefaultTier)
	}

	for i, m := range s.Modifiers {
		switch m.Effect.Kind {
		case EffectOverride, EffectAdd, EffectMultiply:
		case EffectOverridePerTier:
			if len(m.Effect.PerTier) == 0 {
				return fmt.Errorf("modifier %d (%s): override_per_tier needs a tier table", i, m.Name)
			}
		default:
			return fmt.Errorf("modifier %d (%s): unknown effect %q", i, m.Name, m.Effect.Kind)
		}
	}

	if d := s.Discount; d != nil {
		if d.RequiredFeeAsset.IsZero() {
			return fmt.Errorf("discount: required_fee_asset is required")
		}
		switch d.Kind {
		case DiscountPercentage:
			if d.Value.IsNegative() || d.Value.GreaterThan(decimal.NewFromInt(100)) {
				return fmt.Errorf("discount: percentage must be within [0, 100]")
			}
		case DiscountAbsolute:
			if d.Value.IsNegative() {
				return fmt.Errorf("discount: absolute value must not be negative")
			}
		default:
			return fmt.Errorf("discount: unknown kind %q", d.Kind)
		}
		switch d.Order {
		case AfterModifiers, BeforeModifiers:
		default:
			return fmt.Errorf("discount: unknown order %q", d.Order)
		}
	}
	return nil
}
