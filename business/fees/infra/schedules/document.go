package schedules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/asset"
)

// Rates are written as strings in documents so no float rounding happens on
// the way in.
type document struct {
	Exchange    string        `mapstructure:"exchange"`
	Version     string        `mapstructure:"version"`
	DefaultTier string        `mapstructure:"default_tier"`
	Tiers       []tierDoc     `mapstructure:"tiers"`
	Modifiers   []modifierDoc `mapstructure:"modifiers"`
	Discount    *discountDoc  `mapstructure:"discount"`
}

type tierDoc struct {
	Name  string `mapstructure:"name"`
	Maker string `mapstructure:"maker"`
	Taker string `mapstructure:"taker"`
}

type modifierDoc struct {
	Name     string       `mapstructure:"name"`
	Match    matchDoc     `mapstructure:"match"`
	Effect   effectDoc    `mapstructure:"effect"`
	Stacking *stackingDoc `mapstructure:"stacking"`
}

type matchDoc struct {
	BaseAssets     []string `mapstructure:"base_assets"`
	QuoteAssets    []string `mapstructure:"quote_assets"`
	Pairs          []string `mapstructure:"pairs"`
	PairPattern    string   `mapstructure:"pair_pattern"`
	ExecutionTypes []string `mapstructure:"execution_types"`
	Tiers          []string `mapstructure:"tiers"`
}

type effectDoc struct {
	Type string `mapstructure:"type"`
	// Rate sets maker and taker at once.
	Rate    string    `mapstructure:"rate"`
	Maker   string    `mapstructure:"maker"`
	Taker   string    `mapstructure:"taker"`
	PerTier []tierDoc `mapstructure:"per_tier"`
}

type stackingDoc struct {
	Exclusive          bool  `mapstructure:"exclusive"`
	WithOtherModifiers *bool `mapstructure:"with_other_modifiers"`
	WithDiscounts      *bool `mapstructure:"with_discounts"`
}

type discountDoc struct {
	Name             string   `mapstructure:"name"`
	RequiredFeeAsset string   `mapstructure:"required_fee_asset"`
	Type             string   `mapstructure:"type"`
	Value            string   `mapstructure:"value"`
	AppliesTo        []string `mapstructure:"applies_to"`
	Order            string   `mapstructure:"order"`
}

func (d document) toSchedule() (*domain.Schedule, error) {
	s := &domain.Schedule{
		Exchange:    strings.ToLower(d.Exchange),
		Version:     d.Version,
		DefaultTier: d.DefaultTier,
	}

	for _, t := range d.Tiers {
		rates, err := parseRates(t.Maker, t.Taker, "")
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", t.Name, err)
		}
		s.Tiers = append(s.Tiers, domain.Tier{Name: t.Name, Rates: rates})
	}
	if s.DefaultTier == "" && len(s.Tiers) > 0 {
		s.DefaultTier = s.Tiers[0].Name
	}

	for i, m := range d.Modifiers {
		mod, err := m.toModifier()
		if err != nil {
			return nil, fmt.Errorf("modifier %d (%s): %w", i, m.Name, err)
		}
		s.Modifiers = append(s.Modifiers, mod)
	}

	if d.Discount != nil {
		disc, err := d.Discount.toDiscount()
		if err != nil {
			return nil, fmt.Errorf("discount: %w", err)
		}
		s.Discount = disc
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (m modifierDoc) toModifier() (domain.Modifier, error) {
	mod := domain.Modifier{
		Name:     m.Name,
		Stacking: domain.DefaultStacking(),
	}

	for _, a := range m.Match.BaseAssets {
		mod.Match.BaseAssets = append(mod.Match.BaseAssets, asset.NewSymbol(a))
	}
	for _, a := range m.Match.QuoteAssets {
		mod.Match.QuoteAssets = append(mod.Match.QuoteAssets, asset.NewSymbol(a))
	}
	for _, p := range m.Match.Pairs {
		pair, err := asset.ParsePair(p)
		if err != nil {
			return mod, err
		}
		mod.Match.Pairs = append(mod.Match.Pairs, pair)
	}
	mod.Match.PairPattern = strings.ToUpper(m.Match.PairPattern)
	for _, t := range m.Match.ExecutionTypes {
		mod.Match.ExecutionTypes = append(mod.Match.ExecutionTypes, domain.ExecutionType(strings.ToLower(t)))
	}
	mod.Match.Tiers = m.Match.Tiers

	mod.Effect.Kind = domain.EffectKind(strings.ToLower(m.Effect.Type))
	if mod.Effect.Kind == domain.EffectOverridePerTier {
		mod.Effect.PerTier = make(map[string]domain.Rates, len(m.Effect.PerTier))
		for _, t := range m.Effect.PerTier {
			rates, err := parseRates(t.Maker, t.Taker, "")
			if err != nil {
				return mod, fmt.Errorf("per_tier %q: %w", t.Name, err)
			}
			mod.Effect.PerTier[t.Name] = rates
		}
	} else {
		rates, err := parseRates(m.Effect.Maker, m.Effect.Taker, m.Effect.Rate)
		if err != nil {
			return mod, err
		}
		mod.Effect.Maker, mod.Effect.Taker = rates.Maker, rates.Taker
	}

	if st := m.Stacking; st != nil {
		mod.Stacking.Exclusive = st.Exclusive
		if st.WithOtherModifiers != nil {
			mod.Stacking.WithOtherModifiers = *st.WithOtherModifiers
		}
		if st.WithDiscounts != nil {
			mod.Stacking.WithDiscounts = *st.WithDiscounts
		}
	}
	return mod, nil
}

func (d discountDoc) toDiscount() (*domain.Discount, error) {
	value, err := decimal.NewFromString(d.Value)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", d.Value, err)
	}

	disc := &domain.Discount{
		Name:             d.Name,
		RequiredFeeAsset: asset.NewSymbol(d.RequiredFeeAsset),
		Kind:             domain.DiscountKind(strings.ToLower(d.Type)),
		Value:            value,
		Order:            domain.DiscountOrder(strings.ToLower(d.Order)),
	}
	if disc.Order == "" {
		disc.Order = domain.AfterModifiers
	}
	if disc.Name == "" {
		disc.Name = disc.RequiredFeeAsset.String() + " discount"
	}

	if len(d.AppliesTo) == 0 {
		disc.AppliesToMaker, disc.AppliesToTaker = true, true
	}
	for _, side := range d.AppliesTo {
		switch domain.ExecutionType(strings.ToLower(side)) {
		case domain.Maker:
			disc.AppliesToMaker = true
		case domain.Taker:
			disc.AppliesToTaker = true
		default:
			return nil, fmt.Errorf("applies_to: unknown %q", side)
		}
	}
	return disc, nil
}

// parseRates reads maker and taker, with rate as a shorthand for both. A
// missing side takes the other side's value.
func parseRates(maker, taker, rate string) (domain.Rates, error) {
	if rate != "" {
		if maker == "" {
			maker = rate
		}
		if taker == "" {
			taker = rate
		}
	}
	if maker == "" {
		maker = taker
	}
	if taker == "" {
		taker = maker
	}
	if maker == "" {
		return domain.Rates{}, fmt.Errorf("maker or taker rate is required")
	}

	m, err := decimal.NewFromString(maker)
	if err != nil {
		return domain.Rates{}, fmt.Errorf("maker %q: %w", maker, err)
	}
	t, err := decimal.NewFromString(taker)
	if err != nil {
		return domain.Rates{}, fmt.Errorf("taker %q: %w", taker, err)
	}
	return domain.Rates{Maker: m, Taker: t}, nil
}
