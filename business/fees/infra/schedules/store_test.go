package schedules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/fees/app"
	"github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
)

func TestStore_LoadsBuiltInSchedules(t *testing.T) {
	store := NewStore("")
	exchanges := []string{"binance", "bybit", "okx", "kraken"}
	if err := store.LoadAll(exchanges); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}

	for _, ex := range exchanges {
		s, err := store.Schedule(ex)
		if err != nil {
			t.Fatalf("Schedule(%s) error = %v", ex, err)
		}
		if s.Exchange != ex {
			t.Errorf("Schedule(%s).Exchange = %s", ex, s.Exchange)
		}
		if _, ok := s.Tier(""); !ok {
			t.Errorf("%s: default tier %q missing", ex, s.DefaultTier)
		}
	}
}

func TestStore_BinanceBNBDiscount(t *testing.T) {
	store := NewStore("")
	if err := store.LoadAll([]string{"binance"}); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	s, _ := store.Schedule("binance")

	res, err := app.NewEngine().Evaluate(s, app.EvalContext{
		Pair:          asset.NewPair("BTC", "USDT"),
		ExecutionType: domain.Taker,
		FeeAsset:      asset.BNB,
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if want := decimal.RequireFromString("0.00075"); !res.FinalRates.Taker.Equal(want) {
		t.Errorf("taker = %s, want %s", res.FinalRates.Taker, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
		check   func(t *testing.T, s *domain.Schedule)
	}{
		{
			name: "full document",
			doc: `
exchange: Test
version: "3"
default_tier: vip1
tiers:
  - {name: regular, maker: "0.001", taker: "0.002"}
  - {name: vip1, taker: "0.0005"}
modifiers:
  - name: promo
    match:
      quote_assets: [usdc]
      pairs: [btc-usdc]
      pair_pattern: "btc-*"
      execution_types: [Taker]
    effect:
      type: add
      rate: "-0.0001"
    stacking:
      with_discounts: false
  - name: per-tier
    effect:
      type: override_per_tier
      per_tier:
        - {name: vip1, maker: "0", taker: "0.0001"}
discount:
  required_fee_asset: bnb
  type: percentage
  value: "20"
  applies_to: [taker]
`,
			check: func(t *testing.T, s *domain.Schedule) {
				if s.Exchange != "test" || s.Version != "3" || s.DefaultTier != "vip1" {
					t.Errorf("header = %s %s %s", s.Exchange, s.Version, s.DefaultTier)
				}
				vip, _ := s.Tier("vip1")
				if !vip.Rates.Maker.Equal(decimal.RequireFromString("0.0005")) {
					t.Errorf("vip1 maker = %s, want taker value", vip.Rates.Maker)
				}
				promo := s.Modifiers[0]
				if promo.Match.QuoteAssets[0] != asset.USDC || promo.Match.Pairs[0] != asset.NewPair("BTC", "USDC") {
					t.Errorf("promo match = %+v", promo.Match)
				}
				if promo.Match.PairPattern != "BTC-*" || promo.Match.ExecutionTypes[0] != domain.Taker {
					t.Errorf("promo pattern/exec = %q %v", promo.Match.PairPattern, promo.Match.ExecutionTypes)
				}
				if !promo.Effect.Taker.Equal(decimal.RequireFromString("-0.0001")) {
					t.Errorf("promo taker effect = %s", promo.Effect.Taker)
				}
				if promo.Stacking.WithDiscounts || !promo.Stacking.WithOtherModifiers || promo.Stacking.Exclusive {
					t.Errorf("promo stacking = %+v", promo.Stacking)
				}
				if _, ok := s.Modifiers[1].Effect.PerTier["vip1"]; !ok {
					t.Errorf("per-tier table missing vip1")
				}
				if s.Discount == nil || s.Discount.RequiredFeeAsset != asset.BNB ||
					s.Discount.AppliesToMaker || !s.Discount.AppliesToTaker ||
					s.Discount.Order != domain.AfterModifiers {
					t.Errorf("discount = %+v", s.Discount)
				}
			},
		},
		{
			name:    "unknown default tier",
			doc:     "exchange: x\ndefault_tier: gold\ntiers:\n  - {name: regular, taker: \"0.001\"}\n",
			wantErr: true,
		},
		{
			name:    "unknown effect",
			doc:     "exchange: x\ntiers:\n  - {name: regular, taker: \"0.001\"}\nmodifiers:\n  - name: m\n    effect: {type: divide, rate: \"2\"}\n",
			wantErr: true,
		},
		{
			name:    "bad rate",
			doc:     "exchange: x\ntiers:\n  - {name: regular, taker: \"ten\"}\n",
			wantErr: true,
		},
		{
			name:    "discount over 100 percent",
			doc:     "exchange: x\ntiers:\n  - {name: regular, taker: \"0.001\"}\ndiscount: {required_fee_asset: BNB, type: percentage, value: \"120\"}\n",
			wantErr: true,
		},
		{
			name:    "no tiers",
			doc:     "exchange: x\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestStore_Directory(t *testing.T) {
	dir := t.TempDir()
	doc := "exchange: binance\ntiers:\n  - {name: custom, maker: \"0.0001\", taker: \"0.0002\"}\n"
	if err := os.WriteFile(filepath.Join(dir, "binance.yaml"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "okx.yaml"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir)
	if err := store.LoadAll([]string{"binance"}); err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	s, _ := store.Schedule("binance")
	if s.DefaultTier != "custom" {
		t.Errorf("DefaultTier = %s, want custom", s.DefaultTier)
	}

	err := NewStore(dir).LoadAll([]string{"kraken"})
	if !errors.Is(err, apperror.New(apperror.CodeFeeScheduleNotFound)) {
		t.Errorf("missing file error = %v, want FEE_SCHEDULE_NOT_FOUND", err)
	}

	err = NewStore(dir).LoadAll([]string{"okx"})
	if !errors.Is(err, apperror.New(apperror.CodeFeeScheduleInvalid)) {
		t.Errorf("mismatched exchange error = %v, want FEE_SCHEDULE_INVALID", err)
	}

	if _, err := store.Schedule("bybit"); !errors.Is(err, apperror.New(apperror.CodeFeeScheduleNotFound)) {
		t.Errorf("unloaded schedule error = %v", err)
	}
}
