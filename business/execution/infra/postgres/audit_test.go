package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/execution/domain"
	feesDomain "github.com/fd1az/depth-compare/business/fees/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
)

type fakeDB struct {
	sql  []string
	args [][]any
	err  error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.CommandTag{}, f.err
}

func testComparison() *domain.Comparison {
	pair := asset.Pair{Base: asset.BTC, Quote: asset.USDT}
	return &domain.Comparison{
		ID: uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2"),
		Request: domain.Request{
			Pair: pair, Side: domain.Buy, Size: decimal.RequireFromString("2"),
			SizeAsset: domain.SizeInBase, Reference: domain.ReferenceBest,
		},
		TickSize: decimal.RequireFromString("0.1"),
		Ranking: domain.Ranking{Side: domain.Buy, Entries: []domain.RankedEntry{{
			Rank: 1, Exchange: "okx", Scored: true, Score: decimal.RequireFromString("100.58"),
			Breakdown: &domain.CostBreakdown{
				Exchange:        "okx",
				Pair:            pair,
				Side:            domain.Buy,
				AveragePrice:    decimal.RequireFromString("100.5"),
				NetBaseReceived: decimal.RequireFromString("1.9984"),
				Fee: domain.FeeCharge{
					Rate:  decimal.RequireFromString("0.0008"),
					Asset: asset.BTC,
					Trail: feesDomain.Trail{{Kind: feesDomain.StepTier, Name: "lv1"}},
				},
			},
		}}},
		Failures: []domain.Failure{{
			Exchange: "kraken",
			Code:     apperror.CodeInsufficientLiquidity,
			Message:  "insufficient liquidity",
			Details:  map[string]any{"available": "0.5"},
		}},
		At: time.Unix(1700000000, 0).UTC(),
	}
}

func TestAuditStore_Save(t *testing.T) {
	db := &fakeDB{}
	store := NewAuditStore(db)

	if err := store.Save(context.Background(), testComparison()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(db.args) != 1 || !strings.Contains(db.sql[0], "INSERT INTO comparisons") {
		t.Fatalf("unexpected exec calls: %v", db.sql)
	}

	args := db.args[0]
	if args[0] != "7d444840-9dc0-11d1-b245-5ffdce74fad2" {
		t.Errorf("id = %v", args[0])
	}
	if args[2] != "BTC-USDT" || args[4] != "2" || args[7] != "0.1" {
		t.Errorf("pair/size/tick = %v %v %v", args[2], args[4], args[7])
	}
	if best, ok := args[8].(*string); !ok || best == nil || *best != "okx" {
		t.Errorf("best = %v, want okx", args[8])
	}

	var ranking []map[string]any
	if err := json.Unmarshal([]byte(args[9].(string)), &ranking); err != nil {
		t.Fatalf("ranking json: %v", err)
	}
	if ranking[0]["exchange"] != "okx" || ranking[0]["fee_rate"] != "0.0008" {
		t.Errorf("ranking = %v", ranking[0])
	}
	if trail := ranking[0]["fee_trail"].([]any); len(trail) != 1 {
		t.Errorf("fee trail = %v", trail)
	}

	var failures []map[string]any
	if err := json.Unmarshal([]byte(args[10].(string)), &failures); err != nil {
		t.Fatalf("failures json: %v", err)
	}
	if failures[0]["code"] != "INSUFFICIENT_LIQUIDITY" {
		t.Errorf("failures = %v", failures)
	}
}

func TestAuditStore_NoBestIsNull(t *testing.T) {
	db := &fakeDB{}
	c := testComparison()
	c.Ranking.Entries = nil

	if err := NewAuditStore(db).Save(context.Background(), c); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if best := db.args[0][8].(*string); best != nil {
		t.Errorf("best = %v, want nil", *best)
	}
}

func TestAuditStore_WriteFailure(t *testing.T) {
	db := &fakeDB{err: errors.New("connection refused")}
	store := NewAuditStore(db)

	err := store.Save(context.Background(), testComparison())
	if got := apperror.GetCode(err); got != apperror.CodeAuditWriteFailed {
		t.Errorf("code = %s, want AUDIT_WRITE_FAILED", got)
	}
	if err := store.EnsureSchema(context.Background()); apperror.GetCode(err) != apperror.CodeAuditWriteFailed {
		t.Errorf("EnsureSchema() error = %v", err)
	}
}
