// Package postgres persists comparisons for later audit.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/execution/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS comparisons (
	id            UUID PRIMARY KEY,
	created_at    TIMESTAMPTZ NOT NULL,
	pair          TEXT NOT NULL,
	side          TEXT NOT NULL,
	size          NUMERIC NOT NULL,
	size_asset    TEXT NOT NULL,
	reference     TEXT NOT NULL,
	tick_size     NUMERIC NOT NULL,
	best_exchange TEXT,
	ranking       JSONB NOT NULL,
	failures      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS comparisons_created_at_idx ON comparisons (created_at DESC);
`

const insertComparison = `
INSERT INTO comparisons
	(id, created_at, pair, side, size, size_asset, reference, tick_size, best_exchange, ranking, failures)
VALUES
	($1::uuid, $2, $3, $4, $5::numeric, $6, $7, $8::numeric, $9, $10::jsonb, $11::jsonb)
ON CONFLICT (id) DO NOTHING`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditStore writes comparisons to the comparisons table.
type AuditStore struct {
	db DB
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// EnsureSchema creates the comparisons table if needed.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return apperror.New(apperror.CodeAuditWriteFailed,
			apperror.WithCause(err),
			apperror.WithContext("create comparisons schema"))
	}
	return nil
}

// Save inserts c. Saving the same comparison twice is a no-op.
func (s *AuditStore) Save(ctx context.Context, c *domain.Comparison) error {
	args, err := insertArgs(c)
	if err != nil {
		return apperror.New(apperror.CodeAuditWriteFailed, apperror.WithCause(err), apperror.WithContext(c.ID.String()))
	}
	if _, err := s.db.Exec(ctx, insertComparison, args...); err != nil {
		return apperror.New(apperror.CodeAuditWriteFailed, apperror.WithCause(err), apperror.WithContext(c.ID.String()))
	}
	return nil
}

type trailRecord struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Before string `json:"before"`
	After  string `json:"after"`
	Note   string `json:"note,omitempty"`
}

type entryRecord struct {
	Rank           int             `json:"rank"`
	Exchange       string          `json:"exchange"`
	Scored         bool            `json:"scored"`
	Score          decimal.Decimal `json:"score"`
	ExecutedBase   decimal.Decimal `json:"executed_base"`
	ExecutedQuote  decimal.Decimal `json:"executed_quote"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Levels         int             `json:"levels"`
	SlippageRate   decimal.Decimal `json:"slippage_rate"`
	SlippageUSD    decimal.Decimal `json:"slippage_usd"`
	FeeRate        decimal.Decimal `json:"fee_rate"`
	FeeAsset       string          `json:"fee_asset"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	FeeUSD         decimal.Decimal `json:"fee_usd"`
	FeeThirdAsset  bool            `json:"fee_third_asset,omitempty"`
	FeeTrail       []trailRecord   `json:"fee_trail"`
	NetBase        decimal.Decimal `json:"net_base_received"`
	NetQuote       decimal.Decimal `json:"net_quote_received"`
	QuoteSpent     decimal.Decimal `json:"quote_spent"`
	BaseSold       decimal.Decimal `json:"base_sold"`
	QuoteUSD       decimal.Decimal `json:"quote_usd"`
	NotionalUSD    decimal.Decimal `json:"notional_usd"`
	SpentUSD       decimal.Decimal `json:"spent_usd"`
	ReceivedUSD    decimal.Decimal `json:"received_usd"`
}

type failureRecord struct {
	Exchange string         `json:"exchange"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

func insertArgs(c *domain.Comparison) ([]any, error) {
	entries := make([]entryRecord, 0, len(c.Ranking.Entries))
	for _, e := range c.Ranking.Entries {
		entries = append(entries, toEntryRecord(e))
	}
	failures := make([]failureRecord, 0, len(c.Failures))
	for _, f := range c.Failures {
		failures = append(failures, failureRecord{
			Exchange: f.Exchange,
			Code:     string(f.Code),
			Message:  f.Message,
			Details:  f.Details,
		})
	}

	ranking, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal ranking: %w", err)
	}
	failed, err := json.Marshal(failures)
	if err != nil {
		return nil, fmt.Errorf("marshal failures: %w", err)
	}

	var best *string
	if b, ok := c.Ranking.Best(); ok {
		best = &b.Exchange
	}

	return []any{
		c.ID.String(),
		c.At,
		c.Request.Pair.String(),
		string(c.Request.Side),
		c.Request.Size.String(),
		string(c.Request.SizeAsset),
		string(c.Request.Reference),
		c.TickSize.String(),
		best,
		string(ranking),
		string(failed),
	}, nil
}

func toEntryRecord(e domain.RankedEntry) entryRecord {
	b := e.Breakdown
	r := entryRecord{
		Rank:           e.Rank,
		Exchange:       e.Exchange,
		Scored:         e.Scored,
		Score:          e.Score,
		ExecutedBase:   b.ExecutedBase,
		ExecutedQuote:  b.ExecutedQuote,
		AveragePrice:   b.AveragePrice,
		ReferencePrice: b.ReferencePrice,
		Levels:         b.LevelsConsumed,
		SlippageRate:   b.Slippage.Rate,
		SlippageUSD:    b.Slippage.USD,
		FeeRate:        b.Fee.Rate,
		FeeAsset:       b.Fee.Asset.String(),
		FeeAmount:      b.Fee.Amount,
		FeeUSD:         b.Fee.USD,
		FeeThirdAsset:  b.Fee.ThirdAsset,
		FeeTrail:       make([]trailRecord, 0, len(b.Fee.Trail)),
		NetBase:        b.NetBaseReceived,
		NetQuote:       b.NetQuoteReceived,
		QuoteSpent:     b.QuoteSpent,
		BaseSold:       b.BaseSold,
		QuoteUSD:       b.QuoteUSD,
		NotionalUSD:    b.Totals.NotionalUSD,
		SpentUSD:       b.Totals.SpentUSD,
		ReceivedUSD:    b.Totals.ReceivedUSD,
	}
	for _, s := range b.Fee.Trail {
		r.FeeTrail = append(r.FeeTrail, trailRecord{
			Kind:   string(s.Kind),
			Name:   s.Name,
			Before: s.Before.String(),
			After:  s.After.String(),
			Note:   s.Note,
		})
	}
	return r
}
