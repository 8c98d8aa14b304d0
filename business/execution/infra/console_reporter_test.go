package infra

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/business/execution/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
)

func comparisonWith(order ...string) *domain.Comparison {
	pair := asset.Pair{Base: asset.BTC, Quote: asset.USDT}
	c := &domain.Comparison{
		ID:      uuid.New(),
		Request: domain.Request{Pair: pair, Side: domain.Buy, Size: decimal.NewFromInt(1), SizeAsset: domain.SizeInBase},
	}
	for i, ex := range order {
		c.Ranking.Entries = append(c.Ranking.Entries, domain.RankedEntry{
			Rank: i + 1, Exchange: ex, Scored: true, Score: decimal.NewFromInt(100),
			Breakdown: &domain.CostBreakdown{Exchange: ex, Pair: pair, Side: domain.Buy},
		})
	}
	return c
}

func TestConsoleReporter_PrintsOnOrderChange(t *testing.T) {
	var buf bytes.Buffer
	now := time.Unix(1000, 0)
	r := newConsoleReporter(&buf, time.Minute, func() time.Time { return now })

	r.Report(comparisonWith("okx", "binance"))
	first := strings.Count(buf.String(), "COMPARISON")

	r.Report(comparisonWith("okx", "binance"))
	if got := strings.Count(buf.String(), "COMPARISON"); got != first {
		t.Errorf("unchanged order printed again")
	}

	r.Report(comparisonWith("binance", "okx"))
	if got := strings.Count(buf.String(), "COMPARISON"); got != first+1 {
		t.Errorf("order change not printed, count %d", got)
	}

	now = now.Add(2 * time.Minute)
	r.Report(comparisonWith("binance", "okx"))
	if got := strings.Count(buf.String(), "COMPARISON"); got != first+2 {
		t.Errorf("interval elapsed but not printed, count %d", got)
	}
}

func TestConsoleReporter_Failures(t *testing.T) {
	var buf bytes.Buffer
	r := newConsoleReporter(&buf, 0, time.Now)

	c := comparisonWith("okx")
	c.Failures = []domain.Failure{{
		Exchange: "kraken",
		Code:     apperror.CodeInsufficientLiquidity,
		Message:  "not enough depth",
		Details:  map[string]any{"requested": "2", "available": "0.5"},
	}}
	r.Report(c)

	out := buf.String()
	if !strings.Contains(out, "kraken    INSUFFICIENT_LIQUIDITY not enough depth (available=0.5 requested=2)") {
		t.Errorf("failure line missing:\n%s", out)
	}
}

func TestConsoleReporter_UpdateStatus(t *testing.T) {
	var buf bytes.Buffer
	r := newConsoleReporter(&buf, 0, func() time.Time { return time.Unix(0, 0) })

	st := []marketDomain.SyncStatus{{Exchange: "okx", Connected: true, Watched: 1, Synced: 1}}
	r.UpdateStatus(st)
	r.UpdateStatus(st)
	if got := strings.Count(buf.String(), "okx: synced"); got != 1 {
		t.Errorf("status lines = %d, want 1", got)
	}

	r.UpdateStatus([]marketDomain.SyncStatus{{Exchange: "okx", Watched: 1, LastError: "eof"}})
	if !strings.Contains(buf.String(), "okx: disconnected (eof)") {
		t.Errorf("missing disconnect line:\n%s", buf.String())
	}
}
