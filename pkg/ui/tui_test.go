package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	execDomain "github.com/fd1az/depth-compare/business/execution/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/internal/apperror"
	"github.com/fd1az/depth-compare/internal/asset"
)

func comparison(best string) *execDomain.Comparison {
	pair := asset.Pair{Base: asset.BTC, Quote: asset.USDT}
	entry := func(rank int, ex, score string) execDomain.RankedEntry {
		return execDomain.RankedEntry{
			Rank: rank, Exchange: ex, Scored: true,
			Score: decimal.RequireFromString(score),
			Breakdown: &execDomain.CostBreakdown{
				Exchange:        ex,
				Pair:            pair,
				Side:            execDomain.Buy,
				AveragePrice:    decimal.RequireFromString("100.5"),
				NetBaseReceived: decimal.RequireFromString("1.998"),
				Slippage:        execDomain.Slippage{Rate: decimal.RequireFromString("0.005")},
			},
		}
	}
	other := "okx"
	if best == "okx" {
		other = "binance"
	}
	return &execDomain.Comparison{
		Ranking: execDomain.Ranking{
			Side:    execDomain.Buy,
			Entries: []execDomain.RankedEntry{entry(1, best, "100.6"), entry(2, other, "100.7")},
		},
		Failures: []execDomain.Failure{{Exchange: "kraken", Code: apperror.CodeInsufficientLiquidity, Message: "not enough depth"}},
	}
}

func TestRankingRows(t *testing.T) {
	rows, failures := rankingRows(comparison("binance"))
	if len(rows) != 2 || !rows[0].Best || rows[1].Best {
		t.Fatalf("rows = %+v", rows)
	}
	if !rows[0].SlippageBps.Equal(decimal.NewFromInt(50)) {
		t.Errorf("slippage bps = %s, want 50", rows[0].SlippageBps)
	}
	if rows[0].NetAsset != "BTC" {
		t.Errorf("net asset = %s, want BTC", rows[0].NetAsset)
	}
	if len(failures) != 1 || failures[0].Code != "INSUFFICIENT_LIQUIDITY" {
		t.Errorf("failures = %+v", failures)
	}
}

func TestModel_TracksLeaderChanges(t *testing.T) {
	var m tea.Model = New("buy 2 BTC on BTC-USDT", []string{"binance", "okx"})

	m, _ = m.Update(StatusMsg{Statuses: []marketDomain.SyncStatus{
		{Exchange: "binance", Connected: true, Watched: 1, Synced: 1},
	}})
	if got := m.(Model).startupSteps["binance"].Status; got != "connected" {
		t.Errorf("binance step = %s, want connected", got)
	}

	m, _ = m.Update(ComparisonMsg{Comparison: comparison("binance")})
	m, _ = m.Update(ComparisonMsg{Comparison: comparison("okx")})

	model := m.(Model)
	if model.phase != PhaseDashboard {
		t.Errorf("phase = %s, want dashboard", model.phase)
	}
	stats := model.stats.Stats()
	if stats.Comparisons != 2 || stats.BestChanges != 1 || stats.LastBest != "okx" {
		t.Errorf("stats = %+v", stats)
	}
	if !strings.Contains(model.View(), "OKX") {
		t.Error("dashboard should show the best exchange breakdown")
	}
}

func TestModel_PauseFreezesRanking(t *testing.T) {
	var m tea.Model = New("buy 1 BTC on BTC-USDT", []string{"binance"})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}) // leave welcome
	m, _ = m.Update(ComparisonMsg{Comparison: comparison("binance")})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m, _ = m.Update(ComparisonMsg{Comparison: comparison("okx")})

	model := m.(Model)
	if !model.paused {
		t.Fatal("expected paused")
	}
	if !strings.Contains(model.breakdown.View(), "BINANCE") {
		t.Error("paused view should keep the previous best")
	}
	if model.stats.Stats().Comparisons != 2 {
		t.Error("stats keep counting while paused")
	}
}
