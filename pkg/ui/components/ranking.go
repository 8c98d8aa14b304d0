// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// RankingRow is one exchange in the ranking table.
type RankingRow struct {
	Rank        int
	Exchange    string
	AvgPrice    decimal.Decimal
	SlippageBps decimal.Decimal
	FeeUSD      decimal.Decimal
	Net         decimal.Decimal // net base received (buy) or net quote received (sell)
	NetAsset    string
	Score       decimal.Decimal
	Scored      bool
	Best        bool
}

// FailureRow is an exchange left out of the ranking.
type FailureRow struct {
	Exchange string
	Code     string
	Message  string
}

// RankingComponent renders the ranked exchanges for the latest comparison.
type RankingComponent struct {
	title    string
	rows     []RankingRow
	failures []FailureRow
}

// NewRankingComponent creates a new ranking component.
func NewRankingComponent() *RankingComponent {
	return &RankingComponent{}
}

// Update replaces the rows.
func (r *RankingComponent) Update(title string, rows []RankingRow, failures []FailureRow) {
	r.title = title
	r.rows = rows
	r.failures = failures
}

// Clear drops the current ranking.
func (r *RankingComponent) Clear() {
	r.rows = nil
	r.failures = nil
}

// View renders the ranking component.
func (r *RankingComponent) View() string {
	if len(r.rows) == 0 && len(r.failures) == 0 {
		return "Waiting for synced books..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	bestStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	failStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("RANKING " + r.title))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %-3s %-9s %14s %9s %10s %18s %14s\n",
		"#", "Exchange", "Avg price", "Slip bp", "Fee $", "Net received", "$ / unit"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 84)) + "\n")

	for _, row := range r.rows {
		score := "n/a"
		if row.Scored {
			score = row.Score.Abs().StringFixed(4)
		}
		line := fmt.Sprintf("  %-3d %-9s %14s %9s %10s %18s %14s",
			row.Rank,
			row.Exchange,
			row.AvgPrice.StringFixed(4),
			row.SlippageBps.StringFixed(2),
			row.FeeUSD.StringFixed(4),
			row.Net.StringFixed(6)+" "+row.NetAsset,
			score,
		)
		if row.Best {
			line = bestStyle.Render(line)
		}
		sb.WriteString(line + "\n")
	}

	if len(r.failures) > 0 {
		sb.WriteString("\n")
		for _, f := range r.failures {
			sb.WriteString(failStyle.Render(fmt.Sprintf("  ✗ %-9s %s", f.Exchange, f.Code)))
			sb.WriteString(dimStyle.Render("  " + f.Message))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
