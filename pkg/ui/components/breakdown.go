// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FeeStep is one line of the fee derivation trail.
type FeeStep struct {
	Kind   string
	Name   string
	Before string
	After  string
}

// Breakdown holds the best exchange's cost figures, already formatted by
// the caller.
type Breakdown struct {
	Exchange       string
	Executed       string
	AvgPrice       string
	ReferencePrice string
	Levels         int
	Slippage       string
	Fee            string
	Net            string
	Notional       string
	FeeSteps       []FeeStep
}

// BreakdownComponent renders the cost breakdown of the best exchange.
type BreakdownComponent struct {
	breakdown *Breakdown
}

// NewBreakdownComponent creates a new breakdown component.
func NewBreakdownComponent() *BreakdownComponent {
	return &BreakdownComponent{}
}

// Set replaces the breakdown. nil clears it.
func (p *BreakdownComponent) Set(b *Breakdown) {
	p.breakdown = b
}

// View renders the breakdown component.
func (p *BreakdownComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	if p.breakdown == nil {
		return headerStyle.Render("BEST EXECUTION") + "\n\n" + dimStyle.Render("  Waiting for cost analysis...")
	}
	b := p.breakdown

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("BEST EXECUTION: " + strings.ToUpper(b.Exchange)))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  Executed:   %s\n", b.Executed))
	sb.WriteString(fmt.Sprintf("  Avg price:  %s  (ref %s, %d levels)\n", b.AvgPrice, dimStyle.Render(b.ReferencePrice), b.Levels))
	sb.WriteString(fmt.Sprintf("  Notional:   %s\n", b.Notional))
	sb.WriteString(fmt.Sprintf("  Slippage:   %s\n", warnStyle.Render(b.Slippage)))
	sb.WriteString(fmt.Sprintf("  Fee:        %s\n", warnStyle.Render(b.Fee)))
	sb.WriteString(fmt.Sprintf("  Net:        %s\n", b.Net))

	if len(b.FeeSteps) > 0 {
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("  " + strings.Repeat("─", 40)))
		sb.WriteString("\n")
		sb.WriteString(headerStyle.Render("  FEE DERIVATION"))
		sb.WriteString("\n")
		for _, s := range b.FeeSteps {
			sb.WriteString(fmt.Sprintf("  %-11s %-22s %s → %s\n", s.Kind, s.Name, dimStyle.Render(s.Before), s.After))
		}
	}
	return sb.String()
}
