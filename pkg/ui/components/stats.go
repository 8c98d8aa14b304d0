// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds statistics for display.
type Stats struct {
	Comparisons int64
	BestChanges int64
	Failures    int64
	LastBest    string
	Errors      int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	best := s.stats.LastBest
	if best == "" {
		best = "-"
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Comparisons: %s  │  Best: %s  │  Leader changes: %s  │  Exchange failures: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Comparisons)),
			valueStyle.Render(best),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.BestChanges)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Failures)),
			errorsDisplay,
		)
}
