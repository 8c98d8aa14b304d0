// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ExchangeStatus is one synchronizer's health.
type ExchangeStatus struct {
	Name      string
	Connected bool
	Synced    int
	Watched   int
	LastError string
}

// StatusComponent renders per-exchange synchronizer status.
type StatusComponent struct {
	exchanges []ExchangeStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{}
}

// Update updates an exchange's status.
func (s *StatusComponent) Update(status ExchangeStatus) {
	for i, ex := range s.exchanges {
		if ex.Name == status.Name {
			s.exchanges[i] = status
			return
		}
	}
	s.exchanges = append(s.exchanges, status)
}

// Get returns the status of name.
func (s *StatusComponent) Get(name string) (ExchangeStatus, bool) {
	for _, ex := range s.exchanges {
		if ex.Name == name {
			return ex, true
		}
	}
	return ExchangeStatus{}, false
}

// View renders the status line.
func (s *StatusComponent) View() string {
	if len(s.exchanges) == 0 {
		return "No exchanges"
	}

	synced := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	syncing := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	down := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	parts := make([]string, 0, len(s.exchanges))
	for _, ex := range s.exchanges {
		switch {
		case !ex.Connected:
			parts = append(parts, down.Render("○ "+ex.Name+" (down)"))
		case ex.Synced < ex.Watched:
			parts = append(parts, syncing.Render(fmt.Sprintf("◐ %s (%d/%d)", ex.Name, ex.Synced, ex.Watched)))
		default:
			parts = append(parts, synced.Render("● "+ex.Name))
		}
	}
	return strings.Join(parts, "  ")
}
