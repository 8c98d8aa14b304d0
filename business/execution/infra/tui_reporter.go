package infra

import (
	"context"

	"github.com/fd1az/depth-compare/business/execution/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
	"github.com/fd1az/depth-compare/pkg/ui"
)

// TUIReporter forwards comparisons to the Bubble Tea program. The program
// itself is owned by main.
type TUIReporter struct{}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start initializes the TUI reporter.
func (r *TUIReporter) Start(ctx context.Context) error {
	ui.Send(ui.LogMsg{Level: "info", Message: "comparator started"})
	return nil
}

// Report sends a comparison to the TUI.
func (r *TUIReporter) Report(c *domain.Comparison) {
	ui.Send(ui.ComparisonMsg{Comparison: c})
}

// UpdateStatus sends synchronizer health to the TUI.
func (r *TUIReporter) UpdateStatus(statuses []marketDomain.SyncStatus) {
	ui.Send(ui.StatusMsg{Statuses: statuses})
}

// Stop is a no-op; main quits the program.
func (r *TUIReporter) Stop() error {
	return nil
}
