package ui

import (
	execDomain "github.com/fd1az/depth-compare/business/execution/domain"
	marketDomain "github.com/fd1az/depth-compare/business/market/domain"
)

// ComparisonMsg is sent when a comparison completes.
type ComparisonMsg struct {
	Comparison *execDomain.Comparison
}

// StatusMsg carries per-exchange synchronizer health.
type StatusMsg struct {
	Statuses []marketDomain.SyncStatus
}

type ErrorMsg struct {
	Error error
}

// TickMsg drives the spinner and "updated ago" clock.
type TickMsg struct{}

// LogMsg lands in the activity feed.
type LogMsg struct {
	Level   string
	Message string
}
