package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/depth-compare/internal/apperror"
)

// RankedEntry is one exchange's place in a ranking.
type RankedEntry struct {
	Rank      int
	Exchange  string
	Score     decimal.Decimal
	Scored    bool
	Breakdown *CostBreakdown
}

// Ranking orders breakdowns best first.
type Ranking struct {
	Side    Side
	Entries []RankedEntry
}

// Best returns the top scored entry.
func (r Ranking) Best() (RankedEntry, bool) {
	if len(r.Entries) == 0 || !r.Entries[0].Scored {
		return RankedEntry{}, false
	}
	return r.Entries[0], true
}

// Failure is an exchange that could not be simulated, with the structured
// reason.
type Failure struct {
	Exchange string
	Code     apperror.Code
	Message  string
	Details  map[string]any
}

// Comparison is one full run across every ready exchange.
type Comparison struct {
	ID         uuid.UUID
	Request    Request
	TickSize   decimal.Decimal
	Breakdowns []*CostBreakdown
	Failures   []Failure
	Ranking    Ranking
	At         time.Time
}
