package domain

// StepKind labels a derivation trail entry.
type StepKind string

const (
	StepTier       StepKind = "tier"
	StepCustomRate StepKind = "custom_rate"
	StepModifier   StepKind = "modifier"
	StepDiscount   StepKind = "discount"
)

// TrailEntry records one step of a rate derivation.
type TrailEntry struct {
	Kind   StepKind
	Name   string
	Before Rates
	After  Rates
	Note   string
}

// Trail is the ordered, append-only explanation of a final rate.
type Trail []TrailEntry
