package model

import "time"

// PatternSource identifies which store a pattern was applied from.
type PatternSource string

const (
	SourceExportStrategy PatternSource = "export_strategy"
	SourceRegulatory     PatternSource = "regulatory"
)

// PatternApplication records that one pattern influenced one recommendation
// for one business. Created per recommendation cycle and persisted so the
// feedback loop can reference it later by ID.
type PatternApplication struct {
	ID               string        `json:"id"`
	BusinessID       string        `json:"business_id"`
	RecommendationID string        `json:"recommendation_id"`
	PatternID        string        `json:"pattern_id"`
	Source           PatternSource `json:"source"`

	// Confidence the pattern carried at the time it was applied.
	AppliedConfidence float64 `json:"applied_confidence"`

	Explanation string         `json:"explanation,omitempty"`
	Before      map[string]any `json:"before,omitempty"`
	After       map[string]any `json:"after,omitempty"`

	AppliedAt time.Time `json:"applied_at"`
}
