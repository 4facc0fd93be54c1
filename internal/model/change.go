package model

import "time"

// ChangeType tags a single profile field change.
type ChangeType string

const (
	ChangeAddition     ChangeType = "ADDITION"
	ChangeModification ChangeType = "MODIFICATION"
	ChangeRemoval      ChangeType = "REMOVAL"
)

// ProfileChange is one field-level difference between two profile snapshots.
type ProfileChange struct {
	Field    string     `json:"field"`
	Type     ChangeType `json:"type"`
	Previous any        `json:"previous,omitempty"`
	Current  any        `json:"current,omitempty"`
	Weight   float64    `json:"weight"` // contribution to the aggregate score
}

// ProfileChanges aggregates a profile diff with an overall significance score
// in [0,1] that drives whether downstream pattern work is triggered.
type ProfileChanges struct {
	BusinessID        string          `json:"business_id"`
	Changes           []ProfileChange `json:"changes"`
	SignificanceScore float64         `json:"significance_score"`
	ComputedAt        time.Time       `json:"computed_at"`
}

// Significant reports whether the diff clears the given trigger threshold.
func (pc *ProfileChanges) Significant(threshold float64) bool {
	return len(pc.Changes) > 0 && pc.SignificanceScore >= threshold
}

// RegulatoryChange is an observed change to a market's export regulations.
type RegulatoryChange struct {
	ID          string    `json:"id"`
	Market      string    `json:"market"`
	Category    string    `json:"category,omitempty"`
	ChangeType  string    `json:"change_type"` // e.g. "new_requirement", "amendment", "repeal"
	Description string    `json:"description,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// RegulatoryRequirement is one requirement a market imposes on a product
// category, as supplied by the regulatory data collaborator.
type RegulatoryRequirement struct {
	Market      string `json:"market"`
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Mandatory   bool   `json:"mandatory"`
}
