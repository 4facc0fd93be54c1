package model

// MarketRecommendation is one market suggestion produced by the upstream
// recommendation collaborator, enriched in place by the learning engine.
type MarketRecommendation struct {
	ID              string   `json:"id"`
	Market          string   `json:"market"`
	Score           float64  `json:"score"`
	Rationale       []string `json:"rationale,omitempty"`
	EntryStrategy   string   `json:"entry_strategy,omitempty"`
	EstimatedDays   int      `json:"estimated_days,omitempty"`
	SuccessFactors  []string `json:"success_factors,omitempty"`
	KnownChallenges []string `json:"known_challenges,omitempty"`
}

// ComplianceRecommendation is one compliance suggestion for a market and
// product category.
type ComplianceRecommendation struct {
	ID             string   `json:"id"`
	Market         string   `json:"market"`
	Category       string   `json:"category,omitempty"`
	Requirements   []string `json:"requirements,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Mitigations    []string `json:"mitigations,omitempty"`
}
