package model

import "time"

// PatternKind discriminates the two stored pattern shapes.
type PatternKind string

const (
	PatternKindExportStrategy PatternKind = "export_strategy"
	PatternKindRegulatory     PatternKind = "regulatory"
)

// ExportPatternType classifies export-strategy patterns.
type ExportPatternType string

const (
	ExportPatternOutcome     ExportPatternType = "outcome" // learned from a single outcome
	ExportPatternMarket      ExportPatternType = "meta_market"
	ExportPatternCategory    ExportPatternType = "meta_category"
	ExportPatternSizeBucket  ExportPatternType = "meta_size"
	ExportPatternCrossMarket ExportPatternType = "meta_cross_market"
)

// RegulatoryPatternType classifies regulatory patterns.
type RegulatoryPatternType string

const (
	RegulatoryComplianceBarrier RegulatoryPatternType = "COMPLIANCE_BARRIER"
	RegulatoryHarmonization     RegulatoryPatternType = "HARMONIZATION"
	RegulatoryChangeFrequency   RegulatoryPatternType = "CHANGE_FREQUENCY"
)

// SizeRange bounds business headcount applicability. Zero Max means open-ended.
type SizeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether n falls inside the range.
func (r SizeRange) Contains(n int) bool {
	if n < r.Min {
		return false
	}
	if r.Max > 0 && n > r.Max {
		return false
	}
	return true
}

// FeedbackRecord is one piece of user feedback attached to a pattern.
type FeedbackRecord struct {
	ApplicationID string    `json:"application_id"`
	Helpful       bool      `json:"helpful"`
	Details       string    `json:"details,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// PatternCore carries the fields shared by both pattern kinds: identity,
// applicability, efficacy statistics, evidence and lifecycle state.
//
// Invariants: Confidence and SuccessRate stay within [0,1];
// ApplicationCount never decreases; once Archived is set the pattern is
// never mutated again and never returned by lookups.
type PatternCore struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Applicability.
	ProductCategories []string  `json:"product_categories,omitempty"`
	Markets           []string  `json:"markets,omitempty"`
	BusinessSize      SizeRange `json:"business_size"`
	HSCodePatterns    []string  `json:"hs_code_patterns,omitempty"`

	// Efficacy statistics.
	Confidence       float64 `json:"confidence"`
	SuccessRate      float64 `json:"success_rate"`
	ApplicationCount int     `json:"application_count"`

	// Evidence (bounded top-N lists).
	SuccessFactors []string `json:"success_factors,omitempty"`
	Challenges     []string `json:"challenges,omitempty"`
	Certifications []string `json:"certifications,omitempty"`

	Feedback []FeedbackRecord `json:"feedback,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
	LastUpdated  time.Time `json:"last_updated"`

	// Lifecycle. MergedInto is set once, when the pattern is archived as
	// part of a merge, and is terminal.
	Archived   bool   `json:"archived"`
	MergedInto string `json:"merged_into,omitempty"`

	// Version supports optimistic concurrency at the repository boundary.
	Version int `json:"version"`
}

// ExportStrategyPattern is a learned "what worked" hypothesis for exporting.
type ExportStrategyPattern struct {
	PatternCore

	PatternType        ExportPatternType `json:"pattern_type"`
	GroupKey           string            `json:"group_key,omitempty"` // stable meta-pattern identity
	EntryStrategy      string            `json:"entry_strategy,omitempty"`
	ComplianceApproach string            `json:"compliance_approach,omitempty"`
	LogisticsModel     string            `json:"logistics_model,omitempty"`

	// Timeline statistics in days, maintained as running mean / extremes.
	TimelineAvgDays float64 `json:"timeline_avg_days,omitempty"`
	TimelineMinDays int     `json:"timeline_min_days,omitempty"`
	TimelineMaxDays int     `json:"timeline_max_days,omitempty"`
}

// Kind implements Pattern.
func (p *ExportStrategyPattern) Kind() PatternKind { return PatternKindExportStrategy }

// Core implements Pattern.
func (p *ExportStrategyPattern) Core() *PatternCore { return &p.PatternCore }

// RegulatoryPattern captures recurring regulatory structure: compliance
// barriers, market harmonization, change cadence.
type RegulatoryPattern struct {
	PatternCore

	PatternType RegulatoryPatternType `json:"pattern_type"`
	Domain      string                `json:"domain,omitempty"` // e.g. "certification", "labeling"
	GroupKey    string                `json:"group_key,omitempty"`

	// Barrier patterns: mitigation advice keyed by challenge keyword category.
	Mitigations map[string]string `json:"mitigations,omitempty"`

	// Harmonization patterns: the pair of markets and validated categories.
	HarmonizedMarkets    []string `json:"harmonized_markets,omitempty"`
	HarmonizedCategories []string `json:"harmonized_categories,omitempty"`

	// Change-frequency patterns.
	ChangeFrequency string   `json:"change_frequency,omitempty"` // frequent / moderate / infrequent
	ModalChangeType string   `json:"modal_change_type,omitempty"`
	PeakMonths      []string `json:"peak_months,omitempty"`
}

// Kind implements Pattern.
func (p *RegulatoryPattern) Kind() PatternKind { return PatternKindRegulatory }

// Core implements Pattern.
func (p *RegulatoryPattern) Core() *PatternCore { return &p.PatternCore }

// Pattern is the tagged union over the two stored pattern shapes.
type Pattern interface {
	Kind() PatternKind
	Core() *PatternCore
}
