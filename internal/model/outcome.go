package model

import "time"

// ExportOutcome is a write-once record of one completed export attempt.
// Outcomes are the source of truth for pattern learning and are never mutated.
type ExportOutcome struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Market     string `json:"market"` // ISO country code

	Products           []Product `json:"products"`
	BusinessSize       int       `json:"business_size"` // headcount at time of attempt
	EntryStrategy      string    `json:"entry_strategy"`
	ComplianceApproach string    `json:"compliance_approach,omitempty"`
	LogisticsModel     string    `json:"logistics_model,omitempty"`

	Successful     bool     `json:"successful"`
	TimelineDays   int      `json:"timeline_days,omitempty"`
	Challenges     []string `json:"challenges,omitempty"`
	SuccessFactors []string `json:"success_factors,omitempty"`
	ROI            float64  `json:"roi,omitempty"`

	RecordedAt time.Time `json:"recorded_at"`
}

// ProductCategories returns the distinct product categories of the outcome.
func (o *ExportOutcome) ProductCategories() []string {
	seen := make(map[string]struct{}, len(o.Products))
	var cats []string
	for _, p := range o.Products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		cats = append(cats, p.Category)
	}
	return cats
}

// SizeBucket classifies a headcount into the standard business-size buckets.
type SizeBucket string

const (
	SizeMicro  SizeBucket = "micro"  // <10
	SizeSmall  SizeBucket = "small"  // 10-49
	SizeMedium SizeBucket = "medium" // 50-249
	SizeLarge  SizeBucket = "large"  // >=250
)

// BucketForSize maps a headcount to its SizeBucket.
func BucketForSize(n int) SizeBucket {
	switch {
	case n < 10:
		return SizeMicro
	case n < 50:
		return SizeSmall
	case n < 250:
		return SizeMedium
	default:
		return SizeLarge
	}
}

// RangeForBucket returns the headcount range a bucket covers.
func RangeForBucket(b SizeBucket) SizeRange {
	switch b {
	case SizeMicro:
		return SizeRange{Min: 0, Max: 9}
	case SizeSmall:
		return SizeRange{Min: 10, Max: 49}
	case SizeMedium:
		return SizeRange{Min: 50, Max: 249}
	default:
		return SizeRange{Min: 250, Max: 0}
	}
}
