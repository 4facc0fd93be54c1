// Package similarity implements multi-dimensional weighted similarity scoring
// between business profiles and between profiles and stored patterns.
package similarity

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Weights holds the per-dimension weights used by the weighted aggregate.
// Dimensions absent from both inputs are skipped and their weight excluded
// from normalization, so the aggregate is always a convex combination.
type Weights struct {
	Products       float64 `yaml:"products" mapstructure:"products"`
	Markets        float64 `yaml:"markets" mapstructure:"markets"`
	Certifications float64 `yaml:"certifications" mapstructure:"certifications"`
	Size           float64 `yaml:"size" mapstructure:"size"`
	Industry       float64 `yaml:"industry" mapstructure:"industry"`
}

// Thresholds holds the per-entity-type match thresholds.
type Thresholds struct {
	BusinessProfile   float64 `yaml:"business_profile" mapstructure:"business_profile"`
	ExportPattern     float64 `yaml:"export_pattern" mapstructure:"export_pattern"`
	RegulatoryPattern float64 `yaml:"regulatory_pattern" mapstructure:"regulatory_pattern"`
}

// Config is the immutable configuration of an Engine. Construct with
// DefaultConfig, optionally overriding fields before NewEngine; the engine
// never mutates it afterwards.
type Config struct {
	Weights    Weights    `yaml:"weights" mapstructure:"weights"`
	Thresholds Thresholds `yaml:"thresholds" mapstructure:"thresholds"`

	// NearMatchThreshold is the token-level Jaccard similarity above which a
	// string pair counts as a near match; NearMatchCredit is the fractional
	// match credit awarded for it.
	NearMatchThreshold float64 `yaml:"near_match_threshold" mapstructure:"near_match_threshold"`
	NearMatchCredit    float64 `yaml:"near_match_credit" mapstructure:"near_match_credit"`

	// DefaultRangeWidth is assumed when a size range is one-sided.
	DefaultRangeWidth float64 `yaml:"default_range_width" mapstructure:"default_range_width"`
}

// DefaultConfig returns the standard weights and thresholds.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Products:       0.30,
			Markets:        0.25,
			Certifications: 0.15,
			Size:           0.15,
			Industry:       0.15,
		},
		Thresholds: Thresholds{
			BusinessProfile:   0.7,
			ExportPattern:     0.6,
			RegulatoryPattern: 0.5,
		},
		NearMatchThreshold: 0.8,
		NearMatchCredit:    0.7,
		DefaultRangeWidth:  100,
	}
}

// Validate checks the config for internal consistency.
func (c Config) Validate() error {
	var errs []string

	weights := map[string]float64{
		"products":       c.Weights.Products,
		"markets":        c.Weights.Markets,
		"certifications": c.Weights.Certifications,
		"size":           c.Weights.Size,
		"industry":       c.Weights.Industry,
	}
	var sum float64
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weight %s must be >= 0", name))
		}
		sum += w
	}
	if sum <= 0 {
		errs = append(errs, "weights must sum to a positive number")
	}

	thresholds := map[string]float64{
		"business_profile":   c.Thresholds.BusinessProfile,
		"export_pattern":     c.Thresholds.ExportPattern,
		"regulatory_pattern": c.Thresholds.RegulatoryPattern,
	}
	for name, t := range thresholds {
		if t < 0 || t > 1 {
			errs = append(errs, fmt.Sprintf("threshold %s must be in [0,1]", name))
		}
	}

	if c.NearMatchThreshold <= 0 || c.NearMatchThreshold > 1 {
		errs = append(errs, "near_match_threshold must be in (0,1]")
	}
	if c.NearMatchCredit < 0 || c.NearMatchCredit > 1 {
		errs = append(errs, "near_match_credit must be in [0,1]")
	}
	if c.DefaultRangeWidth <= 0 {
		errs = append(errs, "default_range_width must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("similarity: invalid config: %v", errs)
	}
	return nil
}
