package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeRangeContains(t *testing.T) {
	tests := []struct {
		name string
		r    SizeRange
		n    int
		want bool
	}{
		{"inside", SizeRange{Min: 10, Max: 100}, 40, true},
		{"below min", SizeRange{Min: 10, Max: 100}, 5, false},
		{"above max", SizeRange{Min: 10, Max: 100}, 150, false},
		{"at bounds", SizeRange{Min: 10, Max: 100}, 10, true},
		{"open-ended max", SizeRange{Min: 10}, 100000, true},
		{"zero range accepts all", SizeRange{}, 7, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Contains(tt.n))
		})
	}
}

// The type constants are persisted inside stored patterns, so their wire
// values must not drift.
func TestRegulatoryPatternTypeValues(t *testing.T) {
	assert.Equal(t, RegulatoryPatternType("COMPLIANCE_BARRIER"), RegulatoryComplianceBarrier)
	assert.Equal(t, RegulatoryPatternType("HARMONIZATION"), RegulatoryHarmonization)
	assert.Equal(t, RegulatoryPatternType("CHANGE_FREQUENCY"), RegulatoryChangeFrequency)

	// Requirement records are a separate input shape, not a pattern type.
	r := RegulatoryRequirement{Market: "DE", Category: "Food", Name: "EU Organic Certificate"}
	assert.Equal(t, "DE", r.Market)
}
