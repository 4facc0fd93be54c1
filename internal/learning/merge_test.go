package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/pattern"
)

func exportPattern(id string, count int, rate float64) *model.ExportStrategyPattern {
	return &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:               id,
			Markets:          []string{"DE"},
			BusinessSize:     model.SizeRange{Min: 20, Max: 60},
			ApplicationCount: count,
			SuccessRate:      rate,
			Confidence:       pattern.CalculateConfidence(rate, count),
		},
		PatternType:   model.ExportPatternOutcome,
		EntryStrategy: "distributor",
	}
}

func TestMergeExportStrategyPatterns(t *testing.T) {
	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	primary := exportPattern("p-1", 10, 0.7)
	primary.SuccessFactors = []string{"local partner", "trade fair"}
	primary.TimelineMinDays = 90
	primary.TimelineMaxDays = 150

	member := exportPattern("p-2", 5, 0.6)
	member.Markets = []string{"DE", "AT"}
	member.BusinessSize = model.SizeRange{Min: 10, Max: 80}
	member.SuccessFactors = []string{"local partner"}
	member.TimelineMinDays = 60
	member.TimelineMaxDays = 120

	merged := MergeExportStrategyPatterns(primary, []*model.ExportStrategyPattern{member}, now)

	assert.Equal(t, 15, merged.ApplicationCount)
	assert.InDelta(t, (0.7*10+0.6*5)/15, merged.SuccessRate, 0.001)
	assert.ElementsMatch(t, []string{"DE", "AT"}, merged.Markets)
	assert.Equal(t, model.SizeRange{Min: 10, Max: 80}, merged.BusinessSize)
	assert.Equal(t, 60, merged.TimelineMinDays)
	assert.Equal(t, 150, merged.TimelineMaxDays)
	// "local partner" appears in both lists and ranks first.
	assert.Equal(t, "local partner", merged.SuccessFactors[0])
	assert.InDelta(t, pattern.CalculateConfidence(merged.SuccessRate, 15), merged.Confidence, 0.001)
	assert.Equal(t, now, merged.LastUpdated)

	// Inputs stay untouched.
	assert.Equal(t, 10, primary.ApplicationCount)
	assert.Equal(t, 5, member.ApplicationCount)
}

func TestMergeExportStrategyPatternsDedupsEvidenceVariants(t *testing.T) {
	primary := exportPattern("p-1", 10, 0.7)
	primary.SuccessFactors = []string{"Local partner", "trade fair"}

	member := exportPattern("p-2", 5, 0.6)
	member.SuccessFactors = []string{"local partner"}

	merged := MergeExportStrategyPatterns(primary, []*model.ExportStrategyPattern{member}, time.Now())

	// Casing variants collapse to one entry keeping the first spelling.
	assert.Equal(t, []string{"Local partner", "trade fair"}, merged.SuccessFactors)
}

func TestMergeExportStrategyPatternsOpenEndedRange(t *testing.T) {
	primary := exportPattern("p-1", 3, 1.0)
	member := exportPattern("p-2", 2, 1.0)
	member.BusinessSize = model.SizeRange{Min: 250, Max: 0}

	merged := MergeExportStrategyPatterns(primary, []*model.ExportStrategyPattern{member}, time.Now())
	assert.Equal(t, 0, merged.BusinessSize.Max) // open-ended wins
	assert.Equal(t, 20, merged.BusinessSize.Min)
}

func TestMergeRegulatoryPatterns(t *testing.T) {
	now := time.Now()

	primary := &model.RegulatoryPattern{
		PatternCore: model.PatternCore{
			ID:               "r-1",
			Markets:          []string{"DE"},
			ApplicationCount: 4,
			SuccessRate:      0,
		},
		PatternType: model.RegulatoryComplianceBarrier,
		Domain:      "compliance",
		Mitigations: map[string]string{"customs": "engage a customs broker"},
	}
	member := &model.RegulatoryPattern{
		PatternCore: model.PatternCore{
			ID:               "r-2",
			Markets:          []string{"DE"},
			ApplicationCount: 2,
			SuccessRate:      0,
		},
		PatternType: model.RegulatoryComplianceBarrier,
		Domain:      "compliance",
		Mitigations: map[string]string{
			"customs":  "different advice ignored",
			"labeling": "localize labeling",
		},
	}

	merged := MergeRegulatoryPatterns(primary, []*model.RegulatoryPattern{member}, now)

	assert.Equal(t, 6, merged.ApplicationCount)
	// Primary's mitigation wins on key collision; new keys union in.
	assert.Equal(t, "engage a customs broker", merged.Mitigations["customs"])
	assert.Equal(t, "localize labeling", merged.Mitigations["labeling"])
	// Primary's map must not be mutated.
	assert.NotContains(t, primary.Mitigations, "labeling")
}
