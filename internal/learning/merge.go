package learning

import (
	"time"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/pattern"
)

// MergeExportStrategyPatterns folds members into primary: application counts
// sum, the success rate becomes the count-weighted average, timeline extremes
// widen, and evidence lists become the most frequent items across all merged
// members (top 5 success factors, top 10 challenges). Pure: returns a new
// pattern and mutates neither input. Archiving the members is the caller's
// responsibility.
func MergeExportStrategyPatterns(primary *model.ExportStrategyPattern, members []*model.ExportStrategyPattern, now time.Time) *model.ExportStrategyPattern {
	merged := *primary

	totalCount := primary.ApplicationCount
	weightedRate := primary.SuccessRate * float64(primary.ApplicationCount)
	factorLists := [][]string{primary.SuccessFactors}
	challengeLists := [][]string{primary.Challenges}
	certLists := [][]string{primary.Certifications}

	for _, m := range members {
		totalCount += m.ApplicationCount
		weightedRate += m.SuccessRate * float64(m.ApplicationCount)
		factorLists = append(factorLists, m.SuccessFactors)
		challengeLists = append(challengeLists, m.Challenges)
		certLists = append(certLists, m.Certifications)

		merged.Markets = unionStrings(merged.Markets, m.Markets)
		merged.ProductCategories = unionStrings(merged.ProductCategories, m.ProductCategories)
		merged.BusinessSize = widenRange(merged.BusinessSize, m.BusinessSize)

		if m.TimelineMinDays > 0 && (merged.TimelineMinDays == 0 || m.TimelineMinDays < merged.TimelineMinDays) {
			merged.TimelineMinDays = m.TimelineMinDays
		}
		if m.TimelineMaxDays > merged.TimelineMaxDays {
			merged.TimelineMaxDays = m.TimelineMaxDays
		}
	}

	merged.ApplicationCount = totalCount
	if totalCount > 0 {
		merged.SuccessRate = weightedRate / float64(totalCount)
	}
	merged.SuccessFactors = pattern.TopNByFrequency(5, factorLists...)
	merged.Challenges = pattern.TopNByFrequency(10, challengeLists...)
	merged.Certifications = pattern.TopNByFrequency(10, certLists...)
	merged.Confidence = pattern.CalculateConfidence(merged.SuccessRate, merged.ApplicationCount)
	merged.LastUpdated = now
	return &merged
}

// MergeRegulatoryPatterns is the regulatory counterpart of
// MergeExportStrategyPatterns.
func MergeRegulatoryPatterns(primary *model.RegulatoryPattern, members []*model.RegulatoryPattern, now time.Time) *model.RegulatoryPattern {
	merged := *primary
	// The struct copy aliases the map; clone so the primary stays untouched.
	merged.Mitigations = make(map[string]string, len(primary.Mitigations))
	for k, v := range primary.Mitigations {
		merged.Mitigations[k] = v
	}

	totalCount := primary.ApplicationCount
	weightedRate := primary.SuccessRate * float64(primary.ApplicationCount)
	factorLists := [][]string{primary.SuccessFactors}
	challengeLists := [][]string{primary.Challenges}
	certLists := [][]string{primary.Certifications}

	for _, m := range members {
		totalCount += m.ApplicationCount
		weightedRate += m.SuccessRate * float64(m.ApplicationCount)
		factorLists = append(factorLists, m.SuccessFactors)
		challengeLists = append(challengeLists, m.Challenges)
		certLists = append(certLists, m.Certifications)

		merged.Markets = unionStrings(merged.Markets, m.Markets)
		merged.ProductCategories = unionStrings(merged.ProductCategories, m.ProductCategories)
		merged.BusinessSize = widenRange(merged.BusinessSize, m.BusinessSize)

		for k, v := range m.Mitigations {
			if _, ok := merged.Mitigations[k]; !ok {
				merged.Mitigations[k] = v
			}
		}
	}

	merged.ApplicationCount = totalCount
	if totalCount > 0 {
		merged.SuccessRate = weightedRate / float64(totalCount)
	}
	merged.SuccessFactors = pattern.TopNByFrequency(5, factorLists...)
	merged.Challenges = pattern.TopNByFrequency(10, challengeLists...)
	merged.Certifications = pattern.TopNByFrequency(10, certLists...)
	merged.Confidence = pattern.CalculateConfidence(merged.SuccessRate, merged.ApplicationCount)
	merged.LastUpdated = now
	return &merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// widenRange returns the smallest range covering both inputs; a zero Max is
// open-ended and stays open-ended.
func widenRange(a, b model.SizeRange) model.SizeRange {
	out := a
	if b.Min < out.Min {
		out.Min = b.Min
	}
	if b.Max == 0 || out.Max == 0 {
		out.Max = 0
	} else if b.Max > out.Max {
		out.Max = b.Max
	}
	return out
}
