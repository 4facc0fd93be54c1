package pattern

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/similarity"
)

// DetectHarmonizationPatterns compares every pair of markets' regulatory
// requirements. Requirement names with Levenshtein similarity above 0.8 count
// as shared; a pair whose shared requirements cover at least 0.7 of the union
// of requirement names yields a HARMONIZATION pattern naming the product
// categories that individually clear the same coverage bar. Failures degrade
// to an empty result.
func (s *RegulatoryStore) DetectHarmonizationPatterns(ctx context.Context, markets, categories []string) []*model.RegulatoryPattern {
	if len(markets) < 2 {
		return nil
	}

	// Requirements per market, and per market+category for validation.
	reqsByMarket := make(map[string][]model.RegulatoryRequirement)
	for _, m := range markets {
		var all []model.RegulatoryRequirement
		for _, c := range categories {
			reqs, err := s.regdata.Requirements(ctx, m, c)
			if err != nil {
				zap.L().Warn("regulatory store: requirements fetch failed",
					zap.String("market", m),
					zap.String("category", c),
					zap.Error(err),
				)
				continue
			}
			all = append(all, reqs...)
		}
		reqsByMarket[m] = all
	}

	var out []*model.RegulatoryPattern
	for i := 0; i < len(markets); i++ {
		for j := i + 1; j < len(markets); j++ {
			a, b := markets[i], markets[j]
			coverage := requirementCoverage(reqsByMarket[a], reqsByMarket[b])
			if coverage < harmonizationCoverage {
				continue
			}

			var harmonized []string
			for _, c := range categories {
				ra := filterByCategory(reqsByMarket[a], c)
				rb := filterByCategory(reqsByMarket[b], c)
				if len(ra) == 0 || len(rb) == 0 {
					continue
				}
				if requirementCoverage(ra, rb) >= harmonizationCoverage {
					harmonized = append(harmonized, c)
				}
			}
			if len(harmonized) == 0 {
				continue
			}

			p := s.buildHarmonizationPattern(a, b, harmonized, coverage)
			if err := s.upsertByGroupKey(ctx, p); err != nil {
				zap.L().Error("regulatory store: harmonization upsert failed",
					zap.String("pair", a+"-"+b), zap.Error(err))
				continue
			}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupKey < out[j].GroupKey })
	return out
}

// requirementCoverage returns the share of the union of requirement names
// covered by cross-market matches (exact or Levenshtein-similar).
func requirementCoverage(a, b []model.RegulatoryRequirement) float64 {
	namesA := requirementNames(a)
	namesB := requirementNames(b)
	if len(namesA) == 0 || len(namesB) == 0 {
		return 0
	}

	matchedB := make(map[int]bool, len(namesB))
	shared := 0
	for _, na := range namesA {
		for k, nb := range namesB {
			if matchedB[k] {
				continue
			}
			if similarity.LevenshteinSimilarity(na, nb) > harmonizationNameThreshold {
				shared++
				matchedB[k] = true
				break
			}
		}
	}

	union := len(namesA) + len(namesB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func requirementNames(reqs []model.RegulatoryRequirement) []string {
	seen := make(map[string]struct{}, len(reqs))
	var out []string
	for _, r := range reqs {
		n := similarity.Normalize(r.Name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func filterByCategory(reqs []model.RegulatoryRequirement, category string) []model.RegulatoryRequirement {
	key := similarity.Normalize(category)
	var out []model.RegulatoryRequirement
	for _, r := range reqs {
		if similarity.Normalize(r.Category) == key {
			out = append(out, r)
		}
	}
	return out
}

func (s *RegulatoryStore) buildHarmonizationPattern(a, b string, categories []string, coverage float64) *model.RegulatoryPattern {
	now := s.now()
	return &model.RegulatoryPattern{
		PatternCore: model.PatternCore{
			ID:                uuid.NewString(),
			Name:              fmt.Sprintf("Harmonized requirements: %s / %s", a, b),
			Description:       fmt.Sprintf("Requirement coverage %.0f%% across the pair", coverage*100),
			Markets:           []string{a, b},
			ProductCategories: categories,
			ApplicationCount:  1,
			SuccessRate:       coverage,
			Confidence:        CalculateConfidence(coverage, 1),
			DiscoveredAt:      now,
			LastUpdated:       now,
		},
		PatternType:          model.RegulatoryHarmonization,
		Domain:               "harmonization",
		GroupKey:             "harmonization:" + a + ":" + b,
		HarmonizedMarkets:    []string{a, b},
		HarmonizedCategories: categories,
	}
}

// ChangeFrequencyReport summarizes one market's regulatory change cadence.
type ChangeFrequencyReport struct {
	Market           string                   `json:"market"`
	Changes          int                      `json:"changes"`
	MeanIntervalDays float64                  `json:"mean_interval_days"`
	Frequency        string                   `json:"frequency"` // frequent / moderate / infrequent
	ModalChangeType  string                   `json:"modal_change_type"`
	PeakMonths       []string                 `json:"peak_months"`
	Pattern          *model.RegulatoryPattern `json:"pattern,omitempty"`
}

// MonitorRegulatoryChanges summarizes change cadence per market inside the
// window: mean inter-change interval classified frequent (<30d) / moderate
// (<90d) / infrequent, the modal change type, and month-bucket seasonality
// where a month is a peak when its count reaches 1.5× the monthly average.
// Markets with fewer than three recorded changes are skipped. Each report
// carries a CHANGE_FREQUENCY pattern written through the repository.
func (s *RegulatoryStore) MonitorRegulatoryChanges(ctx context.Context, markets, categories []string, window time.Duration) []ChangeFrequencyReport {
	since := s.now().Add(-window)
	categoryFilter := toFilter(categories)

	var reports []ChangeFrequencyReport
	for _, market := range markets {
		changes, err := s.regdata.ChangesSince(ctx, market, since)
		if err != nil {
			zap.L().Warn("regulatory store: changes fetch failed",
				zap.String("market", market), zap.Error(err))
			continue
		}
		if categoryFilter != nil {
			var kept []model.RegulatoryChange
			for _, ch := range changes {
				if ch.Category == "" {
					kept = append(kept, ch)
					continue
				}
				if _, ok := categoryFilter[similarity.Normalize(ch.Category)]; ok {
					kept = append(kept, ch)
				}
			}
			changes = kept
		}
		if len(changes) < monitorMinChanges {
			continue
		}

		report := summarizeChanges(market, changes)
		p := s.buildFrequencyPattern(report)
		if err := s.upsertByGroupKey(ctx, p); err != nil {
			zap.L().Error("regulatory store: frequency upsert failed",
				zap.String("market", market), zap.Error(err))
		} else {
			report.Pattern = p
		}
		reports = append(reports, report)
	}
	return reports
}

func summarizeChanges(market string, changes []model.RegulatoryChange) ChangeFrequencyReport {
	sorted := make([]model.RegulatoryChange, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OccurredAt.Before(sorted[j].OccurredAt) })

	var totalGap float64
	for i := 1; i < len(sorted); i++ {
		totalGap += sorted[i].OccurredAt.Sub(sorted[i-1].OccurredAt).Hours() / 24
	}
	mean := totalGap / float64(len(sorted)-1)

	frequency := "infrequent"
	switch {
	case mean < 30:
		frequency = "frequent"
	case mean < 90:
		frequency = "moderate"
	}

	var types []string
	monthCounts := make(map[time.Month]int)
	for _, ch := range sorted {
		types = append(types, ch.ChangeType)
		monthCounts[ch.OccurredAt.Month()]++
	}

	monthlyAvg := float64(len(sorted)) / 12
	var peaks []string
	for m := time.January; m <= time.December; m++ {
		if float64(monthCounts[m]) >= 1.5*monthlyAvg && monthCounts[m] > 0 {
			peaks = append(peaks, m.String())
		}
	}

	return ChangeFrequencyReport{
		Market:           market,
		Changes:          len(sorted),
		MeanIntervalDays: mean,
		Frequency:        frequency,
		ModalChangeType:  mode(types),
		PeakMonths:       peaks,
	}
}

func (s *RegulatoryStore) buildFrequencyPattern(r ChangeFrequencyReport) *model.RegulatoryPattern {
	now := s.now()
	return &model.RegulatoryPattern{
		PatternCore: model.PatternCore{
			ID:               uuid.NewString(),
			Name:             fmt.Sprintf("Regulatory change cadence in %s", r.Market),
			Description:      fmt.Sprintf("%d changes, mean interval %.0f days", r.Changes, r.MeanIntervalDays),
			Markets:          []string{r.Market},
			ApplicationCount: r.Changes,
			SuccessRate:      0.5,
			Confidence:       CalculateConfidence(0.5, r.Changes),
			DiscoveredAt:     now,
			LastUpdated:      now,
		},
		PatternType:     model.RegulatoryChangeFrequency,
		Domain:          "change_monitoring",
		GroupKey:        "frequency:" + r.Market,
		ChangeFrequency: r.Frequency,
		ModalChangeType: r.ModalChangeType,
		PeakMonths:      r.PeakMonths,
	}
}
