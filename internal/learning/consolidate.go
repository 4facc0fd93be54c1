package learning

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/similarity"
)

// mergeThreshold is the pairwise similarity above which a group member is
// merged into its primary.
const mergeThreshold = 0.85

// Patterns with confidence above 0.8 and more than 10 applications are
// well-established and exempt from consolidation.
const (
	establishedConfidence   = 0.8
	establishedApplications = 10
)

// ConsolidationReport summarizes one consolidation run.
type ConsolidationReport struct {
	ExportMerged     int `json:"export_merged"`
	RegulatoryMerged int `json:"regulatory_merged"`
}

// ConsolidatePatterns merges near-duplicate patterns in both stores. Groups
// are keyed coarsely (markets plus entry strategy for export patterns, type
// plus domain for regulatory ones); within each group of two or more the
// member with the highest application count absorbs every member whose
// pairwise similarity clears the merge threshold. Idempotent: a second run
// over already-consolidated patterns merges nothing. Failures degrade to a
// zero report.
func (e *Engine) ConsolidatePatterns(ctx context.Context) ConsolidationReport {
	var report ConsolidationReport
	report.ExportMerged = e.consolidateExport(ctx)
	report.RegulatoryMerged = e.consolidateRegulatory(ctx)

	if report.ExportMerged+report.RegulatoryMerged > 0 {
		zap.L().Info("learning: consolidation complete",
			zap.Int("export_merged", report.ExportMerged),
			zap.Int("regulatory_merged", report.RegulatoryMerged),
		)
	}
	return report
}

func wellEstablished(core *model.PatternCore) bool {
	return core.Confidence > establishedConfidence && core.ApplicationCount > establishedApplications
}

func (e *Engine) consolidateExport(ctx context.Context) int {
	all := e.exports.GetAllPatterns(ctx)

	groups := make(map[string][]*model.ExportStrategyPattern)
	for _, p := range all {
		if wellEstablished(&p.PatternCore) {
			continue
		}
		markets := append([]string(nil), p.Markets...)
		sort.Strings(markets)
		key := strings.Join(markets, ",") + "|" + p.EntryStrategy
		groups[key] = append(groups[key], p)
	}

	merged := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		merged += e.mergeExportGroup(ctx, group)
	}
	return merged
}

// mergeExportGroup merges every member similar enough to the group's primary.
func (e *Engine) mergeExportGroup(ctx context.Context, group []*model.ExportStrategyPattern) int {
	sort.Slice(group, func(i, j int) bool {
		if group[i].ApplicationCount != group[j].ApplicationCount {
			return group[i].ApplicationCount > group[j].ApplicationCount
		}
		return group[i].ID < group[j].ID
	})
	primary := group[0]

	var toMerge []*model.ExportStrategyPattern
	for _, candidate := range group[1:] {
		if exportPairSimilarity(primary, candidate) > mergeThreshold {
			toMerge = append(toMerge, candidate)
		}
	}
	if len(toMerge) == 0 {
		return 0
	}

	merged := MergeExportStrategyPatterns(primary, toMerge, e.now())
	if err := e.exports.Upsert(ctx, merged); err != nil {
		zap.L().Error("learning: merge primary update failed",
			zap.String("pattern", primary.ID), zap.Error(err))
		return 0
	}
	for _, m := range toMerge {
		if err := e.exports.ArchivePattern(ctx, m.ID, primary.ID); err != nil {
			zap.L().Error("learning: merge archive failed",
				zap.String("pattern", m.ID), zap.Error(err))
		}
	}
	e.metrics.ObserveMerged(len(toMerge))
	return len(toMerge)
}

// exportPairSimilarity weighs entry strategy, compliance approach, logistics
// model (exact matches) and Jaccard over markets and categories 3:2:2:2:2.
func exportPairSimilarity(a, b *model.ExportStrategyPattern) float64 {
	score := 0.0
	if a.EntryStrategy == b.EntryStrategy {
		score += 3
	}
	if a.ComplianceApproach == b.ComplianceApproach {
		score += 2
	}
	if a.LogisticsModel == b.LogisticsModel {
		score += 2
	}
	score += 2 * jaccard(a.Markets, b.Markets)
	score += 2 * jaccard(a.ProductCategories, b.ProductCategories)
	return score / 11
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	return similarity.SetSimilarity(a, b, 1.01, 0) // exact membership only
}

func (e *Engine) consolidateRegulatory(ctx context.Context) int {
	all := e.regulatory.GetAllPatterns(ctx)

	groups := make(map[string][]*model.RegulatoryPattern)
	for _, p := range all {
		if wellEstablished(&p.PatternCore) {
			continue
		}
		key := string(p.PatternType) + "|" + p.Domain
		groups[key] = append(groups[key], p)
	}

	merged := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		merged += e.mergeRegulatoryGroup(ctx, group)
	}
	return merged
}

func (e *Engine) mergeRegulatoryGroup(ctx context.Context, group []*model.RegulatoryPattern) int {
	sort.Slice(group, func(i, j int) bool {
		if group[i].ApplicationCount != group[j].ApplicationCount {
			return group[i].ApplicationCount > group[j].ApplicationCount
		}
		return group[i].ID < group[j].ID
	})
	primary := group[0]

	var toMerge []*model.RegulatoryPattern
	for _, candidate := range group[1:] {
		if regulatoryPairSimilarity(primary, candidate) > mergeThreshold {
			toMerge = append(toMerge, candidate)
		}
	}
	if len(toMerge) == 0 {
		return 0
	}

	merged := MergeRegulatoryPatterns(primary, toMerge, e.now())
	if err := e.regulatory.Upsert(ctx, merged); err != nil {
		zap.L().Error("learning: regulatory merge update failed",
			zap.String("pattern", primary.ID), zap.Error(err))
		return 0
	}
	for _, m := range toMerge {
		if err := e.regulatory.ArchivePattern(ctx, m.ID, primary.ID); err != nil {
			zap.L().Error("learning: regulatory merge archive failed",
				zap.String("pattern", m.ID), zap.Error(err))
		}
	}
	e.metrics.ObserveMerged(len(toMerge))
	return len(toMerge)
}

// regulatoryPairSimilarity mirrors the export weighting with the regulatory
// grouping fields: type and domain exact matches plus Jaccard over markets
// and categories, weighted 3:2:2:2.
func regulatoryPairSimilarity(a, b *model.RegulatoryPattern) float64 {
	score := 0.0
	if a.PatternType == b.PatternType {
		score += 3
	}
	if a.Domain == b.Domain {
		score += 2
	}
	score += 2 * jaccard(a.Markets, b.Markets)
	score += 2 * jaccard(a.ProductCategories, b.ProductCategories)
	return score / 9
}
