package pattern

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
)

// metaGroup is one grouping of successful outcomes considered for synthesis.
type metaGroup struct {
	patternType model.ExportPatternType
	key         string
	markets     []string
	categories  []string
	sizeRange   model.SizeRange
	members     []model.ExportOutcome
}

// DetectMetaPatterns mines the successful-outcome history for recurring
// structure along four dimensions: market, product category, business-size
// bucket and cross-market businesses. Groups of at least three outcomes yield
// a synthetic meta-pattern identified by its (type, group key) tag;
// re-detection updates the existing meta-pattern in place. Below five total
// successful outcomes this is a no-op.
func (s *ExportStore) DetectMetaPatterns(ctx context.Context) error {
	outcomes, err := s.outcomes.SuccessfulOutcomes(ctx)
	if err != nil {
		return eris.Wrap(err, "export store: load successful outcomes")
	}
	if len(outcomes) < metaPatternMinOutcomes {
		return nil
	}

	groups := groupOutcomes(outcomes)
	for _, g := range groups {
		if len(g.members) < metaPatternMinGroup {
			continue
		}
		if err := s.upsertMetaPattern(ctx, g); err != nil {
			zap.L().Error("export store: meta-pattern upsert failed",
				zap.String("group", g.key),
				zap.Error(err),
			)
		}
	}
	return nil
}

// groupOutcomes buckets successful outcomes along the four meta dimensions.
func groupOutcomes(outcomes []model.ExportOutcome) []metaGroup {
	byMarket := make(map[string][]model.ExportOutcome)
	byCategory := make(map[string][]model.ExportOutcome)
	byBucket := make(map[model.SizeBucket][]model.ExportOutcome)
	marketsPerBusiness := make(map[string]map[string]struct{})

	for _, o := range outcomes {
		byMarket[o.Market] = append(byMarket[o.Market], o)
		for _, cat := range o.ProductCategories() {
			byCategory[cat] = append(byCategory[cat], o)
		}
		byBucket[model.BucketForSize(o.BusinessSize)] = append(byBucket[model.BucketForSize(o.BusinessSize)], o)
		if marketsPerBusiness[o.BusinessID] == nil {
			marketsPerBusiness[o.BusinessID] = make(map[string]struct{})
		}
		marketsPerBusiness[o.BusinessID][o.Market] = struct{}{}
	}

	var groups []metaGroup
	for market, members := range byMarket {
		groups = append(groups, metaGroup{
			patternType: model.ExportPatternMarket,
			key:         "market:" + market,
			markets:     []string{market},
			categories:  collectCategories(members),
			members:     members,
		})
	}
	for cat, members := range byCategory {
		groups = append(groups, metaGroup{
			patternType: model.ExportPatternCategory,
			key:         "category:" + cat,
			markets:     collectMarkets(members),
			categories:  []string{cat},
			members:     members,
		})
	}
	for bucket, members := range byBucket {
		groups = append(groups, metaGroup{
			patternType: model.ExportPatternSizeBucket,
			key:         "size:" + string(bucket),
			markets:     collectMarkets(members),
			categories:  collectCategories(members),
			sizeRange:   model.RangeForBucket(bucket),
			members:     members,
		})
	}

	// Cross-market: businesses with successful outcomes in >=2 distinct markets.
	var crossMembers []model.ExportOutcome
	for _, o := range outcomes {
		if len(marketsPerBusiness[o.BusinessID]) >= 2 {
			crossMembers = append(crossMembers, o)
		}
	}
	if len(crossMembers) > 0 {
		groups = append(groups, metaGroup{
			patternType: model.ExportPatternCrossMarket,
			key:         "cross_market",
			markets:     collectMarkets(crossMembers),
			categories:  collectCategories(crossMembers),
			members:     crossMembers,
		})
	}
	return groups
}

// upsertMetaPattern synthesizes the group's meta-pattern and writes it,
// updating the existing pattern with the same (type, group key) tag if any.
func (s *ExportStore) upsertMetaPattern(ctx context.Context, g metaGroup) error {
	var entries, compliances, logistics []string
	var factorLists, challengeLists [][]string
	for _, o := range g.members {
		entries = append(entries, o.EntryStrategy)
		compliances = append(compliances, o.ComplianceApproach)
		logistics = append(logistics, o.LogisticsModel)
		factorLists = append(factorLists, o.SuccessFactors)
		challengeLists = append(challengeLists, o.Challenges)
	}

	existing, err := s.repo.Query(ctx, func(p model.Pattern) bool {
		esp, ok := p.(*model.ExportStrategyPattern)
		return ok && esp.PatternType == g.patternType && esp.GroupKey == g.key
	})
	if err != nil {
		return eris.Wrap(err, "query meta-pattern")
	}

	now := s.now()
	var meta model.ExportStrategyPattern
	if len(existing) > 0 {
		meta = *(existing[0].(*model.ExportStrategyPattern))
	} else {
		meta = model.ExportStrategyPattern{
			PatternCore: model.PatternCore{
				ID:           uuid.NewString(),
				DiscoveredAt: now,
			},
			PatternType: g.patternType,
			GroupKey:    g.key,
		}
	}

	meta.Name = fmt.Sprintf("Meta pattern %s", g.key)
	meta.Description = fmt.Sprintf("Synthesized from %d successful outcomes", len(g.members))
	meta.Markets = g.markets
	meta.ProductCategories = g.categories
	meta.BusinessSize = g.sizeRange
	meta.EntryStrategy = mode(entries)
	meta.ComplianceApproach = mode(compliances)
	meta.LogisticsModel = mode(logistics)
	meta.SuccessFactors = TopNByFrequency(5, factorLists...)
	meta.Challenges = TopNByFrequency(5, challengeLists...)
	meta.ApplicationCount = len(g.members)
	meta.SuccessRate = 1.0 // synthesized from successful outcomes only
	meta.Confidence = CalculateConfidence(meta.SuccessRate, meta.ApplicationCount)
	meta.LastUpdated = now

	if err := s.repo.Upsert(ctx, &meta); err != nil {
		return eris.Wrap(err, "upsert meta-pattern")
	}
	s.metrics.ObserveLearned("export_strategy", "meta")
	return nil
}

func collectMarkets(outcomes []model.ExportOutcome) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range outcomes {
		if _, ok := seen[o.Market]; ok {
			continue
		}
		seen[o.Market] = struct{}{}
		out = append(out, o.Market)
	}
	return out
}

func collectCategories(outcomes []model.ExportOutcome) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range outcomes {
		for _, c := range o.ProductCategories() {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
