package pattern

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/monitoring"
	"github.com/exportwise/advisor-cli/internal/similarity"
)

// barrierMinFailures is the failed-outcome count per market below which no
// compliance barrier is emitted.
const barrierMinFailures = 3

// harmonizationNameThreshold is the Levenshtein similarity above which two
// requirement names count as the same shared requirement.
const harmonizationNameThreshold = 0.8

// harmonizationCoverage is the shared-requirement coverage of the union of
// requirement names at which two markets count as harmonized.
const harmonizationCoverage = 0.7

// monitorMinChanges is the recorded-change count per market below which
// change monitoring emits nothing.
const monitorMinChanges = 3

// complianceKeywords matches challenge text that indicates a compliance cause.
var complianceKeywords = regexp.MustCompile(
	`(?i)\b(certificat\w*|licen[cs]\w*|standard\w*|regulat\w*|compliance|customs|document\w*|permit\w*|inspection\w*|labeling|labelling|tariff\w*|duty|duties|sanitary|phytosanitary)\b`,
)

// mitigationsByKeyword maps a challenge keyword category to machine-generated
// mitigation advice.
var mitigationsByKeyword = map[string]*regexp.Regexp{
	"certification": regexp.MustCompile(`(?i)certificat|licen[cs]`),
	"standards":     regexp.MustCompile(`(?i)standard|specification`),
	"customs":       regexp.MustCompile(`(?i)customs|tariff|duty|duties`),
	"documentation": regexp.MustCompile(`(?i)document|permit|paperwork`),
	"inspection":    regexp.MustCompile(`(?i)inspection|sanitary|phytosanitary`),
	"labeling":      regexp.MustCompile(`(?i)label`),
}

var mitigationAdvice = map[string]string{
	"certification": "obtain required certifications early in market entry",
	"standards":     "verify product specifications against target-market standards",
	"customs":       "engage a customs broker before first shipment",
	"documentation": "prepare export documentation checklists per market",
	"inspection":    "schedule pre-shipment inspections with accredited bodies",
	"labeling":      "localize labeling to target-market requirements",
}

// RegulatoryData supplies regulatory requirements and change history from the
// external regulatory-data collaborator.
type RegulatoryData interface {
	Requirements(ctx context.Context, market, category string) ([]model.RegulatoryRequirement, error)
	ChangesSince(ctx context.Context, market string, since time.Time) ([]model.RegulatoryChange, error)
}

// RegulatoryStore owns the regulatory pattern collection: relevance queries,
// barrier and harmonization mining, and change-cadence monitoring.
type RegulatoryStore struct {
	repo     Repository
	outcomes OutcomeLog
	regdata  RegulatoryData
	engine   *similarity.Engine
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewRegulatoryStore wires a RegulatoryStore. metrics may be nil.
func NewRegulatoryStore(repo Repository, outcomes OutcomeLog, regdata RegulatoryData, engine *similarity.Engine, metrics *monitoring.Metrics) *RegulatoryStore {
	return &RegulatoryStore{
		repo:     repo,
		outcomes: outcomes,
		regdata:  regdata,
		engine:   engine,
		metrics:  metrics,
		now:      time.Now,
	}
}

// FindRelevantPatterns returns live regulatory patterns relevant to the
// profile, best first. Regulatory relevance is broader than export-strategy
// relevance: a candidate passes the pre-filter on size fit or market or
// category overlap. Ties are broken by pattern id; failures degrade to an
// empty list.
func (s *RegulatoryStore) FindRelevantPatterns(ctx context.Context, profile *model.BusinessProfile) []Scored {
	candidates, err := s.repo.Query(ctx, func(p model.Pattern) bool {
		core := p.Core()
		if profile.EmployeeCount > 0 && (core.BusinessSize.Min > 0 || core.BusinessSize.Max > 0) &&
			withinOrNear(profile.EmployeeCount, core.BusinessSize) {
			return true
		}
		return overlaps(profile.TargetMarkets, core.Markets) ||
			overlaps(profile.ProductCategories(), core.ProductCategories)
	})
	if err != nil {
		zap.L().Error("regulatory store: relevance query failed", zap.Error(err))
		return nil
	}

	var out []Scored
	for _, p := range candidates {
		res := s.engine.ScorePatternForProfile(profile, p)
		s.metrics.ObserveScore(res.Score)
		if res.IsMatch {
			out = append(out, Scored{Pattern: p, Result: res})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Result.Score != out[j].Result.Score {
			return out[i].Result.Score > out[j].Result.Score
		}
		return out[i].Pattern.Core().ID < out[j].Pattern.Core().ID
	})
	return out
}

// DetectComplianceBarriers mines failed outcomes whose challenges read as
// compliance problems. Markets with at least three such failures yield a
// COMPLIANCE_BARRIER pattern carrying mitigation advice keyed by challenge
// keyword category. Failures degrade to an empty result.
func (s *RegulatoryStore) DetectComplianceBarriers(ctx context.Context, markets, categories []string) []*model.RegulatoryPattern {
	failed, err := s.outcomes.FailedOutcomes(ctx)
	if err != nil {
		zap.L().Error("regulatory store: load failed outcomes", zap.Error(err))
		return nil
	}

	marketFilter := toFilter(markets)
	categoryFilter := toFilter(categories)

	type marketEvidence struct {
		challenges []string
		categories map[string]struct{}
		count      int
	}
	byMarket := make(map[string]*marketEvidence)

	for _, o := range failed {
		if marketFilter != nil {
			if _, ok := marketFilter[similarity.Normalize(o.Market)]; !ok {
				continue
			}
		}
		var complianceChallenges []string
		for _, ch := range o.Challenges {
			if complianceKeywords.MatchString(ch) {
				complianceChallenges = append(complianceChallenges, ch)
			}
		}
		if len(complianceChallenges) == 0 {
			continue
		}
		ev := byMarket[o.Market]
		if ev == nil {
			ev = &marketEvidence{categories: make(map[string]struct{})}
			byMarket[o.Market] = ev
		}
		ev.count++
		ev.challenges = append(ev.challenges, complianceChallenges...)
		for _, c := range o.ProductCategories() {
			if categoryFilter != nil {
				if _, ok := categoryFilter[similarity.Normalize(c)]; !ok {
					continue
				}
			}
			ev.categories[c] = struct{}{}
		}
	}

	var out []*model.RegulatoryPattern
	for market, ev := range byMarket {
		if ev.count < barrierMinFailures {
			continue
		}
		p := s.buildBarrierPattern(market, ev.challenges, sortedKeys(ev.categories), ev.count)
		if err := s.upsertByGroupKey(ctx, p); err != nil {
			zap.L().Error("regulatory store: barrier upsert failed",
				zap.String("market", market), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupKey < out[j].GroupKey })
	return out
}

// buildBarrierPattern assembles a COMPLIANCE_BARRIER pattern for one market.
func (s *RegulatoryStore) buildBarrierPattern(market string, challenges, categories []string, failures int) *model.RegulatoryPattern {
	mitigations := make(map[string]string)
	for _, ch := range challenges {
		for kind, re := range mitigationsByKeyword {
			if re.MatchString(ch) {
				mitigations[kind] = mitigationAdvice[kind]
			}
		}
	}

	now := s.now()
	return &model.RegulatoryPattern{
		PatternCore: model.PatternCore{
			ID:                uuid.NewString(),
			Name:              fmt.Sprintf("Compliance barriers in %s", market),
			Description:       fmt.Sprintf("Derived from %d failed export attempts", failures),
			Markets:           []string{market},
			ProductCategories: categories,
			Challenges:        TopNByFrequency(10, challenges),
			ApplicationCount:  failures,
			SuccessRate:       0,
			Confidence:        CalculateConfidence(0, failures),
			DiscoveredAt:      now,
			LastUpdated:       now,
		},
		PatternType: model.RegulatoryComplianceBarrier,
		Domain:      "compliance",
		GroupKey:    "barrier:" + market,
		Mitigations: mitigations,
	}
}

// upsertByGroupKey updates the live pattern with the same (type, group key)
// in place, or inserts p as new.
func (s *RegulatoryStore) upsertByGroupKey(ctx context.Context, p *model.RegulatoryPattern) error {
	existing, err := s.repo.Query(ctx, func(q model.Pattern) bool {
		rp, ok := q.(*model.RegulatoryPattern)
		return ok && rp.PatternType == p.PatternType && rp.GroupKey == p.GroupKey
	})
	if err != nil {
		return eris.Wrap(err, "query by group key")
	}
	if len(existing) > 0 {
		prior := existing[0].(*model.RegulatoryPattern)
		p.ID = prior.ID
		p.Version = prior.Version
		p.DiscoveredAt = prior.DiscoveredAt
		p.Feedback = prior.Feedback
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return eris.Wrap(err, "upsert regulatory pattern")
	}
	s.metrics.ObserveLearned("regulatory", string(p.PatternType))
	return nil
}

// UpdatePatternConfidence folds one piece of user feedback into a pattern.
func (s *RegulatoryStore) UpdatePatternConfidence(ctx context.Context, id string, helpful bool, details string) error {
	for attempt := 0; attempt < upsertRetries; attempt++ {
		p, err := s.repo.Get(ctx, id)
		if err != nil {
			return eris.Wrap(err, "regulatory store: load pattern for feedback")
		}
		rp := *(p.(*model.RegulatoryPattern))
		applyFeedback(&rp.PatternCore, helpful, details, s.now())

		err = s.repo.Upsert(ctx, &rp)
		if err == nil {
			return nil
		}
		if !eris.Is(err, ErrVersionConflict) {
			return eris.Wrap(err, "regulatory store: persist feedback")
		}
	}
	return eris.Errorf("regulatory store: feedback for %s lost to contention", id)
}

// ArchivePattern performs the terminal state transition.
func (s *RegulatoryStore) ArchivePattern(ctx context.Context, id, mergedInto string) error {
	if err := s.repo.Archive(ctx, id, mergedInto); err != nil {
		return eris.Wrapf(err, "regulatory store: archive %s", id)
	}
	return nil
}

// Get returns one live pattern by id.
func (s *RegulatoryStore) Get(ctx context.Context, id string) (*model.RegulatoryPattern, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.(*model.RegulatoryPattern), nil
}

// GetAllPatterns returns the live regulatory patterns sorted by id.
func (s *RegulatoryStore) GetAllPatterns(ctx context.Context) []*model.RegulatoryPattern {
	all, err := s.repo.All(ctx)
	if err != nil {
		zap.L().Error("regulatory store: list patterns failed", zap.Error(err))
		return nil
	}
	out := make([]*model.RegulatoryPattern, 0, len(all))
	for _, p := range all {
		if rp, ok := p.(*model.RegulatoryPattern); ok {
			out = append(out, rp)
		}
	}
	return out
}

// Upsert exposes repository writes to the learning engine (consolidation).
func (s *RegulatoryStore) Upsert(ctx context.Context, p *model.RegulatoryPattern) error {
	return s.repo.Upsert(ctx, p)
}

func toFilter(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[similarity.Normalize(it)] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
