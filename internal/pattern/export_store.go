package pattern

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/monitoring"
	"github.com/exportwise/advisor-cli/internal/similarity"
)

// learnMatchThreshold is the profile-to-pattern score above which a new
// outcome reinforces an existing pattern instead of seeding a new one.
const learnMatchThreshold = 0.8

// metaPatternMinOutcomes is the total successful-outcome count below which
// meta-pattern detection is a no-op.
const metaPatternMinOutcomes = 5

// metaPatternMinGroup is the minimum group size that yields a meta-pattern.
const metaPatternMinGroup = 3

// upsertRetries bounds optimistic-concurrency retries on version conflict.
const upsertRetries = 3

var titleCaser = cases.Title(language.English)

// Scored pairs a pattern with its similarity result for ordered relevance output.
type Scored struct {
	Pattern model.Pattern     `json:"pattern"`
	Result  similarity.Result `json:"result"`
}

// OutcomeLog records export outcomes and answers the queries pattern mining
// needs. Outcomes are write-once.
type OutcomeLog interface {
	AppendOutcome(ctx context.Context, o model.ExportOutcome) error
	SuccessfulOutcomes(ctx context.Context) ([]model.ExportOutcome, error)
	FailedOutcomes(ctx context.Context) ([]model.ExportOutcome, error)
}

// ExportStore owns the export-strategy pattern collection: relevance queries,
// outcome learning and meta-pattern mining.
type ExportStore struct {
	repo     Repository
	outcomes OutcomeLog
	engine   *similarity.Engine
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewExportStore wires an ExportStore. metrics may be nil.
func NewExportStore(repo Repository, outcomes OutcomeLog, engine *similarity.Engine, metrics *monitoring.Metrics) *ExportStore {
	return &ExportStore{
		repo:     repo,
		outcomes: outcomes,
		engine:   engine,
		metrics:  metrics,
		now:      time.Now,
	}
}

// FindRelevantPatterns returns live patterns relevant to the profile, best
// first. Candidates are pre-filtered on hard applicability (size range plus
// market or category overlap), scored, and kept only when the score clears
// the export-pattern threshold. Ties are broken by pattern id. Failures
// degrade to an empty list.
func (s *ExportStore) FindRelevantPatterns(ctx context.Context, profile *model.BusinessProfile) []Scored {
	candidates, err := s.repo.Query(ctx, func(p model.Pattern) bool {
		return s.applicable(profile, p)
	})
	if err != nil {
		zap.L().Error("export store: relevance query failed", zap.Error(err))
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

// applicable is the hard pre-filter: the profile's size must fit the pattern's
// range (when both are known) and the profile must overlap the pattern on
// markets or product categories.
func (s *ExportStore) applicable(profile *model.BusinessProfile, p model.Pattern) bool {
	core := p.Core()
	if profile.EmployeeCount > 0 && (core.BusinessSize.Min > 0 || core.BusinessSize.Max > 0) {
		if !withinOrNear(profile.EmployeeCount, core.BusinessSize) {
			return false
		}
	}
	return overlaps(profile.TargetMarkets, core.Markets) ||
		overlaps(profile.ProductCategories(), core.ProductCategories)
}

// withinOrNear admits sizes inside the range or within 50% of its nearest bound,
// leaving the fine judgment to the similarity score.
func withinOrNear(n int, r model.SizeRange) bool {
	if r.Contains(n) {
		return true
	}
	if n < r.Min {
		return n*2 >= r.Min
	}
	return r.Max > 0 && n <= r.Max*2
}

// LearnFromOutcome folds one successful outcome into the pattern collection:
// it reinforces the best-matching existing pattern when the match is strong,
// otherwise seeds a new pattern from the outcome. Returns the affected
// pattern, or nil when the outcome was not learnable. Failures are logged,
// never propagated.
func (s *ExportStore) LearnFromOutcome(ctx context.Context, outcome model.ExportOutcome) *model.ExportStrategyPattern {
	if !outcome.Successful {
		zap.L().Debug("export store: skipping unsuccessful outcome",
			zap.String("outcome", outcome.ID),
		)
		return nil
	}

	if err := s.outcomes.AppendOutcome(ctx, outcome); err != nil {
		zap.L().Error("export store: record outcome failed",
			zap.String("outcome", outcome.ID),
			zap.Error(err),
		)
		// Learning still proceeds on the in-hand outcome.
	}

	var learned *model.ExportStrategyPattern
	for attempt := 0; attempt < upsertRetries; attempt++ {
		var err error
		learned, err = s.learnOnce(ctx, outcome)
		if err == nil {
			break
		}
		if !eris.Is(err, ErrVersionConflict) {
			zap.L().Error("export store: learn failed",
				zap.String("outcome", outcome.ID),
				zap.Error(err),
			)
			return nil
		}
	}
	if learned == nil {
		return nil
	}

	if err := s.DetectMetaPatterns(ctx); err != nil {
		zap.L().Error("export store: meta-pattern detection failed", zap.Error(err))
	}
	return learned
}

// learnOnce performs one read-modify-write learning cycle.
func (s *ExportStore) learnOnce(ctx context.Context, outcome model.ExportOutcome) (*model.ExportStrategyPattern, error) {
	existing, err := s.findLearnCandidate(ctx, outcome)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		seeded := s.seedPattern(outcome)
		if err := s.repo.Upsert(ctx, seeded); err != nil {
			return nil, eris.Wrap(err, "export store: insert seeded pattern")
		}
		s.metrics.ObserveLearned("export_strategy", "seeded")
		zap.L().Info("export store: seeded pattern from outcome",
			zap.String("pattern", seeded.ID),
			zap.String("market", outcome.Market),
		)
		return seeded, nil
	}

	updated := *existing // work on a copy; the repo enforces the version
	reinforce(&updated, outcome, s.now())
	if err := s.repo.Upsert(ctx, &updated); err != nil {
		return nil, eris.Wrap(err, "export store: update pattern")
	}
	s.metrics.ObserveLearned("export_strategy", "reinforced")
	zap.L().Info("export store: reinforced pattern",
		zap.String("pattern", updated.ID),
		zap.Int("applications", updated.ApplicationCount),
		zap.Float64("confidence", updated.Confidence),
	)
	return &updated, nil
}

// findLearnCandidate returns the best-matching pattern sharing the outcome's
// strategy triple, market and at least one product category, provided its
// similarity score exceeds the learn threshold.
func (s *ExportStore) findLearnCandidate(ctx context.Context, outcome model.ExportOutcome) (*model.ExportStrategyPattern, error) {
	cats := outcome.ProductCategories()
	candidates, err := s.repo.Query(ctx, func(p model.Pattern) bool {
		esp, ok := p.(*model.ExportStrategyPattern)
		if !ok {
			return false
		}
		return esp.EntryStrategy == outcome.EntryStrategy &&
			esp.ComplianceApproach == outcome.ComplianceApproach &&
			esp.LogisticsModel == outcome.LogisticsModel &&
			overlaps([]string{outcome.Market}, esp.Markets) &&
			overlaps(cats, esp.ProductCategories)
	})
	if err != nil {
		return nil, eris.Wrap(err, "export store: query learn candidates")
	}

	pseudo := profileFromOutcome(outcome)
	var best *model.ExportStrategyPattern
	bestScore := learnMatchThreshold
	for _, p := range candidates {
		res := s.engine.ScorePatternForProfile(pseudo, p)
		if res.Score > bestScore {
			bestScore = res.Score
			best = p.(*model.ExportStrategyPattern)
		}
	}
	return best, nil
}

// profileFromOutcome builds the scoring view of an outcome.
func profileFromOutcome(o model.ExportOutcome) *model.BusinessProfile {
	return &model.BusinessProfile{
		ID:            o.BusinessID,
		EmployeeCount: o.BusinessSize,
		Products:      o.Products,
		TargetMarkets: []string{o.Market},
	}
}

// seedPattern creates a new pattern directly from a successful outcome:
// confidence 0.6, success rate 1.0, size range the outcome's headcount ±30%.
func (s *ExportStore) seedPattern(o model.ExportOutcome) *model.ExportStrategyPattern {
	now := s.now()
	name := fmt.Sprintf("%s via %s", titleCaser.String(o.Market), o.EntryStrategy)
	return &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:                uuid.NewString(),
			Name:              name,
			Description:       fmt.Sprintf("Learned from successful export to %s", o.Market),
			ProductCategories: o.ProductCategories(),
			Markets:           []string{o.Market},
			BusinessSize: model.SizeRange{
				Min: int(float64(o.BusinessSize) * 0.7),
				Max: int(float64(o.BusinessSize) * 1.3),
			},
			Confidence:       0.6,
			SuccessRate:      1.0,
			ApplicationCount: 1,
			SuccessFactors:   unionTopN(10, o.SuccessFactors),
			Challenges:       unionTopN(10, o.Challenges),
			DiscoveredAt:     now,
			LastUpdated:      now,
		},
		PatternType:        model.ExportPatternOutcome,
		EntryStrategy:      o.EntryStrategy,
		ComplianceApproach: o.ComplianceApproach,
		LogisticsModel:     o.LogisticsModel,
		TimelineAvgDays:    float64(o.TimelineDays),
		TimelineMinDays:    o.TimelineDays,
		TimelineMaxDays:    o.TimelineDays,
	}
}

// reinforce folds a successful outcome into an existing pattern: running
// success rate, timeline statistics, evidence union, confidence recompute.
func reinforce(p *model.ExportStrategyPattern, o model.ExportOutcome, now time.Time) {
	p.ApplicationCount++
	n := p.ApplicationCount
	p.SuccessRate = UpdateSuccessRate(p.SuccessRate, n, true)

	if o.TimelineDays > 0 {
		p.TimelineAvgDays = (p.TimelineAvgDays*float64(n-1) + float64(o.TimelineDays)) / float64(n)
		if o.TimelineDays < p.TimelineMinDays || p.TimelineMinDays == 0 {
			p.TimelineMinDays = o.TimelineDays
		}
		if o.TimelineDays > p.TimelineMaxDays {
			p.TimelineMaxDays = o.TimelineDays
		}
	}

	p.Challenges = unionTopN(10, p.Challenges, o.Challenges)
	p.SuccessFactors = unionTopN(10, p.SuccessFactors, o.SuccessFactors)
	p.Confidence = CalculateConfidence(p.SuccessRate, p.ApplicationCount)
	p.LastUpdated = now
}

// UpdatePatternConfidence folds one piece of user feedback into a pattern:
// the application count grows, helpful feedback counts as a success toward
// the running rate, and confidence is recomputed by the shared rule.
func (s *ExportStore) UpdatePatternConfidence(ctx context.Context, id string, helpful bool, details string) error {
	for attempt := 0; attempt < upsertRetries; attempt++ {
		p, err := s.repo.Get(ctx, id)
		if err != nil {
			return eris.Wrap(err, "export store: load pattern for feedback")
		}
		esp := *(p.(*model.ExportStrategyPattern))
		applyFeedback(&esp.PatternCore, helpful, details, s.now())

		err = s.repo.Upsert(ctx, &esp)
		if err == nil {
			return nil
		}
		if !eris.Is(err, ErrVersionConflict) {
			return eris.Wrap(err, "export store: persist feedback")
		}
	}
	return eris.Errorf("export store: feedback for %s lost to contention", id)
}

// applyFeedback is the store-level confidence update shared by both stores.
func applyFeedback(core *model.PatternCore, helpful bool, details string, now time.Time) {
	core.ApplicationCount++
	if helpful {
		core.SuccessRate = UpdateSuccessRate(core.SuccessRate, core.ApplicationCount, true)
	}
	core.Confidence = CalculateConfidence(core.SuccessRate, core.ApplicationCount)
	core.Feedback = append(core.Feedback, model.FeedbackRecord{
		Helpful:    helpful,
		Details:    details,
		ReceivedAt: now,
	})
	core.LastUpdated = now
}

// ArchivePattern performs the terminal state transition.
func (s *ExportStore) ArchivePattern(ctx context.Context, id, mergedInto string) error {
	if err := s.repo.Archive(ctx, id, mergedInto); err != nil {
		return eris.Wrapf(err, "export store: archive %s", id)
	}
	return nil
}

// Get returns one live pattern by id.
func (s *ExportStore) Get(ctx context.Context, id string) (*model.ExportStrategyPattern, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.(*model.ExportStrategyPattern), nil
}

// GetAllPatterns returns the live export-strategy patterns sorted by id.
func (s *ExportStore) GetAllPatterns(ctx context.Context) []*model.ExportStrategyPattern {
	all, err := s.repo.All(ctx)
	if err != nil {
		zap.L().Error("export store: list patterns failed", zap.Error(err))
		return nil
	}
	out := make([]*model.ExportStrategyPattern, 0, len(all))
	for _, p := range all {
		if esp, ok := p.(*model.ExportStrategyPattern); ok {
			out = append(out, esp)
		}
	}
	return out
}

// Upsert exposes repository writes to the learning engine (consolidation).
func (s *ExportStore) Upsert(ctx context.Context, p *model.ExportStrategyPattern) error {
	return s.repo.Upsert(ctx, p)
}
