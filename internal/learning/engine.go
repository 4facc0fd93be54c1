// Package learning implements the cross-store learning engine: recommendation
// enhancement, the feedback loop and periodic pattern consolidation.
package learning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/monitoring"
	"github.com/exportwise/advisor-cli/internal/pattern"
)

// ApplicationLog persists pattern applications for later feedback lookup.
type ApplicationLog interface {
	RecordApplication(ctx context.Context, app model.PatternApplication) error
	GetApplication(ctx context.Context, id string) (*model.PatternApplication, error)
}

// MarketApplicability decides whether a pattern applies to one market
// recommendation. Pluggable so callers can tighten or relax the default.
type MarketApplicability func(p model.Pattern, rec *model.MarketRecommendation) bool

// ComplianceApplicability decides whether a pattern applies to one compliance
// recommendation.
type ComplianceApplicability func(p *model.RegulatoryPattern, rec *model.ComplianceRecommendation) bool

// DefaultMarketApplicability applies a pattern when it names the
// recommendation's market.
func DefaultMarketApplicability(p model.Pattern, rec *model.MarketRecommendation) bool {
	for _, m := range p.Core().Markets {
		if m == rec.Market {
			return true
		}
	}
	return false
}

// DefaultComplianceApplicability applies a pattern when it names the
// recommendation's market and, if both sides declare categories, they overlap.
func DefaultComplianceApplicability(p *model.RegulatoryPattern, rec *model.ComplianceRecommendation) bool {
	marketOK := false
	for _, m := range p.Markets {
		if m == rec.Market {
			marketOK = true
			break
		}
	}
	if !marketOK {
		return false
	}
	if rec.Category == "" || len(p.ProductCategories) == 0 {
		return true
	}
	for _, c := range p.ProductCategories {
		if c == rec.Category {
			return true
		}
	}
	return false
}

// Engine applies learned patterns to recommendations and closes the feedback
// loop back into the pattern stores.
type Engine struct {
	exports    *pattern.ExportStore
	regulatory *pattern.RegulatoryStore
	apps       ApplicationLog
	metrics    *monitoring.Metrics
	now        func() time.Time

	marketApplies     MarketApplicability
	complianceApplies ComplianceApplicability
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMarketApplicability overrides the market applicability predicate.
func WithMarketApplicability(f MarketApplicability) Option {
	return func(e *Engine) { e.marketApplies = f }
}

// WithComplianceApplicability overrides the compliance applicability predicate.
func WithComplianceApplicability(f ComplianceApplicability) Option {
	return func(e *Engine) { e.complianceApplies = f }
}

// NewEngine wires a learning engine over the two stores. metrics may be nil.
func NewEngine(exports *pattern.ExportStore, regulatory *pattern.RegulatoryStore, apps ApplicationLog, metrics *monitoring.Metrics, opts ...Option) *Engine {
	e := &Engine{
		exports:           exports,
		regulatory:        regulatory,
		apps:              apps,
		metrics:           metrics,
		now:               time.Now,
		marketApplies:     DefaultMarketApplicability,
		complianceApplies: DefaultComplianceApplicability,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnhanceMarketRecommendations applies relevant patterns from both stores to
// each recommendation and returns the enhanced list plus one application
// record per applied pattern. Recommendations no pattern applies to pass
// through unchanged. Applications are recorded fire-and-forget; failures
// leave the input untouched rather than propagate.
func (e *Engine) EnhanceMarketRecommendations(ctx context.Context, businessID string, profile *model.BusinessProfile, recs []model.MarketRecommendation) ([]model.MarketRecommendation, []model.PatternApplication) {
	if len(recs) == 0 {
		return recs, nil
	}

	relevant := append(e.exports.FindRelevantPatterns(ctx, profile),
		e.regulatory.FindRelevantPatterns(ctx, profile)...)
	if len(relevant) == 0 {
		return recs, nil
	}

	var applications []model.PatternApplication
	for i := range recs {
		for _, sc := range relevant {
			if !e.marketApplies(sc.Pattern, &recs[i]) {
				continue
			}
			app := e.applyToMarket(&recs[i], sc, businessID)
			applications = append(applications, app)
		}
	}

	e.recordApplications(ctx, applications)
	return recs, applications
}

// applyToMarket mutates one recommendation with one pattern's evidence and
// returns the application record.
func (e *Engine) applyToMarket(rec *model.MarketRecommendation, sc pattern.Scored, businessID string) model.PatternApplication {
	core := sc.Pattern.Core()
	before := map[string]any{
		"score":          rec.Score,
		"entry_strategy": rec.EntryStrategy,
		"estimated_days": rec.EstimatedDays,
	}

	// Confidence-weighted score lift with diminishing headroom.
	lift := 0.1 * core.Confidence * core.SuccessRate
	rec.Score = clamp01(rec.Score + lift*(1-rec.Score))

	explanation := fmt.Sprintf("pattern %q (confidence %.2f, %d applications)",
		core.Name, core.Confidence, core.ApplicationCount)

	if esp, ok := sc.Pattern.(*model.ExportStrategyPattern); ok {
		if rec.EntryStrategy == "" && esp.EntryStrategy != "" {
			rec.EntryStrategy = esp.EntryStrategy
		}
		if rec.EstimatedDays == 0 && esp.TimelineAvgDays > 0 {
			rec.EstimatedDays = int(esp.TimelineAvgDays)
		}
	}
	rec.SuccessFactors = mergeBounded(rec.SuccessFactors, core.SuccessFactors, 10)
	rec.KnownChallenges = mergeBounded(rec.KnownChallenges, core.Challenges, 10)
	rec.Rationale = append(rec.Rationale, "Informed by "+explanation)

	source := model.SourceExportStrategy
	if sc.Pattern.Kind() == model.PatternKindRegulatory {
		source = model.SourceRegulatory
	}

	return model.PatternApplication{
		ID:                uuid.NewString(),
		BusinessID:        businessID,
		RecommendationID:  rec.ID,
		PatternID:         core.ID,
		Source:            source,
		AppliedConfidence: core.Confidence,
		Explanation:       explanation,
		Before:            before,
		After: map[string]any{
			"score":          rec.Score,
			"entry_strategy": rec.EntryStrategy,
			"estimated_days": rec.EstimatedDays,
		},
		AppliedAt: e.now(),
	}
}

// EnhanceComplianceRecommendations is the compliance-scoped counterpart of
// EnhanceMarketRecommendations, drawing only on regulatory patterns.
func (e *Engine) EnhanceComplianceRecommendations(ctx context.Context, businessID string, profile *model.BusinessProfile, recs []model.ComplianceRecommendation) ([]model.ComplianceRecommendation, []model.PatternApplication) {
	if len(recs) == 0 {
		return recs, nil
	}

	relevant := e.regulatory.FindRelevantPatterns(ctx, profile)
	if len(relevant) == 0 {
		return recs, nil
	}

	var applications []model.PatternApplication
	for i := range recs {
		for _, sc := range relevant {
			rp, ok := sc.Pattern.(*model.RegulatoryPattern)
			if !ok || !e.complianceApplies(rp, &recs[i]) {
				continue
			}
			app := e.applyToCompliance(&recs[i], rp, businessID)
			applications = append(applications, app)
		}
	}

	e.recordApplications(ctx, applications)
	return recs, applications
}

// applyToCompliance mutates one compliance recommendation with a regulatory
// pattern's evidence and returns the application record.
func (e *Engine) applyToCompliance(rec *model.ComplianceRecommendation, p *model.RegulatoryPattern, businessID string) model.PatternApplication {
	before := map[string]any{
		"warnings":    len(rec.Warnings),
		"mitigations": len(rec.Mitigations),
	}

	rec.Certifications = mergeBounded(rec.Certifications, p.Certifications, 10)
	if p.PatternType == model.RegulatoryComplianceBarrier {
		for _, ch := range p.Challenges {
			rec.Warnings = mergeBounded(rec.Warnings, []string{ch}, 10)
		}
		for _, advice := range sortedValues(p.Mitigations) {
			rec.Mitigations = mergeBounded(rec.Mitigations, []string{advice}, 10)
		}
	}

	explanation := fmt.Sprintf("regulatory pattern %q (confidence %.2f)", p.Name, p.Confidence)

	return model.PatternApplication{
		ID:                uuid.NewString(),
		BusinessID:        businessID,
		RecommendationID:  rec.ID,
		PatternID:         p.ID,
		Source:            model.SourceRegulatory,
		AppliedConfidence: p.Confidence,
		Explanation:       explanation,
		Before:            before,
		After: map[string]any{
			"warnings":    len(rec.Warnings),
			"mitigations": len(rec.Mitigations),
		},
		AppliedAt: e.now(),
	}
}

// ProcessFeedback resolves a stored application, adjusts the source pattern's
// confidence from the feedback, and persists the result through the owning
// store. Unlike the enhancement paths, errors propagate: lost feedback must
// be visible to the caller.
func (e *Engine) ProcessFeedback(ctx context.Context, businessID, applicationID string, helpful bool, details string) error {
	app, err := e.apps.GetApplication(ctx, applicationID)
	if err != nil {
		zap.L().Error("learning: application lookup failed",
			zap.String("application", applicationID),
			zap.Error(err),
		)
		return eris.Wrapf(err, "learning: resolve application %s", applicationID)
	}

	switch app.Source {
	case model.SourceExportStrategy:
		err = e.feedbackExport(ctx, app, helpful, details)
	case model.SourceRegulatory:
		err = e.feedbackRegulatory(ctx, app, helpful, details)
	default:
		err = eris.Errorf("learning: unknown pattern source %q", app.Source)
	}
	if err != nil {
		zap.L().Error("learning: feedback failed",
			zap.String("application", applicationID),
			zap.String("pattern", app.PatternID),
			zap.Error(err),
		)
		return err
	}

	e.metrics.ObserveFeedback(helpful)
	zap.L().Info("learning: feedback processed",
		zap.String("business", businessID),
		zap.String("pattern", app.PatternID),
		zap.Bool("helpful", helpful),
	)
	return nil
}

func (e *Engine) feedbackExport(ctx context.Context, app *model.PatternApplication, helpful bool, details string) error {
	p, err := e.exports.Get(ctx, app.PatternID)
	if err != nil {
		return eris.Wrap(err, "load export pattern")
	}
	updated := *p
	adjustFromFeedback(&updated.PatternCore, app, helpful, details, e.now())
	if err := e.exports.Upsert(ctx, &updated); err != nil {
		return eris.Wrap(err, "persist export pattern")
	}
	return nil
}

func (e *Engine) feedbackRegulatory(ctx context.Context, app *model.PatternApplication, helpful bool, details string) error {
	p, err := e.regulatory.Get(ctx, app.PatternID)
	if err != nil {
		return eris.Wrap(err, "load regulatory pattern")
	}
	updated := *p
	adjustFromFeedback(&updated.PatternCore, app, helpful, details, e.now())
	if err := e.regulatory.Upsert(ctx, &updated); err != nil {
		return eris.Wrap(err, "persist regulatory pattern")
	}
	return nil
}

// adjustFromFeedback applies the per-application confidence adjustment, folds
// the binary outcome into the success rate and appends the feedback record.
func adjustFromFeedback(core *model.PatternCore, app *model.PatternApplication, helpful bool, details string, now time.Time) {
	core.Confidence = pattern.AdjustConfidence(core.Confidence, app.AppliedConfidence, core.ApplicationCount, helpful)
	core.ApplicationCount++
	core.SuccessRate = pattern.UpdateSuccessRate(core.SuccessRate, core.ApplicationCount, helpful)
	core.Feedback = append(core.Feedback, model.FeedbackRecord{
		ApplicationID: app.ID,
		Helpful:       helpful,
		Details:       details,
		ReceivedAt:    now,
	})
	core.LastUpdated = now
}

// recordApplications persists application records fire-and-forget.
func (e *Engine) recordApplications(ctx context.Context, apps []model.PatternApplication) {
	for _, app := range apps {
		if err := e.apps.RecordApplication(ctx, app); err != nil {
			zap.L().Warn("learning: record application failed",
				zap.String("application", app.ID),
				zap.Error(err),
			)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// mergeBounded appends items absent from dst, capped at n entries.
func mergeBounded(dst, src []string, n int) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range src {
		if len(dst) >= n {
			break
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic advice ordering
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}
