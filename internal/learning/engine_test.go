package learning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/pattern"
	"github.com/exportwise/advisor-cli/internal/similarity"
	"github.com/exportwise/advisor-cli/internal/store"
)

type testEnv struct {
	engine     *Engine
	exports    *pattern.ExportStore
	regulatory *pattern.RegulatoryStore
	mem        *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	simEngine := similarity.NewEngine(similarity.DefaultConfig())
	exports := pattern.NewExportStore(
		pattern.NewMemoryRepository(model.PatternKindExportStrategy, mem), mem, simEngine, nil)
	regulatory := pattern.NewRegulatoryStore(
		pattern.NewMemoryRepository(model.PatternKindRegulatory, mem), mem, mem, simEngine, nil)
	return &testEnv{
		engine:     NewEngine(exports, regulatory, mem, nil),
		exports:    exports,
		regulatory: regulatory,
		mem:        mem,
	}
}

func enhanceProfile() *model.BusinessProfile {
	return &model.BusinessProfile{
		ID:            "b-1",
		EmployeeCount: 40,
		Products:      []model.Product{{Name: "Sensor Module", Category: "Electronics"}},
		TargetMarkets: []string{"DE", "FR"},
	}
}

func seedExportPattern(t *testing.T, env *testEnv) *model.ExportStrategyPattern {
	t.Helper()
	p := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:                "p-exp",
			Name:              "DE via distributor",
			ProductCategories: []string{"Electronics"},
			Markets:           []string{"DE"},
			BusinessSize:      model.SizeRange{Min: 10, Max: 100},
			Confidence:        0.8,
			SuccessRate:       0.9,
			ApplicationCount:  20,
			SuccessFactors:    []string{"local partner"},
			Challenges:        []string{"customs delay"},
		},
		PatternType:     model.ExportPatternOutcome,
		EntryStrategy:   "distributor",
		TimelineAvgDays: 120,
	}
	require.NoError(t, env.exports.Upsert(context.Background(), p))
	return p
}

func TestEnhanceMarketRecommendations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedExportPattern(t, env)

	recs := []model.MarketRecommendation{
		{ID: "r-de", Market: "DE", Score: 0.5},
		{ID: "r-jp", Market: "JP", Score: 0.4},
	}

	enhanced, apps := env.engine.EnhanceMarketRecommendations(ctx, "b-1", enhanceProfile(), recs)
	require.Len(t, enhanced, 2)
	require.Len(t, apps, 1)

	de := enhanced[0]
	// lift = 0.1 * 0.8 * 0.9 applied to the remaining headroom.
	assert.InDelta(t, 0.5+0.072*0.5, de.Score, 0.001)
	assert.Equal(t, "distributor", de.EntryStrategy)
	assert.Equal(t, 120, de.EstimatedDays)
	assert.Contains(t, de.SuccessFactors, "local partner")
	assert.Contains(t, de.KnownChallenges, "customs delay")
	require.Len(t, de.Rationale, 1)

	// The JP recommendation passes through untouched.
	assert.Equal(t, 0.4, enhanced[1].Score)
	assert.Empty(t, enhanced[1].Rationale)

	app := apps[0]
	assert.Equal(t, "b-1", app.BusinessID)
	assert.Equal(t, "r-de", app.RecommendationID)
	assert.Equal(t, "p-exp", app.PatternID)
	assert.Equal(t, model.SourceExportStrategy, app.Source)
	assert.InDelta(t, 0.8, app.AppliedConfidence, 0.001)

	// Applications are persisted for later feedback.
	stored, err := env.mem.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.PatternID, stored.PatternID)
}

func TestEnhanceMarketRecommendationsNoPatterns(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	recs := []model.MarketRecommendation{{ID: "r-1", Market: "DE", Score: 0.5}}
	enhanced, apps := env.engine.EnhanceMarketRecommendations(ctx, "b-1", enhanceProfile(), recs)

	assert.Equal(t, recs, enhanced)
	assert.Empty(t, apps)
}

func TestEnhanceComplianceRecommendations(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	barrier := &model.RegulatoryPattern{
		PatternCore: model.PatternCore{
			ID:                "p-reg",
			Name:              "Compliance barriers in DE",
			ProductCategories: []string{"Electronics"},
			Markets:           []string{"DE"},
			Confidence:        0.7,
			SuccessRate:       0,
			ApplicationCount:  5,
			Challenges:        []string{"missing CE certification"},
			Certifications:    []string{"CE"},
		},
		PatternType: model.RegulatoryComplianceBarrier,
		Domain:      "compliance",
		Mitigations: map[string]string{"certification": "obtain required certifications early"},
	}
	require.NoError(t, env.regulatory.Upsert(ctx, barrier))

	recs := []model.ComplianceRecommendation{{ID: "c-1", Market: "DE", Category: "Electronics"}}
	enhanced, apps := env.engine.EnhanceComplianceRecommendations(ctx, "b-1", enhanceProfile(), recs)
	require.Len(t, enhanced, 1)
	require.Len(t, apps, 1)

	c := enhanced[0]
	assert.Contains(t, c.Certifications, "CE")
	assert.Contains(t, c.Warnings, "missing CE certification")
	assert.Contains(t, c.Mitigations, "obtain required certifications early")
	assert.Equal(t, model.SourceRegulatory, apps[0].Source)
}

func TestProcessFeedbackHelpful(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedExportPattern(t, env)

	recs := []model.MarketRecommendation{{ID: "r-de", Market: "DE", Score: 0.5}}
	_, apps := env.engine.EnhanceMarketRecommendations(ctx, "b-1", enhanceProfile(), recs)
	require.Len(t, apps, 1)

	require.NoError(t, env.engine.ProcessFeedback(ctx, "b-1", apps[0].ID, true, "spot on"))

	p, err := env.exports.Get(ctx, "p-exp")
	require.NoError(t, err)
	assert.Equal(t, 21, p.ApplicationCount)
	assert.Greater(t, p.Confidence, 0.8)
	assert.InDelta(t, pattern.UpdateSuccessRate(0.9, 21, true), p.SuccessRate, 0.001)
	require.Len(t, p.Feedback, 1)
	assert.Equal(t, apps[0].ID, p.Feedback[0].ApplicationID)
}

func TestProcessFeedbackUnhelpfulLowersConfidence(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedExportPattern(t, env)

	recs := []model.MarketRecommendation{{ID: "r-de", Market: "DE", Score: 0.5}}
	_, apps := env.engine.EnhanceMarketRecommendations(ctx, "b-1", enhanceProfile(), recs)
	require.Len(t, apps, 1)

	require.NoError(t, env.engine.ProcessFeedback(ctx, "b-1", apps[0].ID, false, "did not apply"))

	p, err := env.exports.Get(ctx, "p-exp")
	require.NoError(t, err)
	assert.Less(t, p.Confidence, 0.8)
	assert.Less(t, p.SuccessRate, 0.9)
}

func TestProcessFeedbackUnknownApplication(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	assert.Error(t, env.engine.ProcessFeedback(ctx, "b-1", "missing", true, ""))
}

func TestMergeBounded(t *testing.T) {
	got := mergeBounded([]string{"a", "b"}, []string{"b", "c", "d"}, 3)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.3, clamp01(0.3))
}
