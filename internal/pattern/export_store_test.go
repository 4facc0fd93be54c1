package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/similarity"
	"github.com/exportwise/advisor-cli/internal/store"
)

func newTestExportStore(t *testing.T) *ExportStore {
	t.Helper()
	mem := store.NewMemory()
	repo := NewMemoryRepository(model.PatternKindExportStrategy, mem)
	return NewExportStore(repo, mem, similarity.NewEngine(similarity.DefaultConfig()), nil)
}

func electronicsProfile() *model.BusinessProfile {
	return &model.BusinessProfile{
		ID:            "b-1",
		EmployeeCount: 40,
		Products:      []model.Product{{Name: "Sensor Module", Category: "Electronics"}},
		TargetMarkets: []string{"DE", "FR"},
	}
}

func successfulOutcome(id, businessID, market string) model.ExportOutcome {
	return model.ExportOutcome{
		ID:                 id,
		BusinessID:         businessID,
		Market:             market,
		Products:           []model.Product{{Name: "Sensor Module", Category: "Electronics"}},
		BusinessSize:       40,
		EntryStrategy:      "distributor",
		ComplianceApproach: "local agent",
		LogisticsModel:     "3PL",
		Successful:         true,
		TimelineDays:       120,
		Challenges:         []string{"customs delay"},
		SuccessFactors:     []string{"local partner"},
	}
}

func TestFindRelevantPatterns(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	matching := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:                "p-match",
			ProductCategories: []string{"Electronics"},
			Markets:           []string{"DE"},
			BusinessSize:      model.SizeRange{Min: 10, Max: 100},
		},
		PatternType:   model.ExportPatternOutcome,
		EntryStrategy: "distributor",
	}
	// Market overlaps but the category mismatch keeps the score below the bar.
	weak := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:                "p-weak",
			ProductCategories: []string{"Software"},
			Markets:           []string{"FR"},
			BusinessSize:      model.SizeRange{Min: 10, Max: 100},
		},
		PatternType: model.ExportPatternOutcome,
	}
	// No market or category overlap: dropped by the pre-filter.
	unrelated := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:                "p-unrelated",
			ProductCategories: []string{"Hardware"},
			Markets:           []string{"JP"},
			BusinessSize:      model.SizeRange{Min: 10, Max: 100},
		},
		PatternType: model.ExportPatternOutcome,
	}
	for _, p := range []*model.ExportStrategyPattern{matching, weak, unrelated} {
		require.NoError(t, s.Upsert(ctx, p))
	}

	got := s.FindRelevantPatterns(ctx, electronicsProfile())
	require.Len(t, got, 1)
	assert.Equal(t, "p-match", got[0].Pattern.Core().ID)
	assert.True(t, got[0].Result.IsMatch)
}

func TestFindRelevantPatternsSizePrefilter(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	tooBig := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:                "p-big",
			ProductCategories: []string{"Electronics"},
			Markets:           []string{"DE"},
			BusinessSize:      model.SizeRange{Min: 500, Max: 1000},
		},
		PatternType: model.ExportPatternOutcome,
	}
	require.NoError(t, s.Upsert(ctx, tooBig))

	// 40 employees is far below half the range minimum.
	assert.Empty(t, s.FindRelevantPatterns(ctx, electronicsProfile()))
}

func TestLearnFromOutcomeSeeds(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	p := s.LearnFromOutcome(ctx, successfulOutcome("o-1", "b-1", "DE"))
	require.NotNil(t, p)

	assert.Equal(t, model.ExportPatternOutcome, p.PatternType)
	assert.Equal(t, []string{"DE"}, p.Markets)
	assert.Equal(t, []string{"Electronics"}, p.ProductCategories)
	assert.InDelta(t, 0.6, p.Confidence, 0.001)
	assert.InDelta(t, 1.0, p.SuccessRate, 0.001)
	assert.Equal(t, 1, p.ApplicationCount)
	assert.Equal(t, model.SizeRange{Min: 28, Max: 52}, p.BusinessSize)
	assert.Equal(t, "distributor", p.EntryStrategy)
	assert.Equal(t, 120, p.TimelineMinDays)
	assert.Equal(t, 120, p.TimelineMaxDays)
}

func TestLearnFromOutcomeReinforces(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	first := s.LearnFromOutcome(ctx, successfulOutcome("o-1", "b-1", "DE"))
	require.NotNil(t, first)

	second := successfulOutcome("o-2", "b-2", "DE")
	second.TimelineDays = 90
	second.Challenges = []string{"labeling"}
	p := s.LearnFromOutcome(ctx, second)
	require.NotNil(t, p)

	assert.Equal(t, first.ID, p.ID)
	assert.Equal(t, 2, p.ApplicationCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 0.001)
	assert.InDelta(t, CalculateConfidence(1.0, 2), p.Confidence, 0.001)
	assert.Equal(t, 90, p.TimelineMinDays)
	assert.Equal(t, 120, p.TimelineMaxDays)
	assert.InDelta(t, 105, p.TimelineAvgDays, 0.001)
	assert.ElementsMatch(t, []string{"customs delay", "labeling"}, p.Challenges)
}

func TestLearnFromOutcomeSkipsFailures(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	o := successfulOutcome("o-1", "b-1", "DE")
	o.Successful = false
	assert.Nil(t, s.LearnFromOutcome(ctx, o))
	assert.Empty(t, s.GetAllPatterns(ctx))
}

func TestLearnFromOutcomeDifferentStrategySeedsNew(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	first := s.LearnFromOutcome(ctx, successfulOutcome("o-1", "b-1", "DE"))
	require.NotNil(t, first)

	second := successfulOutcome("o-2", "b-2", "DE")
	second.EntryStrategy = "direct sales"
	p := s.LearnFromOutcome(ctx, second)
	require.NotNil(t, p)

	assert.NotEqual(t, first.ID, p.ID)
	assert.Len(t, s.GetAllPatterns(ctx), 2)
}

func TestUpdatePatternConfidence(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	seeded := s.LearnFromOutcome(ctx, successfulOutcome("o-1", "b-1", "DE"))
	require.NotNil(t, seeded)

	require.NoError(t, s.UpdatePatternConfidence(ctx, seeded.ID, true, "worked well"))

	p, err := s.Get(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.ApplicationCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 0.001)
	assert.InDelta(t, CalculateConfidence(1.0, 2), p.Confidence, 0.001)
	require.Len(t, p.Feedback, 1)
	assert.True(t, p.Feedback[0].Helpful)
	assert.Equal(t, "worked well", p.Feedback[0].Details)
}

func TestUpdatePatternConfidenceUnknownID(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)
	assert.Error(t, s.UpdatePatternConfidence(ctx, "missing", true, ""))
}

func TestArchivePatternRemovesFromLookups(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	seeded := s.LearnFromOutcome(ctx, successfulOutcome("o-1", "b-1", "DE"))
	require.NotNil(t, seeded)

	require.NoError(t, s.ArchivePattern(ctx, seeded.ID, ""))

	_, err := s.Get(ctx, seeded.ID)
	assert.Error(t, err)
	assert.Empty(t, s.GetAllPatterns(ctx))
	assert.Empty(t, s.FindRelevantPatterns(ctx, electronicsProfile()))
}

func TestRepositoryVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(model.PatternKindExportStrategy, nil)

	p := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{ID: "p-1"},
		PatternType: model.ExportPatternOutcome,
	}
	require.NoError(t, repo.Upsert(ctx, p)) // version 0 -> 1

	stale := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{ID: "p-1", Version: 0},
		PatternType: model.ExportPatternOutcome,
	}
	err := repo.Upsert(ctx, stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
