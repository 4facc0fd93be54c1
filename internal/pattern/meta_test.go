package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportwise/advisor-cli/internal/model"
)

func metaPatterns(t *testing.T, s *ExportStore, pt model.ExportPatternType) []*model.ExportStrategyPattern {
	t.Helper()
	var out []*model.ExportStrategyPattern
	for _, p := range s.GetAllPatterns(context.Background()) {
		if p.PatternType == pt {
			out = append(out, p)
		}
	}
	return out
}

func TestDetectMetaPatternsBelowMinimumIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	for i := 0; i < 4; i++ {
		o := successfulOutcome(string(rune('a'+i)), "b-1", "DE")
		require.NoError(t, s.outcomes.AppendOutcome(ctx, o))
	}

	require.NoError(t, s.DetectMetaPatterns(ctx))
	assert.Empty(t, s.GetAllPatterns(ctx))
}

func TestDetectMetaPatternsMarketGroup(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	// Five successful outcomes, three of them in DE.
	outcomes := []model.ExportOutcome{
		successfulOutcome("o-1", "b-1", "DE"),
		successfulOutcome("o-2", "b-2", "DE"),
		successfulOutcome("o-3", "b-3", "DE"),
		successfulOutcome("o-4", "b-4", "FR"),
		successfulOutcome("o-5", "b-5", "JP"),
	}
	for _, o := range outcomes {
		require.NoError(t, s.outcomes.AppendOutcome(ctx, o))
	}

	require.NoError(t, s.DetectMetaPatterns(ctx))

	market := metaPatterns(t, s, model.ExportPatternMarket)
	require.Len(t, market, 1)
	p := market[0]
	assert.Equal(t, "market:DE", p.GroupKey)
	assert.Equal(t, []string{"DE"}, p.Markets)
	assert.Equal(t, 3, p.ApplicationCount)
	assert.InDelta(t, 1.0, p.SuccessRate, 0.001)
	assert.Equal(t, "distributor", p.EntryStrategy)
	assert.InDelta(t, CalculateConfidence(1.0, 3), p.Confidence, 0.001)
}

func TestDetectMetaPatternsStableIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	for i := 0; i < 5; i++ {
		o := successfulOutcome(string(rune('a'+i)), "b-1", "DE")
		require.NoError(t, s.outcomes.AppendOutcome(ctx, o))
	}

	require.NoError(t, s.DetectMetaPatterns(ctx))
	first := metaPatterns(t, s, model.ExportPatternMarket)
	require.Len(t, first, 1)
	firstID := first[0].ID

	// Re-detection after one more outcome updates the same pattern in place.
	require.NoError(t, s.outcomes.AppendOutcome(ctx, successfulOutcome("o-extra", "b-9", "DE")))
	require.NoError(t, s.DetectMetaPatterns(ctx))

	second := metaPatterns(t, s, model.ExportPatternMarket)
	require.Len(t, second, 1)
	assert.Equal(t, firstID, second[0].ID)
	assert.Equal(t, 6, second[0].ApplicationCount)
}

func TestDetectMetaPatternsCrossMarket(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	// b-1 exports successfully to three markets; b-2 and b-3 stay single-market.
	outcomes := []model.ExportOutcome{
		successfulOutcome("o-1", "b-1", "DE"),
		successfulOutcome("o-2", "b-1", "FR"),
		successfulOutcome("o-3", "b-1", "ES"),
		successfulOutcome("o-4", "b-2", "JP"),
		successfulOutcome("o-5", "b-3", "JP"),
	}
	for _, o := range outcomes {
		require.NoError(t, s.outcomes.AppendOutcome(ctx, o))
	}

	require.NoError(t, s.DetectMetaPatterns(ctx))

	cross := metaPatterns(t, s, model.ExportPatternCrossMarket)
	require.Len(t, cross, 1)
	assert.Equal(t, "cross_market", cross[0].GroupKey)
	assert.ElementsMatch(t, []string{"DE", "FR", "ES"}, cross[0].Markets)
	assert.Equal(t, 3, cross[0].ApplicationCount)
}

func TestDetectMetaPatternsSizeBucket(t *testing.T) {
	ctx := context.Background()
	s := newTestExportStore(t)

	// All five outcomes come from small businesses (10-49 headcount).
	for i, market := range []string{"DE", "FR", "ES", "JP", "US"} {
		o := successfulOutcome(string(rune('a'+i)), "b-1", market)
		o.BusinessSize = 20 + i
		require.NoError(t, s.outcomes.AppendOutcome(ctx, o))
	}

	require.NoError(t, s.DetectMetaPatterns(ctx))

	buckets := metaPatterns(t, s, model.ExportPatternSizeBucket)
	require.Len(t, buckets, 1)
	assert.Equal(t, "size:small", buckets[0].GroupKey)
	assert.Equal(t, model.SizeRange{Min: 10, Max: 49}, buckets[0].BusinessSize)
	assert.Equal(t, 5, buckets[0].ApplicationCount)
}
