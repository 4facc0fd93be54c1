package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exportwise/advisor-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStoreConformance(t *testing.T) {
	runStoreConformance(t, newTestSQLite(t))
}

func TestSQLiteUpdatePatternStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	p := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{
			ID:          "p-1",
			Markets:     []string{"DE"},
			LastUpdated: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		},
		PatternType: model.ExportPatternOutcome,
	}
	require.NoError(t, s.InsertPattern(ctx, p))

	p.Version = 1
	require.NoError(t, s.UpdatePattern(ctx, p))

	// A write that does not advance the version is rejected.
	err := s.UpdatePattern(ctx, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale")
}

func TestSQLiteUpdateArchivedPattern(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	p := &model.ExportStrategyPattern{
		PatternCore: model.PatternCore{ID: "p-1", Markets: []string{"DE"}},
		PatternType: model.ExportPatternOutcome,
	}
	require.NoError(t, s.InsertPattern(ctx, p))
	require.NoError(t, s.ArchivePattern(ctx, "p-1", "p-2"))

	p.Version = 5
	assert.Error(t, s.UpdatePattern(ctx, p))
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "advisor.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.AppendOutcome(ctx, model.ExportOutcome{
		ID: "o-1", BusinessID: "b-1", Market: "DE", Successful: true,
		RecordedAt: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.SuccessfulOutcomes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o-1", got[0].ID)
}
