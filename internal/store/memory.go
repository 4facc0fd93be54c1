package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/exportwise/advisor-cli/internal/model"
)

// MemoryStore is an in-process Store used by tests and ephemeral runs.
type MemoryStore struct {
	mu           sync.RWMutex
	patterns     map[string]patternRow
	outcomes     []model.ExportOutcome
	applications map[string]model.PatternApplication
	changes      []model.RegulatoryChange
	requirements map[string]model.RegulatoryRequirement
}

type patternRow struct {
	kind model.PatternKind
	data []byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		patterns:     make(map[string]patternRow),
		applications: make(map[string]model.PatternApplication),
		requirements: make(map[string]model.RegulatoryRequirement),
	}
}

// Migrate is a no-op.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// FindPatterns returns all non-archived patterns of one kind.
func (s *MemoryStore) FindPatterns(ctx context.Context, kind model.PatternKind) ([]model.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Pattern
	for _, row := range s.patterns {
		if row.kind != kind {
			continue
		}
		p, err := decodePattern(row.kind, row.data)
		if err != nil {
			return nil, err
		}
		if p.Core().Archived {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Core().ID < out[j].Core().ID })
	return out, nil
}

// InsertPattern stores a serialized copy of p.
func (s *MemoryStore) InsertPattern(ctx context.Context, p model.Pattern) error {
	return s.writePattern(p)
}

// UpdatePattern replaces the stored copy of p.
func (s *MemoryStore) UpdatePattern(ctx context.Context, p model.Pattern) error {
	return s.writePattern(p)
}

func (s *MemoryStore) writePattern(p model.Pattern) error {
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[p.Core().ID] = patternRow{kind: p.Kind(), data: data}
	return nil
}

// ArchivePattern marks the stored pattern archived.
func (s *MemoryStore) ArchivePattern(ctx context.Context, id, mergedInto string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.patterns[id]
	if !ok {
		return eris.Errorf("memory: pattern %s not found", id)
	}
	p, err := decodePattern(row.kind, row.data)
	if err != nil {
		return err
	}
	core := p.Core()
	core.Archived = true
	if core.MergedInto == "" {
		core.MergedInto = mergedInto
	}
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	s.patterns[id] = patternRow{kind: row.kind, data: data}
	return nil
}

// AppendOutcome records one outcome; duplicate ids are rejected.
func (s *MemoryStore) AppendOutcome(ctx context.Context, o model.ExportOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.outcomes {
		if existing.ID == o.ID {
			return eris.Errorf("memory: outcome %s already recorded", o.ID)
		}
	}
	s.outcomes = append(s.outcomes, o)
	return nil
}

// SuccessfulOutcomes returns recorded successful outcomes in insertion order.
func (s *MemoryStore) SuccessfulOutcomes(ctx context.Context) ([]model.ExportOutcome, error) {
	return s.filterOutcomes(true), nil
}

// FailedOutcomes returns recorded failed outcomes in insertion order.
func (s *MemoryStore) FailedOutcomes(ctx context.Context) ([]model.ExportOutcome, error) {
	return s.filterOutcomes(false), nil
}

func (s *MemoryStore) filterOutcomes(successful bool) []model.ExportOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ExportOutcome
	for _, o := range s.outcomes {
		if o.Successful == successful {
			out = append(out, o)
		}
	}
	return out
}

// RecordApplication stores one application record.
func (s *MemoryStore) RecordApplication(ctx context.Context, app model.PatternApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applications[app.ID] = app
	return nil
}

// GetApplication looks up an application by id.
func (s *MemoryStore) GetApplication(ctx context.Context, id string) (*model.PatternApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, eris.Errorf("memory: application %s not found", id)
	}
	return &app, nil
}

// InsertRegulatoryChange records one regulatory change.
func (s *MemoryStore) InsertRegulatoryChange(ctx context.Context, ch model.RegulatoryChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, ch)
	return nil
}

// ChangesSince returns a market's changes at or after since, oldest first.
func (s *MemoryStore) ChangesSince(ctx context.Context, market string, since time.Time) ([]model.RegulatoryChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.RegulatoryChange
	for _, ch := range s.changes {
		if ch.Market == market && !ch.OccurredAt.Before(since) {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

// UpsertRequirement stores one requirement record.
func (s *MemoryStore) UpsertRequirement(ctx context.Context, r model.RegulatoryRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements[r.Market+"|"+r.Category+"|"+r.Name] = r
	return nil
}

// Requirements returns a market's requirements, optionally category-scoped.
func (s *MemoryStore) Requirements(ctx context.Context, market, category string) ([]model.RegulatoryRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.RegulatoryRequirement
	for _, r := range s.requirements {
		if r.Market != market {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
