package pattern

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
)

// ErrNotFound is returned when a pattern id is unknown or archived.
var ErrNotFound = eris.New("pattern: not found")

// ErrVersionConflict is returned by Upsert when the stored version does not
// match the incoming pattern's version. Callers re-read and retry.
var ErrVersionConflict = eris.New("pattern: version conflict")

// Repository owns the live pattern collection for one store. Archived
// patterns are never returned by Get, All or Query.
type Repository interface {
	Get(ctx context.Context, id string) (model.Pattern, error)
	// Upsert inserts a new pattern (Version 0) or replaces an existing one.
	// The incoming Version must match the stored one; on success the stored
	// Version is bumped.
	Upsert(ctx context.Context, p model.Pattern) error
	// Archive marks the pattern terminal, recording the merge target if any.
	Archive(ctx context.Context, id, mergedInto string) error
	All(ctx context.Context) ([]model.Pattern, error)
	Query(ctx context.Context, keep func(model.Pattern) bool) ([]model.Pattern, error)
}

// Persister is the injected storage handle behind a repository: a small set
// of CRUD verbs over whatever backend the deployment uses.
type Persister interface {
	FindPatterns(ctx context.Context, kind model.PatternKind) ([]model.Pattern, error)
	InsertPattern(ctx context.Context, p model.Pattern) error
	UpdatePattern(ctx context.Context, p model.Pattern) error
	ArchivePattern(ctx context.Context, id, mergedInto string) error
}

// MemoryRepository keeps the queryable set in memory with optional
// write-through persistence. The cache is filled once at Initialize;
// persistence failures are logged and do not fail the mutation, because
// the in-process set is the single authority per store.
type MemoryRepository struct {
	mu        sync.RWMutex
	kind      model.PatternKind
	patterns  map[string]model.Pattern
	persister Persister // nil for purely in-memory use
}

// NewMemoryRepository creates an empty repository for one pattern kind.
func NewMemoryRepository(kind model.PatternKind, persister Persister) *MemoryRepository {
	return &MemoryRepository{
		kind:      kind,
		patterns:  make(map[string]model.Pattern),
		persister: persister,
	}
}

// Initialize loads the live set from the persister. A load failure leaves an
// empty set and is logged rather than propagated; subsequent queries simply
// see no patterns.
func (r *MemoryRepository) Initialize(ctx context.Context) {
	if r.persister == nil {
		return
	}
	loaded, err := r.persister.FindPatterns(ctx, r.kind)
	if err != nil {
		zap.L().Error("pattern: initialize failed, starting empty",
			zap.String("kind", string(r.kind)),
			zap.Error(err),
		)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range loaded {
		if p.Core().Archived {
			continue
		}
		r.patterns[p.Core().ID] = p
	}
	zap.L().Info("pattern: repository initialized",
		zap.String("kind", string(r.kind)),
		zap.Int("patterns", len(r.patterns)),
	)
}

// Get returns a live pattern by id.
func (r *MemoryRepository) Get(ctx context.Context, id string) (model.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patterns[id]
	if !ok || p.Core().Archived {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return p, nil
}

// Upsert stores p, enforcing optimistic versioning against the live set.
func (r *MemoryRepository) Upsert(ctx context.Context, p model.Pattern) error {
	core := p.Core()
	if core.ID == "" {
		return eris.New("pattern: upsert requires an id")
	}

	r.mu.Lock()
	existing, ok := r.patterns[core.ID]
	if ok {
		if existing.Core().Archived {
			r.mu.Unlock()
			return eris.Wrapf(ErrNotFound, "id %s is archived", core.ID)
		}
		if existing.Core().Version != core.Version {
			r.mu.Unlock()
			return eris.Wrapf(ErrVersionConflict, "id %s: have %d, got %d",
				core.ID, existing.Core().Version, core.Version)
		}
	}
	core.Version++
	r.patterns[core.ID] = p
	r.mu.Unlock()

	if r.persister != nil {
		var err error
		if ok {
			err = r.persister.UpdatePattern(ctx, p)
		} else {
			err = r.persister.InsertPattern(ctx, p)
		}
		if err != nil {
			zap.L().Warn("pattern: persist failed",
				zap.String("id", core.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Archive removes the pattern from the live set permanently.
func (r *MemoryRepository) Archive(ctx context.Context, id, mergedInto string) error {
	r.mu.Lock()
	p, ok := r.patterns[id]
	if !ok {
		r.mu.Unlock()
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	core := p.Core()
	core.Archived = true
	if core.MergedInto == "" {
		core.MergedInto = mergedInto
	}
	core.Version++
	delete(r.patterns, id)
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.ArchivePattern(ctx, id, mergedInto); err != nil {
			zap.L().Warn("pattern: archive persist failed",
				zap.String("id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}

// All returns the live patterns sorted by id for reproducible output.
func (r *MemoryRepository) All(ctx context.Context) ([]model.Pattern, error) {
	return r.Query(ctx, func(model.Pattern) bool { return true })
}

// Query returns live patterns satisfying keep, sorted by id.
func (r *MemoryRepository) Query(ctx context.Context, keep func(model.Pattern) bool) ([]model.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Pattern
	for _, p := range r.patterns {
		if !p.Core().Archived && keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Core().ID < out[j].Core().ID
	})
	return out, nil
}
