package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/exportwise/advisor-cli/internal/model"
)

// Pool abstracts the pgxpool methods the store uses, so tests can substitute
// pgxmock.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	data        JSONB NOT NULL,
	archived    BOOLEAN NOT NULL DEFAULT FALSE,
	merged_into TEXT,
	version     INTEGER NOT NULL DEFAULT 0,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_patterns_kind ON patterns (kind) WHERE NOT archived;

CREATE TABLE IF NOT EXISTS export_outcomes (
	id          TEXT PRIMARY KEY,
	business_id TEXT NOT NULL,
	market      TEXT NOT NULL,
	successful  BOOLEAN NOT NULL,
	data        JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_outcomes_successful ON export_outcomes (successful);

CREATE TABLE IF NOT EXISTS pattern_applications (
	id          TEXT PRIMARY KEY,
	business_id TEXT NOT NULL,
	pattern_id  TEXT NOT NULL,
	data        JSONB NOT NULL,
	applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS regulatory_changes (
	id          TEXT PRIMARY KEY,
	market      TEXT NOT NULL,
	category    TEXT,
	change_type TEXT NOT NULL,
	description TEXT,
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reg_changes_market ON regulatory_changes (market, occurred_at);

CREATE TABLE IF NOT EXISTS regulatory_requirements (
	market      TEXT NOT NULL,
	category    TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT,
	mandatory   BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (market, category, name)
);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// FindPatterns returns all non-archived patterns of one kind.
func (s *PostgresStore) FindPatterns(ctx context.Context, kind model.PatternKind) ([]model.Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, data FROM patterns WHERE kind = $1 AND NOT archived ORDER BY id`, string(kind))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find patterns")
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var k string
		var data []byte
		if err := rows.Scan(&k, &data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		p, err := decodePattern(model.PatternKind(k), data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate patterns")
	}
	return out, nil
}

// InsertPattern writes a new pattern row.
func (s *PostgresStore) InsertPattern(ctx context.Context, p model.Pattern) error {
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	core := p.Core()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO patterns (id, kind, data, archived, merged_into, version, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		core.ID, string(p.Kind()), data, core.Archived, core.MergedInto, core.Version, core.LastUpdated)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert pattern %s", core.ID)
	}
	return nil
}

// UpdatePattern replaces a pattern row, guarded by the version column.
func (s *PostgresStore) UpdatePattern(ctx context.Context, p model.Pattern) error {
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	core := p.Core()
	tag, err := s.pool.Exec(ctx,
		`UPDATE patterns SET data = $1, version = $2, updated_at = $3
		 WHERE id = $4 AND NOT archived AND version < $2`,
		data, core.Version, core.LastUpdated, core.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update pattern %s", core.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: pattern %s stale or archived", core.ID)
	}
	return nil
}

// ArchivePattern marks a pattern terminal.
func (s *PostgresStore) ArchivePattern(ctx context.Context, id, mergedInto string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE patterns SET archived = TRUE, merged_into = COALESCE(merged_into, NULLIF($1, '')),
		 version = version + 1, updated_at = now() WHERE id = $2`,
		mergedInto, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: archive pattern %s", id)
	}
	return nil
}

// AppendOutcome writes one export outcome. Outcomes are write-once; a
// duplicate id is rejected by the primary key.
func (s *PostgresStore) AppendOutcome(ctx context.Context, o model.ExportOutcome) error {
	data, err := encodeJSON(o, "outcome")
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO export_outcomes (id, business_id, market, successful, data, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		o.ID, o.BusinessID, o.Market, o.Successful, data, o.RecordedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: append outcome %s", o.ID)
	}
	return nil
}

// SuccessfulOutcomes returns all successful outcomes, oldest first.
func (s *PostgresStore) SuccessfulOutcomes(ctx context.Context) ([]model.ExportOutcome, error) {
	return s.outcomes(ctx, true)
}

// FailedOutcomes returns all failed outcomes, oldest first.
func (s *PostgresStore) FailedOutcomes(ctx context.Context) ([]model.ExportOutcome, error) {
	return s.outcomes(ctx, false)
}

func (s *PostgresStore) outcomes(ctx context.Context, successful bool) ([]model.ExportOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM export_outcomes WHERE successful = $1 ORDER BY recorded_at, id`, successful)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query outcomes")
	}
	defer rows.Close()

	var out []model.ExportOutcome
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		var o model.ExportOutcome
		if err := decodeJSON(data, &o, "outcome"); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate outcomes")
	}
	return out, nil
}

// RecordApplication persists one pattern application.
func (s *PostgresStore) RecordApplication(ctx context.Context, app model.PatternApplication) error {
	data, err := encodeJSON(app, "application")
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pattern_applications (id, business_id, pattern_id, data, applied_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		app.ID, app.BusinessID, app.PatternID, data, app.AppliedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: record application %s", app.ID)
	}
	return nil
}

// GetApplication looks up a stored application by id.
func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*model.PatternApplication, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM pattern_applications WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("postgres: application %s not found", id)
		}
		return nil, eris.Wrapf(err, "postgres: get application %s", id)
	}
	var app model.PatternApplication
	if err := decodeJSON(data, &app, "application"); err != nil {
		return nil, err
	}
	return &app, nil
}

// InsertRegulatoryChange records one observed regulatory change.
func (s *PostgresStore) InsertRegulatoryChange(ctx context.Context, ch model.RegulatoryChange) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO regulatory_changes (id, market, category, change_type, description, occurred_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)`,
		ch.ID, ch.Market, ch.Category, ch.ChangeType, ch.Description, ch.OccurredAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert regulatory change %s", ch.ID)
	}
	return nil
}

// ChangesSince returns a market's changes at or after since, oldest first.
func (s *PostgresStore) ChangesSince(ctx context.Context, market string, since time.Time) ([]model.RegulatoryChange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market, COALESCE(category, ''), change_type, COALESCE(description, ''), occurred_at
		 FROM regulatory_changes WHERE market = $1 AND occurred_at >= $2 ORDER BY occurred_at`,
		market, since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query regulatory changes")
	}
	defer rows.Close()

	var out []model.RegulatoryChange
	for rows.Next() {
		var ch model.RegulatoryChange
		if err := rows.Scan(&ch.ID, &ch.Market, &ch.Category, &ch.ChangeType, &ch.Description, &ch.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan regulatory change")
		}
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate regulatory changes")
	}
	return out, nil
}

// UpsertRequirement writes one regulatory requirement record.
func (s *PostgresStore) UpsertRequirement(ctx context.Context, r model.RegulatoryRequirement) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO regulatory_requirements (market, category, name, description, mandatory)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (market, category, name)
		 DO UPDATE SET description = EXCLUDED.description, mandatory = EXCLUDED.mandatory`,
		r.Market, r.Category, r.Name, r.Description, r.Mandatory)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert requirement")
	}
	return nil
}

// Requirements returns a market's requirements, optionally category-scoped.
func (s *PostgresStore) Requirements(ctx context.Context, market, category string) ([]model.RegulatoryRequirement, error) {
	query := `SELECT market, category, name, COALESCE(description, ''), mandatory
		 FROM regulatory_requirements WHERE market = $1`
	args := []any{market}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query requirements")
	}
	defer rows.Close()

	var out []model.RegulatoryRequirement
	for rows.Next() {
		var r model.RegulatoryRequirement
		if err := rows.Scan(&r.Market, &r.Category, &r.Name, &r.Description, &r.Mandatory); err != nil {
			return nil, eris.Wrap(err, "postgres: scan requirement")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate requirements")
	}
	return out, nil
}
