package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/exportwise/advisor-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite for local and
// development use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS patterns (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	data        TEXT NOT NULL,
	archived    INTEGER NOT NULL DEFAULT 0,
	merged_into TEXT,
	version     INTEGER NOT NULL DEFAULT 0,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_patterns_kind ON patterns (kind, archived);

CREATE TABLE IF NOT EXISTS export_outcomes (
	id          TEXT PRIMARY KEY,
	business_id TEXT NOT NULL,
	market      TEXT NOT NULL,
	successful  INTEGER NOT NULL,
	data        TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pattern_applications (
	id          TEXT PRIMARY KEY,
	business_id TEXT NOT NULL,
	pattern_id  TEXT NOT NULL,
	data        TEXT NOT NULL,
	applied_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS regulatory_changes (
	id          TEXT PRIMARY KEY,
	market      TEXT NOT NULL,
	category    TEXT,
	change_type TEXT NOT NULL,
	description TEXT,
	occurred_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS regulatory_requirements (
	market      TEXT NOT NULL,
	category    TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT,
	mandatory   INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (market, category, name)
);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindPatterns returns all non-archived patterns of one kind.
func (s *SQLiteStore) FindPatterns(ctx context.Context, kind model.PatternKind) ([]model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, data FROM patterns WHERE kind = ? AND archived = 0 ORDER BY id`, string(kind))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find patterns")
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var k, data string
		if err := rows.Scan(&k, &data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		p, err := decodePattern(model.PatternKind(k), []byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate patterns")
}

// InsertPattern writes a new pattern row.
func (s *SQLiteStore) InsertPattern(ctx context.Context, p model.Pattern) error {
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	core := p.Core()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO patterns (id, kind, data, archived, merged_into, version, updated_at)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		core.ID, string(p.Kind()), string(data), boolToInt(core.Archived), core.MergedInto, core.Version, core.LastUpdated)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert pattern %s", core.ID)
	}
	return nil
}

// UpdatePattern replaces a pattern row, guarded by the version column.
func (s *SQLiteStore) UpdatePattern(ctx context.Context, p model.Pattern) error {
	data, err := encodePattern(p)
	if err != nil {
		return err
	}
	core := p.Core()
	res, err := s.db.ExecContext(ctx,
		`UPDATE patterns SET data = ?, version = ?, updated_at = ?
		 WHERE id = ? AND archived = 0 AND version < ?`,
		string(data), core.Version, core.LastUpdated, core.ID, core.Version)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update pattern %s", core.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: pattern %s stale or archived", core.ID)
	}
	return nil
}

// ArchivePattern marks a pattern terminal.
func (s *SQLiteStore) ArchivePattern(ctx context.Context, id, mergedInto string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE patterns SET archived = 1, merged_into = COALESCE(merged_into, NULLIF(?, '')),
		 version = version + 1, updated_at = datetime('now') WHERE id = ?`,
		mergedInto, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: archive pattern %s", id)
	}
	return nil
}

// AppendOutcome writes one export outcome.
func (s *SQLiteStore) AppendOutcome(ctx context.Context, o model.ExportOutcome) error {
	data, err := encodeJSON(o, "outcome")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO export_outcomes (id, business_id, market, successful, data, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.BusinessID, o.Market, boolToInt(o.Successful), string(data), o.RecordedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append outcome %s", o.ID)
	}
	return nil
}

// SuccessfulOutcomes returns all successful outcomes, oldest first.
func (s *SQLiteStore) SuccessfulOutcomes(ctx context.Context) ([]model.ExportOutcome, error) {
	return s.outcomes(ctx, true)
}

// FailedOutcomes returns all failed outcomes, oldest first.
func (s *SQLiteStore) FailedOutcomes(ctx context.Context) ([]model.ExportOutcome, error) {
	return s.outcomes(ctx, false)
}

func (s *SQLiteStore) outcomes(ctx context.Context, successful bool) ([]model.ExportOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM export_outcomes WHERE successful = ? ORDER BY recorded_at, id`,
		boolToInt(successful))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query outcomes")
	}
	defer rows.Close()

	var out []model.ExportOutcome
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outcome")
		}
		var o model.ExportOutcome
		if err := decodeJSON([]byte(data), &o, "outcome"); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate outcomes")
}

// RecordApplication persists one pattern application.
func (s *SQLiteStore) RecordApplication(ctx context.Context, app model.PatternApplication) error {
	data, err := encodeJSON(app, "application")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pattern_applications (id, business_id, pattern_id, data, applied_at)
		 VALUES (?, ?, ?, ?, ?)`,
		app.ID, app.BusinessID, app.PatternID, string(data), app.AppliedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record application %s", app.ID)
	}
	return nil
}

// GetApplication looks up a stored application by id.
func (s *SQLiteStore) GetApplication(ctx context.Context, id string) (*model.PatternApplication, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM pattern_applications WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Errorf("sqlite: application %s not found", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get application %s", id)
	}
	var app model.PatternApplication
	if err := decodeJSON([]byte(data), &app, "application"); err != nil {
		return nil, err
	}
	return &app, nil
}

// InsertRegulatoryChange records one observed regulatory change.
func (s *SQLiteStore) InsertRegulatoryChange(ctx context.Context, ch model.RegulatoryChange) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regulatory_changes (id, market, category, change_type, description, occurred_at)
		 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?)`,
		ch.ID, ch.Market, ch.Category, ch.ChangeType, ch.Description, ch.OccurredAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert regulatory change %s", ch.ID)
	}
	return nil
}

// ChangesSince returns a market's changes at or after since, oldest first.
func (s *SQLiteStore) ChangesSince(ctx context.Context, market string, since time.Time) ([]model.RegulatoryChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, market, COALESCE(category, ''), change_type, COALESCE(description, ''), occurred_at
		 FROM regulatory_changes WHERE market = ? AND occurred_at >= ? ORDER BY occurred_at`,
		market, since)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query regulatory changes")
	}
	defer rows.Close()

	var out []model.RegulatoryChange
	for rows.Next() {
		var ch model.RegulatoryChange
		if err := rows.Scan(&ch.ID, &ch.Market, &ch.Category, &ch.ChangeType, &ch.Description, &ch.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan regulatory change")
		}
		out = append(out, ch)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate regulatory changes")
}

// UpsertRequirement writes one regulatory requirement record.
func (s *SQLiteStore) UpsertRequirement(ctx context.Context, r model.RegulatoryRequirement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO regulatory_requirements (market, category, name, description, mandatory)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (market, category, name)
		 DO UPDATE SET description = excluded.description, mandatory = excluded.mandatory`,
		r.Market, r.Category, r.Name, r.Description, boolToInt(r.Mandatory))
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert requirement")
	}
	return nil
}

// Requirements returns a market's requirements, optionally category-scoped.
func (s *SQLiteStore) Requirements(ctx context.Context, market, category string) ([]model.RegulatoryRequirement, error) {
	query := `SELECT market, category, name, COALESCE(description, ''), mandatory
		 FROM regulatory_requirements WHERE market = ?`
	args := []any{market}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query requirements")
	}
	defer rows.Close()

	var out []model.RegulatoryRequirement
	for rows.Next() {
		var r model.RegulatoryRequirement
		var mandatory int
		if err := rows.Scan(&r.Market, &r.Category, &r.Name, &r.Description, &mandatory); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan requirement")
		}
		r.Mandatory = mandatory != 0
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate requirements")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
