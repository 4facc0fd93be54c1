// Package store persists patterns, outcomes, pattern applications and
// regulatory data behind a small CRUD interface. The learning core is
// agnostic to which backend serves it.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/exportwise/advisor-cli/internal/model"
)

// Store is the persistence interface for the pattern memory subsystem.
type Store interface {
	// Patterns.
	FindPatterns(ctx context.Context, kind model.PatternKind) ([]model.Pattern, error)
	InsertPattern(ctx context.Context, p model.Pattern) error
	UpdatePattern(ctx context.Context, p model.Pattern) error
	ArchivePattern(ctx context.Context, id, mergedInto string) error

	// Outcomes (write-once).
	AppendOutcome(ctx context.Context, o model.ExportOutcome) error
	SuccessfulOutcomes(ctx context.Context) ([]model.ExportOutcome, error)
	FailedOutcomes(ctx context.Context) ([]model.ExportOutcome, error)

	// Pattern applications.
	RecordApplication(ctx context.Context, app model.PatternApplication) error
	GetApplication(ctx context.Context, id string) (*model.PatternApplication, error)

	// Regulatory data.
	InsertRegulatoryChange(ctx context.Context, ch model.RegulatoryChange) error
	ChangesSince(ctx context.Context, market string, since time.Time) ([]model.RegulatoryChange, error)
	UpsertRequirement(ctx context.Context, r model.RegulatoryRequirement) error
	Requirements(ctx context.Context, market, category string) ([]model.RegulatoryRequirement, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// encodeJSON marshals v, wrapping failures with a label.
func encodeJSON(v any, label string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrapf(err, "store: encode %s", label)
	}
	return data, nil
}

// decodeJSON unmarshals data into v, wrapping failures with a label.
func decodeJSON(data []byte, v any, label string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "store: decode %s", label)
	}
	return nil
}

// encodePattern serializes a pattern's concrete struct for storage.
func encodePattern(p model.Pattern) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode pattern")
	}
	return data, nil
}

// decodePattern deserializes a stored pattern row by kind tag.
func decodePattern(kind model.PatternKind, data []byte) (model.Pattern, error) {
	switch kind {
	case model.PatternKindExportStrategy:
		var p model.ExportStrategyPattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "store: decode export pattern")
		}
		return &p, nil
	case model.PatternKindRegulatory:
		var p model.RegulatoryPattern
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "store: decode regulatory pattern")
		}
		return &p, nil
	default:
		return nil, eris.Errorf("store: unknown pattern kind %q", kind)
	}
}
