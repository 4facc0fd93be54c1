// Package validate checks inbound regulatory records against JSON Schemas.
// Validation problems are reported as structured field/message pairs and
// logged as warnings; they never block downstream use of the parseable
// remainder of a record.
package validate

import (
	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/exportwise/advisor-cli/internal/model"
)

// Problem is one structured validation finding.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const requirementSchema = `{
	"type": "object",
	"required": ["market", "name"],
	"properties": {
		"market":      {"type": "string", "minLength": 2, "maxLength": 3},
		"category":    {"type": "string"},
		"name":        {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"mandatory":   {"type": "boolean"}
	}
}`

const changeSchema = `{
	"type": "object",
	"required": ["market", "change_type", "occurred_at"],
	"properties": {
		"market":      {"type": "string", "minLength": 2, "maxLength": 3},
		"category":    {"type": "string"},
		"change_type": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"occurred_at": {"type": "string"}
	}
}`

var (
	requirementLoader = gojsonschema.NewStringLoader(requirementSchema)
	changeLoader      = gojsonschema.NewStringLoader(changeSchema)
)

// Requirement validates one regulatory requirement record. The returned
// problems are advisory; the record stays usable where parseable.
func Requirement(r model.RegulatoryRequirement) []Problem {
	return check(requirementLoader, r, "requirement")
}

// Change validates one regulatory change record.
func Change(ch model.RegulatoryChange) []Problem {
	return check(changeLoader, ch, "change")
}

func check(schema gojsonschema.JSONLoader, doc any, label string) []Problem {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		zap.L().Warn("validate: schema evaluation failed",
			zap.String("record", label),
			zap.Error(eris.Wrap(err, "validate")),
		)
		return nil
	}
	if result.Valid() {
		return nil
	}

	problems := make([]Problem, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, Problem{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	zap.L().Warn("validate: record has problems",
		zap.String("record", label),
		zap.Int("problems", len(problems)),
	)
	return problems
}
