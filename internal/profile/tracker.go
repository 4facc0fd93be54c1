// Package profile computes significance-weighted diffs between business
// profile snapshots. Significant diffs trigger downstream pattern work.
package profile

import (
	"fmt"
	"math"
	"time"

	"github.com/exportwise/advisor-cli/internal/model"
	"github.com/exportwise/advisor-cli/internal/similarity"
)

// FieldWeights maps profile fields to their contribution to the aggregate
// significance score. Weights sum to 1.
type FieldWeights struct {
	Products       float64 `yaml:"products" mapstructure:"products"`
	Markets        float64 `yaml:"markets" mapstructure:"markets"`
	Certifications float64 `yaml:"certifications" mapstructure:"certifications"`
	Size           float64 `yaml:"size" mapstructure:"size"`
	Industry       float64 `yaml:"industry" mapstructure:"industry"`
}

// DefaultFieldWeights weight markets and products highest: they change what
// patterns apply.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{
		Products:       0.30,
		Markets:        0.30,
		Certifications: 0.15,
		Size:           0.15,
		Industry:       0.10,
	}
}

// Tracker diffs profile snapshots. Stateless apart from its weights.
type Tracker struct {
	weights FieldWeights
	now     func() time.Time
}

// NewTracker builds a Tracker, falling back to defaults for a zero weights value.
func NewTracker(weights FieldWeights) *Tracker {
	if weights == (FieldWeights{}) {
		weights = DefaultFieldWeights()
	}
	return &Tracker{weights: weights, now: time.Now}
}

// Diff compares two snapshots of the same business and aggregates the field
// changes into one significance score in [0,1]. Identical snapshots produce
// an empty diff with score 0.
func (t *Tracker) Diff(prev, curr *model.BusinessProfile) model.ProfileChanges {
	var changes []model.ProfileChange
	var score float64

	add := func(cs []model.ProfileChange, weight float64) {
		if len(cs) == 0 {
			return
		}
		// Weight is split across the field's changes but the field can
		// contribute at most its full weight.
		per := weight / float64(len(cs))
		for i := range cs {
			cs[i].Weight = per
		}
		changes = append(changes, cs...)
		score += weight
	}

	add(diffSets("products", productKeys(prev.Products), productKeys(curr.Products)),
		changedShare(t.weights.Products, productKeys(prev.Products), productKeys(curr.Products)))
	add(diffSets("target_markets", prev.TargetMarkets, curr.TargetMarkets),
		changedShare(t.weights.Markets, prev.TargetMarkets, curr.TargetMarkets))
	add(diffSets("certifications", prev.CertificationNames(), curr.CertificationNames()),
		changedShare(t.weights.Certifications, prev.CertificationNames(), curr.CertificationNames()))

	if prev.EmployeeCount != curr.EmployeeCount {
		delta := 1 - similarity.NumericSimilarity(float64(prev.EmployeeCount), float64(curr.EmployeeCount))
		changes = append(changes, model.ProfileChange{
			Field:    "employee_count",
			Type:     model.ChangeModification,
			Previous: prev.EmployeeCount,
			Current:  curr.EmployeeCount,
			Weight:   t.weights.Size * delta,
		})
		score += t.weights.Size * delta
	}

	if similarity.Normalize(prev.Industry) != similarity.Normalize(curr.Industry) {
		changes = append(changes, model.ProfileChange{
			Field:    "industry",
			Type:     changeType(prev.Industry, curr.Industry),
			Previous: prev.Industry,
			Current:  curr.Industry,
			Weight:   t.weights.Industry,
		})
		score += t.weights.Industry
	}

	return model.ProfileChanges{
		BusinessID:        curr.ID,
		Changes:           changes,
		SignificanceScore: math.Min(math.Max(score, 0), 1),
		ComputedAt:        t.now(),
	}
}

// changedShare scales a field's weight by how much of the set actually
// changed, so swapping one market out of ten matters less than replacing all.
func changedShare(weight float64, before, after []string) float64 {
	if len(before) == 0 && len(after) == 0 {
		return 0
	}
	sim := similarity.SetSimilarity(before, after, 1.01, 0)
	return weight * (1 - sim)
}

// diffSets tags additions and removals between two string sets.
func diffSets(field string, before, after []string) []model.ProfileChange {
	beforeSet := make(map[string]string, len(before))
	for _, s := range before {
		beforeSet[similarity.Normalize(s)] = s
	}
	afterSet := make(map[string]string, len(after))
	for _, s := range after {
		afterSet[similarity.Normalize(s)] = s
	}

	var changes []model.ProfileChange
	for _, s := range after {
		if _, ok := beforeSet[similarity.Normalize(s)]; !ok {
			changes = append(changes, model.ProfileChange{
				Field:   field,
				Type:    model.ChangeAddition,
				Current: s,
			})
		}
	}
	for _, s := range before {
		if _, ok := afterSet[similarity.Normalize(s)]; !ok {
			changes = append(changes, model.ProfileChange{
				Field:    field,
				Type:     model.ChangeRemoval,
				Previous: s,
			})
		}
	}
	return changes
}

func productKeys(products []model.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, fmt.Sprintf("%s|%s", p.Name, p.Category))
	}
	return out
}

func changeType(prev, curr string) model.ChangeType {
	switch {
	case prev == "":
		return model.ChangeAddition
	case curr == "":
		return model.ChangeRemoval
	default:
		return model.ChangeModification
	}
}
