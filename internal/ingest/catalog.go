package ingest

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/exportwise/advisor-cli/internal/model"
)

// Catalog is the YAML shape of a regulatory seed file: the requirements each
// market imposes per product category plus the recorded regulatory changes.
type Catalog struct {
	Requirements []catalogRequirement `yaml:"requirements"`
	Changes      []catalogChange      `yaml:"changes"`
}

type catalogRequirement struct {
	Market      string `yaml:"market"`
	Category    string `yaml:"category"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Mandatory   bool   `yaml:"mandatory"`
}

type catalogChange struct {
	ID          string    `yaml:"id"`
	Market      string    `yaml:"market"`
	Category    string    `yaml:"category"`
	ChangeType  string    `yaml:"change_type"`
	Description string    `yaml:"description"`
	OccurredAt  time.Time `yaml:"occurred_at"`
}

// ReadCatalog parses a regulatory catalog YAML file.
func ReadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read catalog %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "ingest: parse catalog")
	}
	return &c, nil
}

// ModelRequirements converts the catalog's requirement entries.
func (c *Catalog) ModelRequirements() []model.RegulatoryRequirement {
	reqs := make([]model.RegulatoryRequirement, 0, len(c.Requirements))
	for _, r := range c.Requirements {
		reqs = append(reqs, model.RegulatoryRequirement{
			Market:      r.Market,
			Category:    r.Category,
			Name:        r.Name,
			Description: r.Description,
			Mandatory:   r.Mandatory,
		})
	}
	return reqs
}

// ModelChanges converts the catalog's change entries, generating ids and
// timestamps where the file omits them.
func (c *Catalog) ModelChanges() []model.RegulatoryChange {
	changes := make([]model.RegulatoryChange, 0, len(c.Changes))
	for _, ch := range c.Changes {
		m := model.RegulatoryChange{
			ID:          ch.ID,
			Market:      ch.Market,
			Category:    ch.Category,
			ChangeType:  ch.ChangeType,
			Description: ch.Description,
			OccurredAt:  ch.OccurredAt,
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.OccurredAt.IsZero() {
			m.OccurredAt = time.Now().UTC()
		}
		changes = append(changes, m)
	}
	return changes
}
