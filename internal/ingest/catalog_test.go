package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCatalog(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
requirements:
  - market: DE
    category: Food
    name: health certificate
    description: issued by the competent authority
    mandatory: true
  - market: FR
    category: Food
    name: labeling directive
    mandatory: false
changes:
  - id: c-1
    market: DE
    category: Food
    change_type: amendment
    description: stricter labeling rules
    occurred_at: 2026-03-01T00:00:00Z
  - market: FR
    change_type: new_requirement
`)

	c, err := ReadCatalog(path)
	require.NoError(t, err)

	reqs := c.ModelRequirements()
	require.Len(t, reqs, 2)
	assert.Equal(t, "health certificate", reqs[0].Name)
	assert.True(t, reqs[0].Mandatory)
	assert.False(t, reqs[1].Mandatory)

	changes := c.ModelChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, "c-1", changes[0].ID)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), changes[0].OccurredAt)

	// Missing id and timestamp are generated.
	assert.NotEmpty(t, changes[1].ID)
	assert.False(t, changes[1].OccurredAt.IsZero())
}

func TestReadCatalogInvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "requirements: [unclosed")
	_, err := ReadCatalog(path)
	assert.Error(t, err)
}

func TestReadCatalogMissingFile(t *testing.T) {
	_, err := ReadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
