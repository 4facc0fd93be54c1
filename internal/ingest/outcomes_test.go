package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadOutcomesJSON(t *testing.T) {
	path := writeFile(t, "outcomes.json", `[
		{
			"id": "o-1",
			"business_id": "b-1",
			"market": "DE",
			"products": [{"name": "Organic Honey", "category": "Food"}],
			"business_size": 40,
			"entry_strategy": "distributor",
			"successful": true,
			"timeline_days": 120,
			"recorded_at": "2026-07-01T00:00:00Z"
		},
		{
			"business_id": "b-2",
			"market": "FR",
			"business_size": 12,
			"successful": false
		}
	]`)

	outcomes, err := ReadOutcomesJSON(path)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "o-1", outcomes[0].ID)
	assert.Equal(t, "DE", outcomes[0].Market)
	assert.Equal(t, 120, outcomes[0].TimelineDays)

	// Missing id and timestamp are filled in.
	assert.NotEmpty(t, outcomes[1].ID)
	assert.False(t, outcomes[1].RecordedAt.IsZero())
}

func TestReadOutcomesJSONInvalid(t *testing.T) {
	path := writeFile(t, "bad.json", `{"not": "an array"}`)
	_, err := ReadOutcomesJSON(path)
	assert.Error(t, err)
}

func TestReadOutcomesJSONMissingFile(t *testing.T) {
	_, err := ReadOutcomesJSON(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Outcomes")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, v := range cells {
			row.AddCell().Value = v
		}
	}
	path := filepath.Join(t.TempDir(), "outcomes.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadOutcomesXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		xlsxColumns,
		{"b-1", "DE", "Organic Honey; Fruit Jam", "Food; Food", "40",
			"distributor", "consultant", "3PL", "yes", "120",
			"customs delay; labeling", "local partner", "1.4"},
		{"b-2", "FR", "Sensor Module", "Electronics", "not-a-number",
			"direct", "", "", "no", "", "", "", ""},
		{"b-3", "ES"},
	})

	outcomes, skipped, err := ReadOutcomesXLSX(path)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, []int{2, 3}, skipped)

	o := outcomes[0]
	assert.Equal(t, "b-1", o.BusinessID)
	assert.Equal(t, "DE", o.Market)
	require.Len(t, o.Products, 2)
	assert.Equal(t, "Organic Honey", o.Products[0].Name)
	assert.Equal(t, "Food", o.Products[0].Category)
	assert.Equal(t, 40, o.BusinessSize)
	assert.True(t, o.Successful)
	assert.Equal(t, 120, o.TimelineDays)
	assert.Equal(t, []string{"customs delay", "labeling"}, o.Challenges)
	assert.InDelta(t, 1.4, o.ROI, 0.001)
	assert.NotEmpty(t, o.ID)
	assert.False(t, o.RecordedAt.IsZero())
}

func TestReadOutcomesXLSXMissingFile(t *testing.T) {
	_, _, err := ReadOutcomesXLSX(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " y ", "Success", "successful"} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"", "0", "no", "failed"} {
		assert.False(t, parseBool(s), s)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a ;; b ;"))
	assert.Nil(t, splitList(""))
}
