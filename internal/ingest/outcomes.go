// Package ingest parses export-outcome records from spreadsheet and JSON
// files for batch learning.
package ingest

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/exportwise/advisor-cli/internal/model"
)

// Expected spreadsheet columns, in order.
var xlsxColumns = []string{
	"business_id", "market", "products", "categories", "business_size",
	"entry_strategy", "compliance_approach", "logistics_model",
	"successful", "timeline_days", "challenges", "success_factors", "roi",
}

// ReadOutcomesJSON reads a JSON array of outcomes. Records without an id get
// a generated one; records without a timestamp get the current time.
func ReadOutcomesJSON(path string) ([]model.ExportOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read json file")
	}
	var outcomes []model.ExportOutcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, eris.Wrap(err, "ingest: parse json outcomes")
	}
	for i := range outcomes {
		fillDefaults(&outcomes[i])
	}
	return outcomes, nil
}

// ReadOutcomesXLSX reads outcomes from the first sheet of an xlsx workbook.
// The first row is treated as a header and skipped. Rows with too few cells
// or an unparseable size are skipped with the row index recorded in the
// returned skip list.
func ReadOutcomesXLSX(path string) ([]model.ExportOutcome, []int, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.New("ingest: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	var outcomes []model.ExportOutcome
	var skipped []int
	for i, row := range sheet.Rows {
		if i == 0 {
			continue // header
		}
		cells := rowToStrings(row)
		o, ok := parseRow(cells)
		if !ok {
			skipped = append(skipped, i)
			continue
		}
		fillDefaults(&o)
		outcomes = append(outcomes, o)
	}
	return outcomes, skipped, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func parseRow(cells []string) (model.ExportOutcome, bool) {
	var o model.ExportOutcome
	if len(cells) < len(xlsxColumns) {
		return o, false
	}

	size, err := strconv.Atoi(strings.TrimSpace(cells[4]))
	if err != nil {
		return o, false
	}

	names := splitList(cells[2])
	categories := splitList(cells[3])
	products := make([]model.Product, 0, len(names))
	for i, name := range names {
		p := model.Product{Name: name}
		if i < len(categories) {
			p.Category = categories[i]
		}
		products = append(products, p)
	}

	timeline, _ := strconv.Atoi(strings.TrimSpace(cells[9]))
	roi, _ := strconv.ParseFloat(strings.TrimSpace(cells[12]), 64)

	o = model.ExportOutcome{
		BusinessID:         strings.TrimSpace(cells[0]),
		Market:             strings.TrimSpace(cells[1]),
		Products:           products,
		BusinessSize:       size,
		EntryStrategy:      strings.TrimSpace(cells[5]),
		ComplianceApproach: strings.TrimSpace(cells[6]),
		LogisticsModel:     strings.TrimSpace(cells[7]),
		Successful:         parseBool(cells[8]),
		TimelineDays:       timeline,
		Challenges:         splitList(cells[10]),
		SuccessFactors:     splitList(cells[11]),
		ROI:                roi,
	}
	if o.BusinessID == "" || o.Market == "" {
		return o, false
	}
	return o, true
}

func fillDefaults(o *model.ExportOutcome) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "success", "successful":
		return true
	}
	return false
}
