package readings

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"meterfill/pkg/contracts/domain"
)

// Column aliases seen in real meter exports. Header matching is
// case-insensitive on trimmed cell text.
var (
	siteHeaders  = []string{"site_id", "site", "meter_id", "meter", "building"}
	monthHeaders = []string{"month", "period", "reading_date", "date"}
	valueHeaders = []string{"value", "consumption", "kwh", "reading"}
)

// LoadXLSX loads consumption records from a meter-export workbook. The
// first sheet whose header row maps all three required columns is used;
// data rows follow the same tolerance rules as the CSV loader.
func LoadXLSX(path string) ([]domain.ConsumptionRecord, LoadStats, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		cols, headerAt := findHeader(rows)
		if cols == nil {
			continue
		}

		stats := LoadStats{Files: 1}
		var records []domain.ConsumptionRecord

		for i := headerAt + 1; i < len(rows); i++ {
			row := rows[i]
			if maxIndex(cols) >= len(row) {
				// Trailing cells are dropped by excelize when empty;
				// pad so column mapping stays in bounds.
				padded := make([]string, maxIndex(cols)+1)
				copy(padded, row)
				row = padded
			}

			rec, err := parseReadingRow([]string{row[cols.site], row[cols.month], row[cols.value]}, source)
			if err != nil {
				if rowIsEmpty(row) {
					continue
				}
				slog.Warn("skipping malformed workbook row",
					slog.String("file", source),
					slog.String("sheet", sheet),
					slog.Int("row", i+1),
					slog.String("error", err.Error()),
				)
				stats.SkippedLines++
				continue
			}
			if !rec.Valid {
				stats.InvalidValues++
			}
			stats.Records++
			records = append(records, rec)
		}

		return records, stats, nil
	}

	return nil, LoadStats{}, fmt.Errorf("no sheet in %s maps site, month and value columns", source)
}

// columnMap holds the resolved indices of the three required columns.
type columnMap struct {
	site, month, value int
}

func maxIndex(c *columnMap) int {
	max := c.site
	if c.month > max {
		max = c.month
	}
	if c.value > max {
		max = c.value
	}
	return max
}

// findHeader scans the first few rows for one that names all three
// required columns, returning the mapping and the header row index.
func findHeader(rows [][]string) (*columnMap, int) {
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}

	for i := 0; i < limit; i++ {
		cols := columnMap{site: -1, month: -1, value: -1}
		for j, cell := range rows[i] {
			name := strings.ToLower(strings.TrimSpace(cell))
			switch {
			case cols.site < 0 && matchesHeader(name, siteHeaders):
				cols.site = j
			case cols.month < 0 && matchesHeader(name, monthHeaders):
				cols.month = j
			case cols.value < 0 && matchesHeader(name, valueHeaders):
				cols.value = j
			}
		}
		if cols.site >= 0 && cols.month >= 0 && cols.value >= 0 {
			return &cols, i
		}
	}

	return nil, 0
}

func matchesHeader(name string, aliases []string) bool {
	for _, alias := range aliases {
		if name == alias || name == strings.ReplaceAll(alias, "_", " ") {
			return true
		}
	}
	return false
}

func rowIsEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
