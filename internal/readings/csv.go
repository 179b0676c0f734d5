package readings

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"meterfill/pkg/contracts/domain"
)

// LoadStats accumulates what a load pass saw, for logging and the
// reload API response.
type LoadStats struct {
	Files         int `json:"files"`
	Records       int `json:"records"`
	InvalidValues int `json:"invalid_values"`
	SkippedLines  int `json:"skipped_lines"`
}

func (s *LoadStats) add(other LoadStats) {
	s.Files += other.Files
	s.Records += other.Records
	s.InvalidValues += other.InvalidValues
	s.SkippedLines += other.SkippedLines
}

// LoadCSV loads consumption records from a single CSV file.
// Expected columns: site_id, month, value. A header row is detected and
// skipped. Months are accepted as "2006-01" or full dates with the day
// discarded.
//
// A blank or non-numeric value does not drop the record: it is kept
// with Valid=false so aggregation can exclude it while coverage
// reporting still sees it. Lines that cannot name a site and a month at
// all are logged and skipped, never fatal.
func LoadCSV(path string) ([]domain.ConsumptionRecord, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("read CSV records: %w", err)
	}

	if len(rows) == 0 {
		return nil, LoadStats{}, fmt.Errorf("empty CSV file")
	}

	dataStart := 0
	if isHeaderRow(rows[0]) {
		dataStart = 1
	}

	stats := LoadStats{Files: 1}
	source := filepath.Base(path)

	var records []domain.ConsumptionRecord
	for i := dataStart; i < len(rows); i++ {
		rec, err := parseReadingRow(rows[i], source)
		if err != nil {
			slog.Warn("skipping malformed CSV line",
				slog.String("file", source),
				slog.Int("line", i+1),
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

// parseReadingRow turns one CSV row into a record. Site and month are
// structural: without them the row is unusable. The value is not: a
// bad value yields a Valid=false record.
func parseReadingRow(row []string, source string) (domain.ConsumptionRecord, error) {
	if len(row) < 3 {
		return domain.ConsumptionRecord{}, fmt.Errorf("expected at least 3 columns, got %d", len(row))
	}

	siteID := strings.TrimSpace(row[0])
	if siteID == "" {
		return domain.ConsumptionRecord{}, fmt.Errorf("empty site id")
	}

	month, err := domain.ParseMonth(row[1])
	if err != nil {
		return domain.ConsumptionRecord{}, fmt.Errorf("parse month: %w", err)
	}

	rec := domain.ConsumptionRecord{
		SiteID: siteID,
		Month:  month,
		Source: source,
	}

	if value, ok := parseValue(row[2]); ok {
		rec.Value = value
		rec.Valid = true
	}

	return rec, nil
}

// parseValue parses a consumption value, tolerating thousands
// separators. Returns ok=false for blank or non-numeric input.
func parseValue(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// isHeaderRow checks whether the first row names columns instead of
// carrying data.
func isHeaderRow(row []string) bool {
	if len(row) < 2 {
		return false
	}

	first := strings.ToLower(strings.TrimSpace(row[0]))
	for _, header := range []string{"site", "meter", "building"} {
		if strings.Contains(first, header) {
			return true
		}
	}

	// If the second cell does not parse as a month, assume a header.
	_, err := domain.ParseMonth(row[1])
	return err != nil
}
