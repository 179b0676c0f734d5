// Package exporter writes batch run results to CSV reports.
package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"meterfill/pkg/contracts/domain"
)

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// resolutionHeaders is the column order of a resolutions report.
var resolutionHeaders = []string{"site_id", "target_month", "outcome", "value", "rule", "explanation"}

// WriteResolutions writes one row per evaluated site/month pair.
// Gaps keep an empty value and rule column; the explanation column
// carries the failure chain.
func WriteResolutions(path string, resolutions []domain.Resolution, options WriteOptions) error {
	rows := make([][]string, 0, len(resolutions))
	for _, res := range resolutions {
		value := ""
		if res.IsResolved() {
			value = strconv.FormatFloat(res.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{
			res.SiteID,
			res.TargetMonth.String(),
			string(res.Outcome),
			value,
			string(res.Rule),
			res.Explanation,
		})
	}
	return writeCSV(path, resolutionHeaders, rows, options)
}

// WriteSummary writes the run-level tallies: one metric per row.
func WriteSummary(path string, result domain.BatchResult, options WriteOptions) error {
	rows := [][]string{
		{"run_id", result.RunID},
		{"started_at", result.StartedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"duration", result.Duration.String()},
		{"total", strconv.Itoa(result.Summary.Total)},
		{"resolved", strconv.Itoa(result.Summary.Resolved)},
		{"gaps", strconv.Itoa(result.Summary.Gaps)},
		{"sites", strconv.Itoa(result.Summary.SiteCount)},
	}

	for _, rule := range sortedRuleKeys(result.Summary.ByRule) {
		rows = append(rows, []string{"resolved_by_" + string(rule), strconv.Itoa(result.Summary.ByRule[rule])})
	}
	for _, reason := range sortedReasonKeys(result.Summary.ByReason) {
		rows = append(rows, []string{"gaps_" + string(reason), strconv.Itoa(result.Summary.ByReason[reason])})
	}

	return writeCSV(path, []string{"metric", "value"}, rows, options)
}

func writeCSV(path string, headers []string, rows [][]string, options WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8.
	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func sortedRuleKeys(m map[domain.RuleKind]int) []domain.RuleKind {
	keys := make([]domain.RuleKind, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedReasonKeys(m map[domain.FailureReason]int) []domain.FailureReason {
	keys := make([]domain.FailureReason, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
