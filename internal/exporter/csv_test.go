package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meterfill/pkg/contracts/domain"
)

func sampleResolutions() []domain.Resolution {
	return []domain.Resolution{
		{
			SiteID:      "ACME-001",
			TargetMonth: domain.Month{Year: 2025, Month: time.April},
			Outcome:     domain.OutcomeResolved,
			Value:       100,
			Rule:        domain.RuleThreeMonthAverage,
			Explanation: "average of monthly totals 2025-01 (90.00), 2025-02 (100.00), 2025-03 (110.00)",
		},
		{
			SiteID:      "UNKNOWN-9",
			TargetMonth: domain.Month{Year: 2025, Month: time.April},
			Outcome:     domain.OutcomeGap,
			Explanation: "no data for site UNKNOWN-9",
		},
	}
}

func TestWriteResolutions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "resolutions.csv")

	require.NoError(t, WriteResolutions(path, sampleResolutions(), WriteOptions{}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"site_id", "target_month", "outcome", "value", "rule", "explanation"}, rows[0])
	assert.Equal(t, []string{"ACME-001", "2025-04", "resolved", "100", "three_month_average",
		"average of monthly totals 2025-01 (90.00), 2025-02 (100.00), 2025-03 (110.00)"}, rows[1])

	// Gaps leave value and rule empty.
	assert.Equal(t, "gap", rows[2][2])
	assert.Empty(t, rows[2][3])
	assert.Empty(t, rows[2][4])
}

func TestWriteResolutionsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resolutions.csv")

	require.NoError(t, WriteResolutions(path, sampleResolutions(), WriteOptions{BOMPrefix: true}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "\xEF\xBB\xBF"))
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.csv")

	result := domain.BatchResult{
		RunID:     "run-1",
		StartedAt: time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC),
		Duration:  42 * time.Millisecond,
		Summary: domain.BatchSummary{
			Total:     2,
			Resolved:  1,
			Gaps:      1,
			ByRule:    map[domain.RuleKind]int{domain.RuleThreeMonthAverage: 1},
			ByReason:  map[domain.FailureReason]int{domain.ReasonNoDataForSite: 1},
			SiteCount: 2,
		},
	}
	require.NoError(t, WriteSummary(path, result, WriteOptions{}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)

	assert.Contains(t, content, "run_id,run-1")
	assert.Contains(t, content, "resolved_by_three_month_average,1")
	assert.Contains(t, content, "gaps_no_data_for_site,1")
}
