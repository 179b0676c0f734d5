package readings

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"meterfill/pkg/contracts/domain"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Meter Export", "", ""},
		{"Site", "Period", "Consumption"},
		{"S1", "2025-01", "120.5"},
		{"S1", "2025-02", "1,300"},
		{"S2", "2025-01-31", "80"},
	})

	records, stats, err := LoadXLSX(path)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 0, stats.InvalidValues)

	require.Len(t, records, 3)
	assert.Equal(t, "S1", records[0].SiteID)
	assert.Equal(t, domain.NewMonth(2025, time.January), records[0].Month)
	assert.InDelta(t, 120.5, records[0].Value, 1e-9)
	assert.InDelta(t, 1300.0, records[1].Value, 1e-9)
	assert.Equal(t, domain.NewMonth(2025, time.January), records[2].Month)
}

func TestLoadXLSXInvalidValues(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"site_id", "month", "kwh"},
		{"S1", "2025-01", "pending"},
		{"S1", "2025-02", "44"},
	})

	records, stats, err := LoadXLSX(path)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.InvalidValues)
	require.Len(t, records, 2)
	assert.False(t, records[0].Valid)
	assert.True(t, records[1].Valid)
}

func TestLoadXLSXNoUsableSheet(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"alpha", "beta", "gamma"},
		{"1", "2", "3"},
	})

	_, _, err := LoadXLSX(path)
	assert.Error(t, err)
}
