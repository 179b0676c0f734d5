package readings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"meterfill/pkg/contracts/domain"
)

// LoadDirectory loads every .csv and .xlsx file under dir (recursively)
// into one record set. Per-file failures are logged and skipped; the
// load only fails outright when the directory itself is unusable or the
// context is cancelled.
func LoadDirectory(ctx context.Context, dir string, logger *slog.Logger) ([]domain.ConsumptionRecord, LoadStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, LoadStats{}, fmt.Errorf("readings directory: %w", err)
	}

	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(info.Name())) {
		case ".csv", ".xlsx":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("scan readings directory: %w", err)
	}

	logger.InfoContext(ctx, "loading readings",
		slog.String("dir", dir),
		slog.Int("files", len(paths)),
	)

	var all []domain.ConsumptionRecord
	var stats LoadStats

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, LoadStats{}, fmt.Errorf("readings load cancelled: %w", ctx.Err())
		default:
		}

		var records []domain.ConsumptionRecord
		var fileStats LoadStats
		var loadErr error

		if strings.EqualFold(filepath.Ext(path), ".xlsx") {
			records, fileStats, loadErr = LoadXLSX(path)
		} else {
			records, fileStats, loadErr = LoadCSV(path)
		}

		if loadErr != nil {
			logger.WarnContext(ctx, "skipping unreadable readings file",
				slog.String("file", path),
				slog.String("error", loadErr.Error()),
			)
			continue
		}

		all = append(all, records...)
		stats.add(fileStats)
	}

	logger.InfoContext(ctx, "readings loaded",
		slog.Int("files", stats.Files),
		slog.Int("records", stats.Records),
		slog.Int("invalid_values", stats.InvalidValues),
		slog.Int("skipped_lines", stats.SkippedLines),
	)

	return all, stats, nil
}
