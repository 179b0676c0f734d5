// Package intensity implements the intensity-factor collaborator for
// the gap-fill engine's third rule: a YAML-backed table of per-site
// floor areas and consumption intensities used to derive a substitute
// value when a site has no usable history.
package intensity

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v2"

	apierrors "meterfill/internal/errors"
	"meterfill/internal/gapfill"
	"meterfill/pkg/contracts/domain"
)

// SiteFactor holds the reference data for one site. A site may carry a
// twelve-value monthly intensity profile (January through December), a
// flat annual intensity, or neither, in which case the table-level
// default annual intensity applies, if configured.
type SiteFactor struct {
	FloorAreaSqm     float64   `yaml:"floor_area_sqm"`
	MonthlyKWhPerSqm []float64 `yaml:"monthly_kwh_per_sqm,omitempty"`
	AnnualKWhPerSqm  float64   `yaml:"annual_kwh_per_sqm,omitempty"`
}

// tableFile is the on-disk YAML shape.
type tableFile struct {
	DefaultAnnualKWhPerSqm float64               `yaml:"default_annual_kwh_per_sqm,omitempty"`
	Sites                  map[string]SiteFactor `yaml:"sites"`
}

// Table is an immutable intensity-factor lookup. Loaded once at
// startup; safe for concurrent lookups with no locking.
type Table struct {
	defaultAnnual float64
	sites         map[string]SiteFactor
	logger        *slog.Logger
}

// LoadTable reads an intensity-factor table from a YAML file and
// validates its entries. Malformed entries fail the load outright:
// reference data is configuration, and bad configuration should stop
// startup, not surface later as odd fill values.
func LoadTable(path string, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierrors.NewIntensityError("read intensity table", err).WithContext("path", path)
	}

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apierrors.NewIntensityError("parse intensity table", err).WithContext("path", path)
	}

	for siteID, factor := range file.Sites {
		if factor.FloorAreaSqm <= 0 {
			return nil, tableEntryError(path, siteID, "floor_area_sqm must be positive")
		}
		if n := len(factor.MonthlyKWhPerSqm); n != 0 && n != 12 {
			return nil, tableEntryError(path, siteID, fmt.Sprintf("monthly_kwh_per_sqm needs 12 values, got %d", n))
		}
		if factor.AnnualKWhPerSqm < 0 {
			return nil, tableEntryError(path, siteID, "annual_kwh_per_sqm must not be negative")
		}
	}

	logger.Info("intensity factor table loaded",
		slog.String("path", path),
		slog.Int("sites", len(file.Sites)),
	)

	return &Table{
		defaultAnnual: file.DefaultAnnualKWhPerSqm,
		sites:         file.Sites,
		logger:        logger.With(slog.String("component", "intensity.table")),
	}, nil
}

func tableEntryError(path, siteID, reason string) *apierrors.AppError {
	return apierrors.NewIntensityError("invalid intensity table entry: "+reason, nil).
		WithContext("path", path).
		WithContext("site_id", siteID)
}

// NewTable builds a table directly from entries. Used by tests and by
// callers that source factors from somewhere other than a YAML file.
func NewTable(defaultAnnual float64, sites map[string]SiteFactor, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		defaultAnnual: defaultAnnual,
		sites:         sites,
		logger:        logger.With(slog.String("component", "intensity.table")),
	}
}

// LookupIntensityFactor implements gapfill.IntensityProvider.
//
// Resolution order per site: monthly profile value for the target
// month, then the site's flat annual intensity spread evenly across
// twelve months, then the table default. Every decline wraps
// gapfill.ErrFactorUnavailable.
func (t *Table) LookupIntensityFactor(ctx context.Context, siteID string, month domain.Month) (gapfill.IntensityResult, error) {
	factor, ok := t.sites[siteID]
	if !ok {
		return gapfill.IntensityResult{}, fmt.Errorf("site %s not in factor table: %w", siteID, gapfill.ErrFactorUnavailable)
	}

	if len(factor.MonthlyKWhPerSqm) == 12 {
		perSqm := factor.MonthlyKWhPerSqm[int(month.Month)-1]
		value := factor.FloorAreaSqm * perSqm
		return gapfill.IntensityResult{
			Value: value,
			Explanation: fmt.Sprintf("intensity profile for %s: %.1f sqm at %.3f kWh/sqm in %s",
				siteID, factor.FloorAreaSqm, perSqm, month.Month),
		}, nil
	}

	annual := factor.AnnualKWhPerSqm
	source := "site annual intensity"
	if annual == 0 {
		annual = t.defaultAnnual
		source = "default annual intensity"
	}
	if annual == 0 {
		return gapfill.IntensityResult{}, fmt.Errorf("site %s has no intensity profile and no default is configured: %w",
			siteID, gapfill.ErrFactorUnavailable)
	}

	perSqm := annual / 12
	value := factor.FloorAreaSqm * perSqm
	return gapfill.IntensityResult{
		Value: value,
		Explanation: fmt.Sprintf("%s for %s: %.1f sqm at %.3f kWh/sqm per month",
			source, siteID, factor.FloorAreaSqm, perSqm),
	}, nil
}

// Sites returns the number of configured sites. Diagnostic only.
func (t *Table) Sites() int {
	return len(t.sites)
}
