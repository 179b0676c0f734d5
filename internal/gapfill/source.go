package gapfill

import (
	"context"
	"errors"
	"fmt"

	"meterfill/pkg/contracts/domain"
)

// RecordSource supplies the consumption records for one site. The
// engine reads through this interface only; where the records come
// from (CSV files, XLSX exports, a database) is the caller's concern.
//
// Implementations must return a view that is stable for the duration
// of one evaluation. The engine never mutates the returned slice.
type RecordSource interface {
	// RecordsForSite returns every record for the given site, or an
	// empty slice when the site is unknown.
	RecordsForSite(siteID string) []domain.ConsumptionRecord
}

// RecordSlice adapts a plain record slice to the RecordSource
// interface. Handy for tests and one-shot CLI evaluations.
type RecordSlice []domain.ConsumptionRecord

// RecordsForSite filters the slice down to the given site.
func (s RecordSlice) RecordsForSite(siteID string) []domain.ConsumptionRecord {
	var out []domain.ConsumptionRecord
	for _, rec := range s {
		if rec.SiteID == siteID {
			out = append(out, rec)
		}
	}
	return out
}

// ErrFactorUnavailable is the sentinel an IntensityProvider wraps when
// it has no factor for a site: the site is not in the table, the table
// has no usable profile, or no table was configured at all.
var ErrFactorUnavailable = errors.New("intensity factor unavailable")

// IntensityResult is a substitute value produced by an intensity
// provider, with a human-readable explanation of how it was derived.
type IntensityResult struct {
	Value       float64
	Explanation string
}

// IntensityProvider is the contract for the third fallback rule. The
// engine defines the contract only; the factor computation lives with
// the implementation. A provider declines by returning an error,
// ideally wrapping ErrFactorUnavailable; any error is treated as a
// decline and its text feeds the gap explanation.
type IntensityProvider interface {
	LookupIntensityFactor(ctx context.Context, siteID string, month domain.Month) (IntensityResult, error)
}

// NopProvider always declines. Used when no intensity table is
// configured.
type NopProvider struct{}

// LookupIntensityFactor implements IntensityProvider.
func (NopProvider) LookupIntensityFactor(ctx context.Context, siteID string, month domain.Month) (IntensityResult, error) {
	return IntensityResult{}, fmt.Errorf("no intensity factor table configured: %w", ErrFactorUnavailable)
}
