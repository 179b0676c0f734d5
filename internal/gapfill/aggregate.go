package gapfill

import (
	"sort"

	"meterfill/pkg/contracts/domain"
)

// AggregateMonthly groups a site-filtered record set into calendar-month
// buckets over the inclusive [from, to] range. Each bucket sums the
// values of its valid records and counts them; months with zero valid
// records are omitted from the result entirely, so presence of a key
// means the month has data.
//
// Invalid records (missing or non-numeric raw values) contribute
// nothing: not to the sum and not to the count. A month whose only
// records are invalid is indistinguishable from a month with no records
// at all, which is exactly the semantics the rules depend on.
func AggregateMonthly(records []domain.ConsumptionRecord, from, to domain.Month) map[domain.Month]domain.MonthlyAggregate {
	buckets := make(map[domain.Month]domain.MonthlyAggregate)

	for _, rec := range records {
		if !rec.Valid {
			continue
		}
		if rec.Month.Before(from) || rec.Month.After(to) {
			continue
		}

		agg, ok := buckets[rec.Month]
		if !ok {
			agg = domain.MonthlyAggregate{SiteID: rec.SiteID, Month: rec.Month}
		}
		agg.Sum += rec.Value
		agg.Count++
		buckets[rec.Month] = agg
	}

	return buckets
}

// AggregateAll buckets every valid record of a site regardless of
// range, returned in chronological order. Used by the read-side API to
// present a site's monthly history.
func AggregateAll(records []domain.ConsumptionRecord) []domain.MonthlyAggregate {
	buckets := make(map[domain.Month]domain.MonthlyAggregate)

	for _, rec := range records {
		if !rec.Valid {
			continue
		}
		agg, ok := buckets[rec.Month]
		if !ok {
			agg = domain.MonthlyAggregate{SiteID: rec.SiteID, Month: rec.Month}
		}
		agg.Sum += rec.Value
		agg.Count++
		buckets[rec.Month] = agg
	}

	out := make([]domain.MonthlyAggregate, 0, len(buckets))
	for _, agg := range buckets {
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})

	return out
}
