package domain

// ConsumptionRecord is a single consumption reading for one site in one
// calendar month. Multiple records may exist for the same (site, month)
// pair: corrections, multiple meters on one site, split invoices.
type ConsumptionRecord struct {
	SiteID string  `json:"site_id"`
	Month  Month   `json:"month"`
	Value  float64 `json:"value"`

	// Valid is false when the raw value was missing or non-numeric.
	// Invalid records are excluded from aggregation entirely: zero
	// contribution to the sum and zero contribution to the count, so a
	// month with only invalid records looks identical to a month with
	// no records at all.
	Valid bool `json:"valid"`

	// Source names the file or feed the record came from. Diagnostic
	// only; never part of any decision.
	Source string `json:"source,omitempty"`
}

// MonthlyAggregate is the summed value and record count for one site in
// one calendar month. Aggregates exist only for months with at least
// one valid record, so Count is always >= 1.
//
// Sum is a within-month summation, never an average: a month's total
// consumption is the sum of its readings. Count only detects that the
// month has data; it is never used as a divisor.
type MonthlyAggregate struct {
	SiteID string  `json:"site_id"`
	Month  Month   `json:"month"`
	Sum    float64 `json:"sum"`
	Count  int     `json:"count"`
}
