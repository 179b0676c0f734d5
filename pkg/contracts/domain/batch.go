package domain

import (
	"fmt"
	"time"
)

// BatchRequest describes a set of gap-fill evaluations: the cross
// product of the requested sites and target months. Sites may be
// listed explicitly or left empty to mean every site known to the
// record store. Months are either listed explicitly or given as an
// inclusive [FromMonth, ToMonth] range.
type BatchRequest struct {
	SiteIDs   []string `json:"site_ids,omitempty"`
	Months    []Month  `json:"months,omitempty"`
	FromMonth Month    `json:"from_month,omitempty"`
	ToMonth   Month    `json:"to_month,omitempty"`
}

// Validate rejects batch requests that name no target months at all or
// give an inverted range.
func (r BatchRequest) Validate() error {
	if len(r.Months) == 0 {
		if r.FromMonth.IsZero() && r.ToMonth.IsZero() {
			return fmt.Errorf("batch request: months or a from/to range is required")
		}
		if !r.FromMonth.IsValid() || !r.ToMonth.IsValid() {
			return fmt.Errorf("batch request: from and to months must both be valid calendar months")
		}
		if r.ToMonth.Before(r.FromMonth) {
			return fmt.Errorf("batch request: to month %s is before from month %s", r.ToMonth, r.FromMonth)
		}
	}
	for _, m := range r.Months {
		if !m.IsValid() {
			return fmt.Errorf("batch request: %q is not a valid calendar month", m)
		}
	}
	return nil
}

// TargetMonths returns the months the batch covers, in chronological
// order for ranges and in given order for explicit lists.
func (r BatchRequest) TargetMonths() []Month {
	if len(r.Months) > 0 {
		return r.Months
	}
	return MonthRange(r.FromMonth, r.ToMonth)
}

// BatchSummary aggregates the outcomes of a batch run.
type BatchSummary struct {
	Total     int                   `json:"total"`
	Resolved  int                   `json:"resolved"`
	Gaps      int                   `json:"gaps"`
	ByRule    map[RuleKind]int      `json:"by_rule,omitempty"`
	ByReason  map[FailureReason]int `json:"by_reason,omitempty"`
	SiteCount int                   `json:"site_count"`
}

// BatchResult is the full outcome of one batch run. Run metadata
// (id, timing) lives here, outside the per-pair resolutions, so the
// resolutions themselves stay reproducible.
type BatchResult struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Resolutions []Resolution  `json:"resolutions"`
	Summary     BatchSummary  `json:"summary"`
}
