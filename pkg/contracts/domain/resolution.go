package domain

import "fmt"

// RuleKind identifies one of the gap-fill business rules.
type RuleKind string

const (
	// RuleThreeMonthAverage is the mean of the monthly sums of the
	// three calendar months immediately preceding the target month.
	RuleThreeMonthAverage RuleKind = "three_month_average"

	// RuleSameMonthPriorYear is the monthly sum of the same calendar
	// month one year before the target month.
	RuleSameMonthPriorYear RuleKind = "same_month_prior_year"

	// RuleIntensityFactor substitutes a value derived from a site
	// intensity table when no usable history exists.
	RuleIntensityFactor RuleKind = "intensity_factor"
)

// String returns the wire representation of the rule kind.
func (r RuleKind) String() string {
	return string(r)
}

// IsValid reports whether r is a known rule kind.
func (r RuleKind) IsValid() bool {
	switch r {
	case RuleThreeMonthAverage, RuleSameMonthPriorYear, RuleIntensityFactor:
		return true
	}
	return false
}

// FailureReason classifies why a rule (or the whole evaluation) could
// not produce a value. These are expected outcomes of normal operation,
// not errors.
type FailureReason string

const (
	// ReasonNoDataForSite means the record set holds zero records for
	// the requested site. Short-circuits every rule.
	ReasonNoDataForSite FailureReason = "no_data_for_site"

	// ReasonIncompleteWindow means fewer than three of the preceding
	// months had data for the three-month-average rule.
	ReasonIncompleteWindow FailureReason = "incomplete_window"

	// ReasonNoPriorYearRecord means the exact prior-year month had no
	// records.
	ReasonNoPriorYearRecord FailureReason = "no_prior_year_record"

	// ReasonIntensityFactorUnavailable means the intensity-factor
	// collaborator declined to supply a value.
	ReasonIntensityFactorUnavailable FailureReason = "intensity_factor_unavailable"
)

// String returns the wire representation of the failure reason.
func (f FailureReason) String() string {
	return string(f)
}

// Outcome is the discriminant of a Resolution.
type Outcome string

const (
	// OutcomeResolved means one of the rules produced a value.
	OutcomeResolved Outcome = "resolved"

	// OutcomeGap means every applicable rule failed.
	OutcomeGap Outcome = "gap"
)

// GapFillRequest asks for one imputed value: the consumption of one
// site in one target calendar month. Immutable input to the engine.
type GapFillRequest struct {
	SiteID      string `json:"site_id"`
	TargetMonth Month  `json:"target_month"`
}

// Validate distinguishes structurally invalid requests (programming
// errors, surfaced as Go errors) from data-gap outcomes (normal
// resolutions). A request with no site or no real month can never be
// evaluated and is rejected here.
func (r GapFillRequest) Validate() error {
	if r.SiteID == "" {
		return fmt.Errorf("gap-fill request: site id is required")
	}
	if !r.TargetMonth.IsValid() {
		return fmt.Errorf("gap-fill request: target month %q is not a valid calendar month", r.TargetMonth)
	}
	return nil
}

// RuleAttempt records the outcome of evaluating a single rule, in the
// order rules were tried. Failed attempts carry the reason forward so a
// terminal gap can explain every rule that was tried, not just the
// last.
type RuleAttempt struct {
	Rule      RuleKind      `json:"rule,omitempty"`
	Succeeded bool          `json:"succeeded"`
	Reason    FailureReason `json:"reason,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

// Resolution is the engine's final answer for one (site, target month)
// pair: either a resolved value tagged with the rule that produced it,
// or a terminal gap. The tagged Outcome field replaces the sentinel
// strings of older implementations; a value and a gap can never be
// confused.
//
// Resolutions carry no timestamps: the same records and request always
// produce an identical resolution.
type Resolution struct {
	SiteID      string        `json:"site_id"`
	TargetMonth Month         `json:"target_month"`
	Outcome     Outcome       `json:"outcome"`
	Value       float64       `json:"value,omitempty"`
	Rule        RuleKind      `json:"rule,omitempty"`
	Explanation string        `json:"explanation"`
	Attempts    []RuleAttempt `json:"attempts,omitempty"`
}

// IsResolved reports whether a rule produced a value.
func (r Resolution) IsResolved() bool {
	return r.Outcome == OutcomeResolved
}

// IsGap reports whether the evaluation ended in a terminal gap.
func (r Resolution) IsGap() bool {
	return r.Outcome == OutcomeGap
}
