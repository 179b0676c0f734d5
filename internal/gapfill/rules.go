package gapfill

import (
	"fmt"
	"strings"

	"meterfill/pkg/contracts/domain"
)

// threeMonthWindow is the number of preceding calendar months rule 1
// averages over. The window excludes the target month itself.
const threeMonthWindow = 3

// evalThreeMonthAverage implements the first rule: the mean of the
// monthly sums of the three calendar months immediately preceding the
// target month. Calendar-month arithmetic only: a fixed 90-day offset
// shifts the window at month boundaries and is deliberately not used.
//
// Strict: all three months must have at least one valid record. Two of
// three is a failure of this rule, never a partial average. The failed
// attempt names the missing months so a terminal gap can report them.
func evalThreeMonthAverage(records []domain.ConsumptionRecord, target domain.Month) (domain.RuleAttempt, float64) {
	from := target.AddMonths(-threeMonthWindow)
	to := target.AddMonths(-1)
	aggregates := AggregateMonthly(records, from, to)

	window := domain.MonthRange(from, to)

	var missing []string
	var total float64
	parts := make([]string, 0, threeMonthWindow)
	for _, month := range window {
		agg, ok := aggregates[month]
		if !ok {
			missing = append(missing, month.String())
			continue
		}
		total += agg.Sum
		parts = append(parts, fmt.Sprintf("%s (%.2f)", month, agg.Sum))
	}

	if len(missing) > 0 {
		return domain.RuleAttempt{
			Rule:   domain.RuleThreeMonthAverage,
			Reason: domain.ReasonIncompleteWindow,
			Detail: fmt.Sprintf("no data for %s", strings.Join(missing, ", ")),
		}, 0
	}

	value := total / threeMonthWindow
	return domain.RuleAttempt{
		Rule:      domain.RuleThreeMonthAverage,
		Succeeded: true,
		Detail:    fmt.Sprintf("average of monthly totals %s", strings.Join(parts, ", ")),
	}, value
}

// evalSameMonthPriorYear implements the second rule: the monthly sum of
// the exact same calendar month one year before the target. The sum is
// used directly, not averaged, because a prior-year month's total is already a
// month total.
func evalSameMonthPriorYear(records []domain.ConsumptionRecord, target domain.Month) (domain.RuleAttempt, float64) {
	prior := target.PrevYear()
	aggregates := AggregateMonthly(records, prior, prior)

	agg, ok := aggregates[prior]
	if !ok {
		return domain.RuleAttempt{
			Rule:   domain.RuleSameMonthPriorYear,
			Reason: domain.ReasonNoPriorYearRecord,
			Detail: fmt.Sprintf("no data for %s", prior),
		}, 0
	}

	return domain.RuleAttempt{
		Rule:      domain.RuleSameMonthPriorYear,
		Succeeded: true,
		Detail:    fmt.Sprintf("total of %s (%.2f from %d record(s))", prior, agg.Sum, agg.Count),
	}, agg.Sum
}
