package gapfill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"meterfill/pkg/contracts/domain"
)

// Engine drives the fallback hierarchy for one gap-fill request at a
// time. It holds no mutable state: a single Engine instance is safe for
// any number of concurrent Resolve calls.
type Engine struct {
	provider IntensityProvider
	logger   *slog.Logger
}

// NewEngine creates a gap-fill engine. A nil provider disables the
// intensity-factor rule (it always declines); a nil logger falls back
// to slog.Default().
func NewEngine(provider IntensityProvider, logger *slog.Logger) *Engine {
	if provider == nil {
		provider = NopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: provider,
		logger:   logger.With(slog.String("component", "gapfill.engine")),
	}
}

// Resolve evaluates the fallback hierarchy for one (site, target month)
// pair and returns the resolution: a value tagged with the rule that
// produced it, or a terminal gap carrying every attempted rule's
// failure reason in order.
//
// Missing data is never an error. The returned error is non-nil only
// for structurally invalid input: an empty site id, a zero target
// month, or a nil record source.
func (e *Engine) Resolve(ctx context.Context, source RecordSource, req domain.GapFillRequest) (domain.Resolution, error) {
	if err := req.Validate(); err != nil {
		return domain.Resolution{}, err
	}
	if source == nil {
		return domain.Resolution{}, fmt.Errorf("gapfill: record source is required")
	}

	// Site filtering happens exactly once, before any month
	// arithmetic. Every rule below sees only this site's records, so
	// cross-site leakage is impossible regardless of rule.
	records := source.RecordsForSite(req.SiteID)
	if len(records) == 0 {
		detail := fmt.Sprintf("no records for site %s", req.SiteID)
		e.logger.DebugContext(ctx, "no data for site",
			slog.String("site_id", req.SiteID),
			slog.String("target_month", req.TargetMonth.String()),
		)
		return domain.Resolution{
			SiteID:      req.SiteID,
			TargetMonth: req.TargetMonth,
			Outcome:     domain.OutcomeGap,
			Explanation: detail,
			Attempts: []domain.RuleAttempt{{
				Reason: domain.ReasonNoDataForSite,
				Detail: detail,
			}},
		}, nil
	}

	attempts := make([]domain.RuleAttempt, 0, 3)

	attempt, value := evalThreeMonthAverage(records, req.TargetMonth)
	attempts = append(attempts, attempt)
	if attempt.Succeeded {
		return e.resolved(ctx, req, value, attempt, attempts), nil
	}

	attempt, value = evalSameMonthPriorYear(records, req.TargetMonth)
	attempts = append(attempts, attempt)
	if attempt.Succeeded {
		return e.resolved(ctx, req, value, attempt, attempts), nil
	}

	attempt, value = e.evalIntensityFactor(ctx, req)
	attempts = append(attempts, attempt)
	if attempt.Succeeded {
		return e.resolved(ctx, req, value, attempt, attempts), nil
	}

	resolution := domain.Resolution{
		SiteID:      req.SiteID,
		TargetMonth: req.TargetMonth,
		Outcome:     domain.OutcomeGap,
		Explanation: gapExplanation(attempts),
		Attempts:    attempts,
	}

	e.logger.InfoContext(ctx, "gap-fill ended in terminal gap",
		slog.String("site_id", req.SiteID),
		slog.String("target_month", req.TargetMonth.String()),
		slog.String("explanation", resolution.Explanation),
	)

	return resolution, nil
}

// evalIntensityFactor implements the third rule by delegating to the
// intensity provider. Any provider error counts as a decline; its text
// becomes the attempt detail so operators can see why the table had
// nothing to offer.
func (e *Engine) evalIntensityFactor(ctx context.Context, req domain.GapFillRequest) (domain.RuleAttempt, float64) {
	result, err := e.provider.LookupIntensityFactor(ctx, req.SiteID, req.TargetMonth)
	if err != nil {
		return domain.RuleAttempt{
			Rule:   domain.RuleIntensityFactor,
			Reason: domain.ReasonIntensityFactorUnavailable,
			Detail: err.Error(),
		}, 0
	}

	return domain.RuleAttempt{
		Rule:      domain.RuleIntensityFactor,
		Succeeded: true,
		Detail:    result.Explanation,
	}, result.Value
}

// resolved assembles a successful resolution from the winning attempt.
func (e *Engine) resolved(ctx context.Context, req domain.GapFillRequest, value float64, winner domain.RuleAttempt, attempts []domain.RuleAttempt) domain.Resolution {
	e.logger.DebugContext(ctx, "gap-fill resolved",
		slog.String("site_id", req.SiteID),
		slog.String("target_month", req.TargetMonth.String()),
		slog.String("rule", winner.Rule.String()),
		slog.Float64("value", value),
	)

	return domain.Resolution{
		SiteID:      req.SiteID,
		TargetMonth: req.TargetMonth,
		Outcome:     domain.OutcomeResolved,
		Value:       value,
		Rule:        winner.Rule,
		Explanation: winner.Detail,
		Attempts:    attempts,
	}
}

// gapExplanation joins every failed attempt into one diagnosable
// string, in evaluation order. Diagnosability over terseness: the
// caller sees every reason a value could not be produced, not just the
// last one.
func gapExplanation(attempts []domain.RuleAttempt) string {
	clauses := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		clauses = append(clauses, fmt.Sprintf("%s: %s", attempt.Rule, attempt.Detail))
	}
	return strings.Join(clauses, "; ")
}
