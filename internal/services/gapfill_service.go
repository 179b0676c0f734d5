// Package services contains the application services sitting between
// the HTTP/CLI surfaces and the gap-fill engine.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"meterfill/internal/gapfill"
	"meterfill/internal/infrastructure"
	"meterfill/internal/readings"
	"meterfill/internal/websocket"
	"meterfill/pkg/contracts/domain"
)

// EventPublisher pushes progress events to interested listeners.
// Implemented by the websocket hub; nil disables publishing.
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// RunStore persists finished batch runs. Implemented by the Postgres
// store; nil disables persistence.
type RunStore interface {
	SaveRun(ctx context.Context, result domain.BatchResult) error
}

// SnapshotLoader produces a fresh record set, typically by rescanning
// the readings directory.
type SnapshotLoader func(ctx context.Context) ([]domain.ConsumptionRecord, readings.LoadStats, error)

// GapFillService orchestrates gap-fill evaluations over the in-memory
// record store.
type GapFillService struct {
	engine  *gapfill.Engine
	store   *readings.Store
	loader  SnapshotLoader
	events  EventPublisher
	runs    RunStore
	metrics *infrastructure.EngineMetrics
	workers int
	logger  *slog.Logger
}

// GapFillServiceOptions configures a GapFillService. Engine and Store
// are required; everything else is optional.
type GapFillServiceOptions struct {
	Engine  *gapfill.Engine
	Store   *readings.Store
	Loader  SnapshotLoader
	Events  EventPublisher
	Runs    RunStore
	Metrics *infrastructure.EngineMetrics
	Workers int
	Logger  *slog.Logger
}

// NewGapFillService creates the service.
func NewGapFillService(opts GapFillServiceOptions) (*GapFillService, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("gapfill service: engine is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("gapfill service: record store is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &GapFillService{
		engine:  opts.Engine,
		store:   opts.Store,
		loader:  opts.Loader,
		events:  opts.Events,
		runs:    opts.Runs,
		metrics: opts.Metrics,
		workers: opts.Workers,
		logger:  opts.Logger,
	}, nil
}

// Resolve evaluates a single site/month pair against the current
// record snapshot.
func (s *GapFillService) Resolve(ctx context.Context, req domain.GapFillRequest) (domain.Resolution, error) {
	snap := s.store.Snapshot()

	resolution, err := s.engine.Resolve(ctx, snap, req)
	if err != nil {
		return domain.Resolution{}, err
	}

	s.metrics.RecordResolution(ctx, resolution)
	return resolution, nil
}

// batchProgress is the payload for batch:progress events.
type batchProgress struct {
	RunID     string `json:"run_id"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// ResolveBatch evaluates the cross product of the requested sites and
// months concurrently. All pairs are always evaluated; gaps are
// results, not errors. The returned resolutions are ordered site-major
// in request order regardless of evaluation order.
func (s *GapFillService) ResolveBatch(ctx context.Context, req domain.BatchRequest) (domain.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return domain.BatchResult{}, err
	}

	snap := s.store.Snapshot()

	siteIDs := req.SiteIDs
	if len(siteIDs) == 0 {
		siteIDs = snap.SiteIDs()
	}
	months := req.TargetMonths()

	total := len(siteIDs) * len(months)
	result := domain.BatchResult{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		Resolutions: make([]domain.Resolution, total),
	}

	s.logger.InfoContext(ctx, "starting batch run",
		"run_id", result.RunID,
		"sites", len(siteIDs),
		"months", len(months),
		"workers", s.workers,
	)

	completed := make(chan int, s.workers)
	go s.publishProgress(result.RunID, total, completed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for si, siteID := range siteIDs {
		for mi, month := range months {
			idx := si*len(months) + mi
			pair := domain.GapFillRequest{SiteID: siteID, TargetMonth: month}

			g.Go(func() error {
				resolution, err := s.engine.Resolve(gctx, snap, pair)
				if err != nil {
					return fmt.Errorf("site %s month %s: %w", pair.SiteID, pair.TargetMonth, err)
				}
				result.Resolutions[idx] = resolution
				s.metrics.RecordResolution(gctx, resolution)
				completed <- 1
				return nil
			})
		}
	}

	err := g.Wait()
	close(completed)
	if err != nil {
		return domain.BatchResult{}, err
	}

	result.Duration = time.Since(result.StartedAt)
	result.Summary = summarize(result.Resolutions, siteIDs)

	s.metrics.RecordBatch(ctx, total, result.Duration)
	s.publish(websocket.EventBatchComplete, map[string]interface{}{
		"run_id":  result.RunID,
		"summary": result.Summary,
	})

	s.logger.InfoContext(ctx, "batch run complete",
		"run_id", result.RunID,
		"total", result.Summary.Total,
		"resolved", result.Summary.Resolved,
		"gaps", result.Summary.Gaps,
		"duration", result.Duration.String(),
	)

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, result); err != nil {
			// Persistence is best effort; the caller still gets the result.
			s.logger.ErrorContext(ctx, "failed to persist batch run", "run_id", result.RunID, "error", err)
		}
	}

	return result, nil
}

// publishProgress coalesces completion ticks into periodic progress
// events so large batches do not flood the hub.
func (s *GapFillService) publishProgress(runID string, total int, completed <-chan int) {
	const interval = 250 * time.Millisecond

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := 0
	dirty := false
	for {
		select {
		case _, ok := <-completed:
			if !ok {
				return
			}
			done++
			dirty = true
		case <-ticker.C:
			if dirty {
				s.publish(websocket.EventBatchProgress, batchProgress{RunID: runID, Completed: done, Total: total})
				dirty = false
			}
		}
	}
}

func (s *GapFillService) publish(eventType string, payload interface{}) {
	if s.events != nil {
		s.events.Publish(eventType, payload)
	}
}

// summarize tallies outcomes per rule and, for gaps, per the reason of
// the deepest fallback attempted.
func summarize(resolutions []domain.Resolution, siteIDs []string) domain.BatchSummary {
	summary := domain.BatchSummary{
		Total:     len(resolutions),
		ByRule:    make(map[domain.RuleKind]int),
		ByReason:  make(map[domain.FailureReason]int),
		SiteCount: len(siteIDs),
	}
	for _, res := range resolutions {
		if res.IsResolved() {
			summary.Resolved++
			summary.ByRule[res.Rule]++
			continue
		}
		summary.Gaps++
		if n := len(res.Attempts); n > 0 {
			summary.ByReason[res.Attempts[n-1].Reason]++
		}
	}
	return summary
}

// Sites returns per-site record coverage from the current snapshot.
func (s *GapFillService) Sites() []readings.SiteInfo {
	return s.store.Snapshot().Sites()
}

// MonthsForSite returns the chronological monthly aggregates for one
// site, or false when the site has no records at all.
func (s *GapFillService) MonthsForSite(siteID string) ([]domain.MonthlyAggregate, bool) {
	records := s.store.Snapshot().RecordsForSite(siteID)
	if len(records) == 0 {
		return nil, false
	}
	return gapfill.AggregateAll(records), true
}

// Reload rescans the readings source and atomically swaps the store
// snapshot. In-flight evaluations keep the snapshot they started with.
func (s *GapFillService) Reload(ctx context.Context) (readings.LoadStats, error) {
	if s.loader == nil {
		return readings.LoadStats{}, fmt.Errorf("gapfill service: no readings loader configured")
	}

	records, stats, err := s.loader(ctx)
	if err != nil {
		return readings.LoadStats{}, err
	}

	s.store.Replace(readings.NewSnapshot(records))
	s.metrics.RecordLoad(ctx, len(records))
	s.publish(websocket.EventReadingsReloaded, map[string]interface{}{
		"records": stats.Records,
		"files":   stats.Files,
	})

	s.logger.InfoContext(ctx, "readings reloaded",
		"files", stats.Files,
		"records", stats.Records,
		"invalid_values", stats.InvalidValues,
		"skipped_lines", stats.SkippedLines,
	)
	return stats, nil
}
