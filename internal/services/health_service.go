package services

import (
	"context"
	"log/slog"
	"time"

	"meterfill/internal/readings"
	"meterfill/pkg/contracts"
)

// HealthStatus is the payload of the health endpoints.
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthService reports liveness and readiness. Readiness means the
// record store has at least one usable record.
type HealthService struct {
	store   *readings.Store
	started time.Time
	logger  *slog.Logger
}

// NewHealthService creates a health service over the record store.
func NewHealthService(store *readings.Store, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:   store,
		started: time.Now().UTC(),
		logger:  logger,
	}
}

// Liveness reports that the process is up.
func (s *HealthService) Liveness(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
	}
}

// Readiness reports whether the service can answer gap-fill requests.
func (s *HealthService) Readiness(ctx context.Context) (HealthStatus, bool) {
	status := HealthStatus{
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string),
	}

	ready := true
	if s.store == nil || s.store.Snapshot().Len() == 0 {
		status.Checks["readings"] = "no records loaded"
		ready = false
	} else {
		status.Checks["readings"] = "ok"
	}

	if ready {
		status.Status = "ready"
	} else {
		status.Status = "unavailable"
	}
	return status, ready
}

// Uptime returns how long the service has been running.
func (s *HealthService) Uptime() time.Duration {
	return time.Since(s.started)
}
