package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"meterfill/internal/readings"
	"meterfill/internal/shared/testutil"
)

func TestLiveness(t *testing.T) {
	svc := NewHealthService(readings.NewStore(), testutil.DiscardLogger())

	status := svc.Liveness(context.Background())
	assert.Equal(t, "ok", status.Status)
	assert.NotEmpty(t, status.Version)
}

func TestReadinessRequiresRecords(t *testing.T) {
	store := readings.NewStore()
	svc := NewHealthService(store, testutil.DiscardLogger())

	status, ready := svc.Readiness(context.Background())
	assert.False(t, ready)
	assert.Equal(t, "unavailable", status.Status)
	assert.Equal(t, "no records loaded", status.Checks["readings"])

	store.Replace(readings.NewSnapshot(threeMonthHistory("ACME-001")))

	status, ready = svc.Readiness(context.Background())
	assert.True(t, ready)
	assert.Equal(t, "ready", status.Status)
}

func TestUptime(t *testing.T) {
	svc := NewHealthService(readings.NewStore(), testutil.DiscardLogger())
	time.Sleep(time.Millisecond)
	assert.Greater(t, svc.Uptime(), time.Duration(0))
}
