package application

import (
	"context"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// Health statuses reported by HealthService.
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthReport is the liveness view served at /api/v1/health.
type HealthReport struct {
	Status      string
	Time        time.Time
	StorageMode model.StorageMode
	Backend     string
	StoreError  string
	Version     string
}

// Healthy reports whether the store answered its ping.
func (r HealthReport) Healthy() bool { return r.Status == HealthOK }

// HealthService pings the configured store.
type HealthService struct {
	store   driven.ProjectStore
	mode    model.StorageMode
	backend string
	version string
	timeout time.Duration
	now     func() time.Time
}

// NewHealthService creates a HealthService. backend names the store
// implementation (sqlite, postgres, redis, variables, contents).
func NewHealthService(store driven.ProjectStore, mode model.StorageMode, backend, version string) *HealthService {
	return &HealthService{
		store:   store,
		mode:    mode,
		backend: backend,
		version: version,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

// Check pings the store with a bounded timeout.
func (s *HealthService) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:      HealthOK,
		Time:        s.now().UTC(),
		StorageMode: s.mode,
		Backend:     s.backend,
		Version:     s.version,
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Ping(pingCtx); err != nil {
		report.Status = HealthDegraded
		report.StoreError = err.Error()
	}
	return report
}
