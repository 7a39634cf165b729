package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

func TestHealthService_OK(t *testing.T) {
	svc := application.NewHealthService(newMockStore(), model.StorageModeDatabase, "sqlite", "1.2.3")

	report := svc.Check(context.Background())

	assert.True(t, report.Healthy())
	assert.Equal(t, application.HealthOK, report.Status)
	assert.Equal(t, model.StorageModeDatabase, report.StorageMode)
	assert.Equal(t, "sqlite", report.Backend)
	assert.Equal(t, "1.2.3", report.Version)
	assert.Empty(t, report.StoreError)
	assert.False(t, report.Time.IsZero())
}

func TestHealthService_StoreDown(t *testing.T) {
	store := newMockStore()
	store.pingErr = errBoom
	svc := application.NewHealthService(store, model.StorageModeGitHubVariables, "variables", "dev")

	report := svc.Check(context.Background())

	assert.False(t, report.Healthy())
	assert.Equal(t, application.HealthDegraded, report.Status)
	assert.Equal(t, "boom", report.StoreError)
}
