package application_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life-experimentalist/actionscounter/internal/adapter/driven/sqlite"
	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

// racingRepo lands one webhook increment between the service's read and
// its write, the interleaving a concurrent ping produces.
type racingRepo struct {
	*sqlite.ProjectRepo
	once sync.Once
	err  error
}

func (r *racingRepo) Get(ctx context.Context, name string) (*model.Project, error) {
	p, err := r.ProjectRepo.Get(ctx, name)
	if err != nil || p == nil {
		return p, err
	}
	r.once.Do(func() {
		_, r.err = r.ProjectRepo.Increment(ctx, name, time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	})
	return p, nil
}

func TestProjectService_UpdateKeepsConcurrentIncrement(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "update.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(db.Writer))

	repo := sqlite.NewProjectRepo(db)
	require.NoError(t, repo.Create(ctx, model.Project{
		Name:      "alpha",
		Alias:     "proj_1_1",
		TokenHash: "hash-alpha",
		CreatedAt: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}))

	store := &racingRepo{ProjectRepo: repo}
	svc := application.NewProjectService(store, application.NewDispatcherProvider(nil), adminPassword, 0, discardLogger())

	desc := "new"
	got, err := svc.Update(ctx, "alpha", adminPassword, application.ProjectUpdate{Description: &desc})
	require.NoError(t, err)
	require.NoError(t, store.err)
	assert.Equal(t, "new", got.Description)
	assert.Equal(t, int64(1), got.Count)

	stored, err := repo.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "new", stored.Description)
	assert.Equal(t, int64(1), stored.Count)
	assert.False(t, stored.LastPingAt.IsZero())
}
