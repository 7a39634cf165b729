package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	githubadapter "github.com/life-experimentalist/actionscounter/internal/adapter/driven/github"
	postgresadapter "github.com/life-experimentalist/actionscounter/internal/adapter/driven/postgres"
	redisadapter "github.com/life-experimentalist/actionscounter/internal/adapter/driven/redis"
	sqliteadapter "github.com/life-experimentalist/actionscounter/internal/adapter/driven/sqlite"
	"github.com/life-experimentalist/actionscounter/internal/config"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// openedStore is a ProjectStore plus what it takes to release it.
type openedStore struct {
	driven.ProjectStore
	backend string
	close   func()
}

// newGitHubClient returns nil when no token is configured.
func newGitHubClient(cfg *config.Config) (*githubadapter.Client, error) {
	if !cfg.HasGitHubCredentials() {
		return nil, nil
	}
	client, err := githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL, cfg.RepoFullName())
	if err != nil {
		return nil, fmt.Errorf("creating github client: %w", err)
	}
	return client, nil
}

// dispatchURL is the repository_dispatch endpoint shown to operators.
func dispatchURL(cfg *config.Config, client *githubadapter.Client) string {
	if client != nil {
		return client.DispatchURL()
	}
	return strings.TrimSuffix(cfg.GitHubAPIURL, "/") + "/repos/" + cfg.RepoFullName() + "/dispatches"
}

// openStore connects the backend selected by the storage mode and, in
// database mode, DB_TYPE. Migrations run before the store is returned.
func openStore(ctx context.Context, cfg *config.Config, client *githubadapter.Client, logger *slog.Logger) (*openedStore, error) {
	switch cfg.StorageMode {
	case model.StorageModeGitHubVariables:
		if client == nil {
			return nil, fmt.Errorf("storage mode %s requires %sGITHUB_TOKEN", cfg.StorageMode, config.EnvPrefix)
		}
		return &openedStore{ProjectStore: githubadapter.NewVariableStore(client), backend: "variables", close: func() {}}, nil

	case model.StorageModeRepositoryCommits:
		if client == nil {
			return nil, fmt.Errorf("storage mode %s requires %sGITHUB_TOKEN", cfg.StorageMode, config.EnvPrefix)
		}
		store := githubadapter.NewContentStore(client, cfg.ContentPath, cfg.ContentBranch)
		return &openedStore{ProjectStore: store, backend: "contents", close: func() {}}, nil
	}

	switch cfg.DBType {
	case config.DBTypePostgres:
		pool, err := postgresadapter.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgresadapter.RunMigrations(pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres connected, migrations complete")
		return &openedStore{ProjectStore: postgresadapter.NewProjectRepo(pool), backend: config.DBTypePostgres, close: pool.Close}, nil

	case config.DBTypeRedis:
		rdb, err := redisadapter.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		logger.Info("redis connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return &openedStore{
			ProjectStore: redisadapter.NewProjectRepo(rdb, ""),
			backend:      config.DBTypeRedis,
			close: func() {
				if err := rdb.Close(); err != nil {
					logger.Error("error closing redis", "error", err)
				}
			},
		}, nil

	default:
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("sqlite opened, migrations complete", "path", cfg.DBPath)
		return &openedStore{
			ProjectStore: sqliteadapter.NewProjectRepo(db),
			backend:      config.DBTypeSQLite,
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("error closing database", "error", err)
				}
			},
		}, nil
	}
}
