package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/life-experimentalist/actionscounter/internal/adapter/driving/http"
	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/config"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/identity"
	"github.com/life-experimentalist/actionscounter/internal/logging"
)

func newServeCmd() *cobra.Command {
	var detectMode bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), detectMode)
		},
	}
	cmd.Flags().BoolVar(&detectMode, "detect-mode", false,
		"read the storage mode from the repository's STORAGE_MODE/ANALYTICS_DATA variables")
	return cmd
}

func runServe(parent context.Context, detectMode bool) error {
	if parent == nil {
		parent = context.Background()
	}

	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// 2. Logging.
	logger, logCloser, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. GitHub client (nil without a token).
	ghClient, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}
	if ghClient == nil {
		logger.Info("no github credentials configured, dispatch mirroring disabled")
	} else if login, err := ghClient.ValidateToken(ctx, cfg.GitHubToken); err != nil {
		logger.Warn("github token check failed", "error", err)
	} else {
		logger.Info("github client created", "login", login, "repo", ghClient.Repo())
	}

	if detectMode {
		var detector modeDetector
		if ghClient != nil {
			detector = ghClient
		}
		if err := applyDetectedMode(ctx, cfg, detector); err != nil {
			return err
		}
	}

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"repo", cfg.RepoFullName(),
		"storage_mode", cfg.StorageMode,
		"db_type", cfg.DBType,
		"auth_mode", cfg.AuthMode,
		"dispatch_events", cfg.DispatchEvents,
	)
	if cfg.AuthMode == model.AuthModeFormat {
		logger.Warn("webhook auth mode is format: any well-formed token is accepted for a known alias")
	}
	if cfg.AdminPassword == "" {
		logger.Warn("no admin password configured, registration and edits are disabled")
	}

	// 5. Store.
	store, err := openStore(ctx, cfg, ghClient, logger)
	if err != nil {
		return err
	}
	defer store.close()

	// 6. Services.
	provider := application.NewDispatcherProvider(nil)
	if cfg.DispatchEvents && ghClient != nil {
		provider.Replace(ghClient)
	}

	projects := application.NewProjectService(store, provider, cfg.AdminPassword, cfg.CacheTTL, logger)
	registration := application.NewRegistrationService(
		store, projects, provider,
		identity.Deriver{},
		cfg.RepoOwner, cfg.RepoName,
		dispatchURL(cfg, ghClient),
		logger,
	)
	webhooks := application.NewWebhookService(store, projects, provider, cfg.AuthMode, logger)
	health := application.NewHealthService(store, cfg.StorageMode, store.backend, version)

	refresh := application.NewRefreshService(projects, cfg.RefreshInterval, logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		refresh.Start(ctx)
	}()

	// 7. HTTP server.
	apiHandler := httphandler.NewHandler(projects, registration, webhooks, health, refresh, cfg.WebhookRate, cfg.WebhookBurst, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("actionscounter started", "version", version, "backend", store.backend)

	// 8. Wait for shutdown signal or a listener failure.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	// The refresh loop reads the store, which closes on return.
	wg.Wait()

	logger.Info("shutdown complete")
	return runErr
}

type modeDetector interface {
	DetectStorageMode(ctx context.Context) (model.StorageMode, error)
}

// applyDetectedMode replaces the configured storage mode with the one the
// repository declares. It needs GitHub credentials.
func applyDetectedMode(ctx context.Context, cfg *config.Config, detector modeDetector) error {
	if detector == nil {
		return fmt.Errorf("--detect-mode requires %sGITHUB_TOKEN", config.EnvPrefix)
	}
	mode, err := detector.DetectStorageMode(ctx)
	if err != nil {
		return fmt.Errorf("detecting storage mode: %w", err)
	}
	cfg.StorageMode = mode
	return cfg.Validate()
}
