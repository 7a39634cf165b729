package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
	"github.com/life-experimentalist/actionscounter/internal/identity"
	"github.com/life-experimentalist/actionscounter/internal/telemetry"
)

// Reasons recorded on telemetry.WebhookAuthFailuresTotal.
const (
	reasonShape         = "shape"
	reasonUnknownAlias  = "unknown_alias"
	reasonTokenMismatch = "token_mismatch"
)

// WebhookResult is the outcome of an accepted webhook call.
type WebhookResult struct {
	Ref     identity.ProjectRef
	Project model.Project
}

// WebhookService handles inbound increment webhooks authenticated by a
// project alias and auth token.
type WebhookService struct {
	store    driven.ProjectStore
	projects *ProjectService
	dispatch *DispatcherProvider
	mode     model.AuthMode
	now      func() time.Time
	logger   *slog.Logger
}

// NewWebhookService creates a WebhookService. An empty mode selects
// model.AuthModeLedger.
func NewWebhookService(
	store driven.ProjectStore,
	projects *ProjectService,
	dispatch *DispatcherProvider,
	mode model.AuthMode,
	logger *slog.Logger,
) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	if mode == "" {
		mode = model.AuthModeLedger
	}
	return &WebhookService{
		store:    store,
		projects: projects,
		dispatch: dispatch,
		mode:     mode,
		now:      time.Now,
		logger:   logger,
	}
}

// Mode returns the configured auth mode.
func (s *WebhookService) Mode() model.AuthMode { return s.mode }

// Handle gates the call with identity.ValidateToken, checks the token hash
// in ledger mode and increments the aliased project.
//
// In ledger mode an unknown alias and a wrong token both return
// ErrAuthFailed. In format mode an unknown alias returns
// driven.ErrProjectNotFound.
func (s *WebhookService) Handle(ctx context.Context, alias, token string) (*WebhookResult, error) {
	ref, ok := identity.ValidateToken(alias, token)
	if !ok {
		return nil, s.reject(reasonShape, alias)
	}

	project, err := s.store.GetByAlias(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("resolving alias: %w", err)
	}
	if project == nil {
		if s.mode == model.AuthModeLedger {
			return nil, s.reject(reasonUnknownAlias, alias)
		}
		return nil, fmt.Errorf("alias %q: %w", alias, driven.ErrProjectNotFound)
	}

	if s.mode == model.AuthModeLedger && !identity.MatchesHash(identity.AuthToken(token), project.TokenHash) {
		return nil, s.reject(reasonTokenMismatch, alias)
	}

	updated, err := s.store.Increment(ctx, project.Name, s.now())
	if err != nil {
		if errors.Is(err, driven.ErrProjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("incrementing %q: %w", project.Name, err)
	}
	s.projects.Invalidate()
	telemetry.PingsTotal.WithLabelValues(telemetry.SourceWebhook).Inc()

	s.logger.Info("webhook accepted", "ref", ref.String(), "count", updated.Count)
	s.dispatch.mirror(ctx, s.logger, model.DispatchEvent{
		Type: model.EventIncrement,
		Payload: map[string]any{
			"project_alias": alias,
			"timestamp":     s.now().UnixMilli(),
		},
	})

	return &WebhookResult{Ref: ref, Project: *updated}, nil
}

func (s *WebhookService) reject(reason, alias string) error {
	telemetry.WebhookAuthFailuresTotal.WithLabelValues(reason).Inc()
	s.logger.Warn("webhook rejected", "reason", reason, "alias", alias)
	return ErrAuthFailed
}
