package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
	"github.com/life-experimentalist/actionscounter/internal/identity"
)

// RegisterRequest describes a new project.
type RegisterRequest struct {
	Name        string
	Description string
	URL         string
	Tags        []string
	Category    string
	Priority    model.ProjectPriority
	Owner       string
	Password    string
}

// Registration is the one-time result of registering a project. Token is
// never stored or returned again.
type Registration struct {
	Project model.Project
	Alias   identity.Alias
	Token   identity.AuthToken
	Webhook model.WebhookInfo
}

// RegistrationService assigns aliases and tokens to new projects.
type RegistrationService struct {
	store      driven.ProjectStore
	projects   *ProjectService
	dispatch   *DispatcherProvider
	deriver    identity.Deriver
	repoOwner  string
	repoName   string
	webhookURL string
	logger     *slog.Logger
}

// NewRegistrationService creates a RegistrationService. repoOwner and
// repoName seed the identity hash; webhookURL is the dispatch endpoint
// shown to the operator.
func NewRegistrationService(
	store driven.ProjectStore,
	projects *ProjectService,
	dispatch *DispatcherProvider,
	deriver identity.Deriver,
	repoOwner, repoName, webhookURL string,
	logger *slog.Logger,
) *RegistrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistrationService{
		store:      store,
		projects:   projects,
		dispatch:   dispatch,
		deriver:    deriver,
		repoOwner:  repoOwner,
		repoName:   repoName,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// Register validates req, derives the project's alias and token, persists
// the project with the token's hash and returns the token with its webhook
// description.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	if err := s.projects.Authorize(req.Password); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := ValidateProjectName(name); err != nil {
		return nil, err
	}
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidInput, priority)
	}

	alias := s.deriver.DeriveAlias(name, s.repoOwner, s.repoName)
	token := s.deriver.DeriveAuthToken(name, s.repoOwner, s.repoName)

	project := model.Project{
		Name:        name,
		Alias:       string(alias),
		TokenHash:   identity.HashToken(token),
		Description: req.Description,
		URL:         req.URL,
		Tags:        normalizeTags(req.Tags),
		Category:    req.Category,
		Status:      model.ProjectStatusActive,
		Priority:    priority,
		Owner:       req.Owner,
	}

	if err := s.store.Create(ctx, project); err != nil {
		if errors.Is(err, driven.ErrProjectAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("registering project %q: %w", name, err)
	}
	s.projects.Invalidate()

	stored, err := s.store.Get(ctx, name)
	if err == nil && stored != nil {
		project = *stored
	}

	s.logger.Info("project registered", "project", name, "alias", alias)
	s.dispatch.mirror(ctx, s.logger, adminEvent(model.EventAdd, project, req.Password))

	return &Registration{
		Project: project,
		Alias:   alias,
		Token:   token,
		Webhook: s.WebhookInfo(name, alias, token),
	}, nil
}

// WebhookInfo describes the request a project's CI sends to increment its
// counter with alias and token.
func (s *RegistrationService) WebhookInfo(name string, alias identity.Alias, token identity.AuthToken) model.WebhookInfo {
	body, _ := json.Marshal(map[string]any{
		"event_type": model.EventIncrement,
		"client_payload": map[string]any{
			"project_alias": alias,
			"timestamp":     s.nowMillis(),
		},
	})

	return model.WebhookInfo{
		URL:    s.webhookURL,
		Method: "POST",
		Headers: map[string]string{
			"Authorization":  "Bearer " + string(token),
			"Accept":         "application/vnd.github.v3+json",
			"Content-Type":   "application/json",
			"X-Project-Auth": string(token),
		},
		Body: string(body),
		Description: fmt.Sprintf(
			"Project webhook for %q. Uses the project alias %q and its auth token; no GitHub token is required. "+
				"To count through this service instead of GitHub, send the same body to POST /api/v1/webhook, "+
				"which checks the token against the project ledger.",
			name, alias),
	}
}

func (s *RegistrationService) nowMillis() int64 {
	if s.deriver.Now != nil {
		return s.deriver.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}
