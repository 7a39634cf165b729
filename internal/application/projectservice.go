// Package application contains use-case orchestration services.
package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
	"github.com/life-experimentalist/actionscounter/internal/telemetry"
)

const maxNameLength = 100

var projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateProjectName returns ErrInvalidProjectName unless name is 1-100
// characters of [A-Za-z0-9._-] starting with a letter or digit.
func ValidateProjectName(name string) error {
	if name == "" || len(name) > maxNameLength || !projectNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectName, name)
	}
	return nil
}

// ProjectUpdate carries the editable fields of a project. Nil fields are
// left unchanged.
type ProjectUpdate struct {
	Description *string
	URL         *string
	Tags        *[]string
	Category    *string
	Status      *model.ProjectStatus
	Priority    *model.ProjectPriority
}

// ProjectService serves project reads from a TTL snapshot cache and applies
// admin mutations, mirroring them to GitHub when a dispatcher is configured.
type ProjectService struct {
	store         driven.ProjectStore
	dispatch      *DispatcherProvider
	adminPassword string
	ttl           time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu       sync.Mutex
	snapshot []model.Project
	loadedAt time.Time
	gen      uint64 // bumped by Invalidate; a Reload that straddles a bump is not cached
}

// NewProjectService creates a ProjectService. An empty adminPassword
// disables every admin operation. A non-positive ttl disables caching.
func NewProjectService(
	store driven.ProjectStore,
	dispatch *DispatcherProvider,
	adminPassword string,
	ttl time.Duration,
	logger *slog.Logger,
) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{
		store:         store,
		dispatch:      dispatch,
		adminPassword: adminPassword,
		ttl:           ttl,
		now:           time.Now,
		logger:        logger,
	}
}

// Authorize compares password with the configured admin password in
// constant time.
func (s *ProjectService) Authorize(password string) error {
	if s.adminPassword == "" || password == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// List returns all projects ordered by name, from the cache when fresh.
func (s *ProjectService) List(ctx context.Context) ([]model.Project, error) {
	s.mu.Lock()
	if s.snapshot != nil && s.ttl > 0 && s.now().Sub(s.loadedAt) < s.ttl {
		out := cloneProjects(s.snapshot)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.Reload(ctx)
}

// Reload bypasses the cache, reads the store and replaces the snapshot.
func (s *ProjectService) Reload(ctx context.Context) ([]model.Project, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	projects, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.snapshot = cloneProjects(projects)
		s.loadedAt = s.now()
	}
	s.mu.Unlock()

	return projects, nil
}

// Invalidate drops the cached snapshot.
func (s *ProjectService) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.gen++
	s.mu.Unlock()
}

// Get returns a project, or driven.ErrProjectNotFound.
func (s *ProjectService) Get(ctx context.Context, name string) (*model.Project, error) {
	p, err := s.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("project %q: %w", name, driven.ErrProjectNotFound)
	}
	return p, nil
}

// Search returns projects whose name or description contains query,
// case-insensitively. An empty query matches everything.
func (s *ProjectService) Search(ctx context.Context, query string) ([]model.Project, error) {
	projects, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return projects, nil
	}

	matches := []model.Project{}
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// Stats summarizes the current snapshot. On equal counts the most active
// project is the last one by name.
func (s *ProjectService) Stats(ctx context.Context) (model.Stats, error) {
	projects, err := s.List(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	return computeStats(projects), nil
}

func computeStats(projects []model.Project) model.Stats {
	stats := model.Stats{TotalProjects: len(projects)}
	var best *model.Project
	for i := range projects {
		p := &projects[i]
		stats.TotalPings += p.Count
		if best == nil || p.Count >= best.Count {
			best = p
		}
		for _, t := range []time.Time{p.UpdatedAt, p.LastPingAt} {
			if t.After(stats.LastUpdated) {
				stats.LastUpdated = t
			}
		}
	}
	if best != nil {
		stats.MostActive = best.Name
	}
	return stats
}

// Update applies upd to an existing project.
func (s *ProjectService) Update(ctx context.Context, name, password string, upd ProjectUpdate) (*model.Project, error) {
	if err := s.Authorize(password); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(p, upd); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.store.Put(ctx, *p); err != nil {
		return nil, fmt.Errorf("updating project %q: %w", name, err)
	}
	s.Invalidate()
	if stored, err := s.store.Get(ctx, name); err == nil && stored != nil {
		p = stored
	}

	s.logger.Info("project updated", "project", name)
	s.dispatch.mirror(ctx, s.logger, adminEvent(model.EventUpdate, *p, password))
	return p, nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, name, password string) error {
	if err := s.Authorize(password); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, name); err != nil {
		return err
	}
	s.Invalidate()

	s.logger.Info("project deleted", "project", name)
	s.dispatch.mirror(ctx, s.logger, adminEvent(model.EventDelete, model.Project{Name: name}, password))
	return nil
}

// Ping increments a project's counter through the public API.
func (s *ProjectService) Ping(ctx context.Context, name string) (*model.Project, error) {
	p, err := s.store.Increment(ctx, name, s.now())
	if err != nil {
		return nil, err
	}
	s.Invalidate()
	telemetry.PingsTotal.WithLabelValues(telemetry.SourceAPI).Inc()

	s.logger.Debug("project pinged", "project", name, "count", p.Count)
	s.dispatch.mirror(ctx, s.logger, model.DispatchEvent{
		Type:    model.EventPing,
		Payload: map[string]any{"project_name": name},
	})
	return p, nil
}

func applyUpdate(p *model.Project, upd ProjectUpdate) error {
	if upd.URL != nil {
		if err := validateURL(*upd.URL); err != nil {
			return err
		}
		p.URL = *upd.URL
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return fmt.Errorf("%w: status %q", ErrInvalidInput, *upd.Status)
		}
		p.Status = *upd.Status
	}
	if upd.Priority != nil {
		if !upd.Priority.Valid() {
			return fmt.Errorf("%w: priority %q", ErrInvalidInput, *upd.Priority)
		}
		p.Priority = *upd.Priority
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Tags != nil {
		p.Tags = normalizeTags(*upd.Tags)
	}
	if upd.Category != nil {
		p.Category = *upd.Category
	}
	return nil
}

// validateURL accepts the empty string or an absolute http(s) URL.
func validateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: project url %q", ErrInvalidInput, raw)
	}
	return nil
}

// normalizeTags trims, drops empties and de-duplicates, keeping order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func adminEvent(t model.EventType, p model.Project, password string) model.DispatchEvent {
	payload := map[string]any{"project_name": p.Name}
	if t != model.EventDelete {
		payload["description"] = p.Description
		payload["project_url"] = p.URL
	}
	if password != "" {
		payload["password"] = password
	}
	return model.DispatchEvent{Type: t, Payload: payload}
}

func cloneProjects(in []model.Project) []model.Project {
	out := make([]model.Project, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
