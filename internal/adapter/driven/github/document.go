package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// documentBackend loads and saves the raw ProjectData JSON. version is an
// opaque concurrency token (a blob SHA for contents, empty for variables).
// load returns nil data when the document does not exist yet.
type documentBackend interface {
	load(ctx context.Context) (data []byte, version string, err error)
	save(ctx context.Context, data []byte, version string) error
	ping(ctx context.Context) error
}

// errStaleDocument is returned by a backend save when the document changed
// since it was loaded.
var errStaleDocument = errors.New("project document changed concurrently")

// maxWriteAttempts bounds the read-modify-write retries on stale documents.
const maxWriteAttempts = 3

// documentStore implements ProjectStore over a single JSON document. Every
// write is a read-modify-write of the whole document, serialized by mu.
type documentStore struct {
	mu      sync.Mutex
	backend documentBackend
	now     func() time.Time
}

func newDocumentStore(backend documentBackend) *documentStore {
	return &documentStore{backend: backend, now: time.Now}
}

func (s *documentStore) read(ctx context.Context) (model.ProjectData, string, error) {
	raw, version, err := s.backend.load(ctx)
	if err != nil {
		return model.ProjectData{}, "", err
	}
	if len(raw) == 0 {
		return model.NewProjectData(s.now()), version, nil
	}

	var doc model.ProjectData
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.ProjectData{}, "", fmt.Errorf("decode project document: %w", err)
	}
	if doc.Projects == nil {
		doc.Projects = map[string]model.DocumentProject{}
	}
	return doc, version, nil
}

// mutate loads the document, applies fn and writes the result back with
// recomputed metadata. fn may run more than once when the backend reports a
// stale document.
func (s *documentStore) mutate(ctx context.Context, fn func(doc *model.ProjectData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for range maxWriteAttempts {
		err = s.mutateOnce(ctx, fn)
		if !errors.Is(err, errStaleDocument) {
			return err
		}
	}
	return err
}

func (s *documentStore) mutateOnce(ctx context.Context, fn func(doc *model.ProjectData) error) error {
	doc, version, err := s.read(ctx)
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}

	var total int64
	for _, p := range doc.Projects {
		total += p.Count
	}
	doc.Meta.TotalPings = total
	doc.Meta.LastUpdated = formatDocTime(s.now())
	doc.Meta.Version = model.DocumentVersion

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode project document: %w", err)
	}
	return s.backend.save(ctx, raw, version)
}

func (s *documentStore) Get(ctx context.Context, name string) (*model.Project, error) {
	doc, _, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("get project %q: %w", name, err)
	}
	dp, ok := doc.Projects[name]
	if !ok {
		return nil, nil
	}
	p := fromDocument(name, dp)
	return &p, nil
}

func (s *documentStore) GetByAlias(ctx context.Context, alias string) (*model.Project, error) {
	if alias == "" {
		return nil, nil
	}
	doc, _, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("get project by alias %q: %w", alias, err)
	}
	for name, dp := range doc.Projects {
		if dp.Alias == alias {
			p := fromDocument(name, dp)
			return &p, nil
		}
	}
	return nil, nil
}

func (s *documentStore) List(ctx context.Context) ([]model.Project, error) {
	doc, _, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]model.Project, 0, len(doc.Projects))
	for name, dp := range doc.Projects {
		projects = append(projects, fromDocument(name, dp))
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func (s *documentStore) Create(ctx context.Context, p model.Project) error {
	err := s.mutate(ctx, func(doc *model.ProjectData) error {
		if _, ok := doc.Projects[p.Name]; ok {
			return driven.ErrProjectAlreadyExists
		}
		if p.Alias != "" {
			for _, existing := range doc.Projects {
				if existing.Alias == p.Alias {
					return driven.ErrProjectAlreadyExists
				}
			}
		}
		doc.Projects[p.Name] = s.toDocument(p)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}
	return nil
}

func (s *documentStore) Put(ctx context.Context, p model.Project) error {
	err := s.mutate(ctx, func(doc *model.ProjectData) error {
		existing, ok := doc.Projects[p.Name]
		if ok && p.CreatedAt.IsZero() {
			p.CreatedAt = parseDocTime(existing.Created)
		}
		dp := s.toDocument(p)
		if ok {
			dp.Count = existing.Count
			dp.LastPing = existing.LastPing
		}
		doc.Projects[p.Name] = dp
		return nil
	})
	if err != nil {
		return fmt.Errorf("put project %q: %w", p.Name, err)
	}
	return nil
}

func (s *documentStore) Delete(ctx context.Context, name string) error {
	err := s.mutate(ctx, func(doc *model.ProjectData) error {
		if _, ok := doc.Projects[name]; !ok {
			return driven.ErrProjectNotFound
		}
		delete(doc.Projects, name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete project %q: %w", name, err)
	}
	return nil
}

func (s *documentStore) Increment(ctx context.Context, name string, at time.Time) (*model.Project, error) {
	var updated model.Project
	err := s.mutate(ctx, func(doc *model.ProjectData) error {
		dp, ok := doc.Projects[name]
		if !ok {
			return driven.ErrProjectNotFound
		}
		dp.Count++
		dp.LastPing = formatDocTime(at)
		dp.LastUpdated = formatDocTime(at)
		doc.Projects[name] = dp
		updated = fromDocument(name, dp)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment project %q: %w", name, err)
	}
	return &updated, nil
}

func (s *documentStore) Ping(ctx context.Context) error {
	return s.backend.ping(ctx)
}

func (s *documentStore) toDocument(p model.Project) model.DocumentProject {
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	if p.Status == "" {
		p.Status = model.ProjectStatusActive
	}
	if p.Priority == "" {
		p.Priority = model.PriorityMedium
	}

	dp := model.DocumentProject{
		Name:        p.Name,
		Alias:       p.Alias,
		TokenHash:   p.TokenHash,
		Description: p.Description,
		ProjectURL:  p.URL,
		Count:       p.Count,
		Tags:        p.Tags,
		Category:    p.Category,
		Status:      string(p.Status),
		Priority:    string(p.Priority),
		Owner:       p.Owner,
		Created:     formatDocTime(p.CreatedAt),
		LastUpdated: formatDocTime(p.UpdatedAt),
	}
	if !p.LastPingAt.IsZero() {
		dp.LastPing = formatDocTime(p.LastPingAt)
	}
	return dp
}

func fromDocument(key string, dp model.DocumentProject) model.Project {
	name := dp.Name
	if name == "" {
		name = key
	}
	status := model.ProjectStatus(dp.Status)
	if status == "" {
		status = model.ProjectStatusActive
	}
	priority := model.ProjectPriority(dp.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	p := model.Project{
		Name:        name,
		Alias:       dp.Alias,
		TokenHash:   dp.TokenHash,
		Description: dp.Description,
		URL:         dp.ProjectURL,
		Count:       dp.Count,
		Tags:        dp.Tags,
		Category:    dp.Category,
		Status:      status,
		Priority:    priority,
		Owner:       dp.Owner,
		CreatedAt:   parseDocTime(dp.Created),
		LastPingAt:  parseDocTime(dp.LastPing),
		UpdatedAt:   parseDocTime(dp.LastUpdated),
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.LastPingAt
	}
	return p
}

func formatDocTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseDocTime accepts RFC 3339 timestamps; anything else (including the
// empty string) yields the zero time.
func parseDocTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
