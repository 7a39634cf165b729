package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// --- Mock implementations ---

// mockStore is an in-memory ProjectStore. Set listErr/pingErr to inject
// failures; listCalls counts store reads for cache assertions.
type mockStore struct {
	mu        sync.Mutex
	projects  map[string]model.Project
	listCalls int
	listErr   error
	pingErr   error
}

func newMockStore(projects ...model.Project) *mockStore {
	m := &mockStore{projects: map[string]model.Project{}}
	for _, p := range projects {
		m.projects[p.Name] = p
	}
	return m
}

func (m *mockStore) Get(_ context.Context, name string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockStore) GetByAlias(_ context.Context, alias string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.projects {
		if alias != "" && p.Alias == alias {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockStore) List(_ context.Context) ([]model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) Create(_ context.Context, p model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.Name]; ok {
		return driven.ErrProjectAlreadyExists
	}
	m.projects[p.Name] = p
	return nil
}

func (m *mockStore) Put(_ context.Context, p model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.projects[p.Name]; ok {
		p.Count, p.LastPingAt = prev.Count, prev.LastPingAt
	}
	m.projects[p.Name] = p
	return nil
}

func (m *mockStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[name]; !ok {
		return driven.ErrProjectNotFound
	}
	delete(m.projects, name)
	return nil
}

func (m *mockStore) Increment(_ context.Context, name string, at time.Time) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[name]
	if !ok {
		return nil, driven.ErrProjectNotFound
	}
	p.Count++
	p.LastPingAt = at
	m.projects[name] = p
	return &p, nil
}

func (m *mockStore) Ping(_ context.Context) error {
	return m.pingErr
}

func (m *mockStore) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[name].Count
}

func (m *mockStore) lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// mockDispatcher records dispatched events.
type mockDispatcher struct {
	mu     sync.Mutex
	events []model.DispatchEvent
	err    error
}

func (m *mockDispatcher) Dispatch(_ context.Context, event model.DispatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func (m *mockDispatcher) recorded() []model.DispatchEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DispatchEvent(nil), m.events...)
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
