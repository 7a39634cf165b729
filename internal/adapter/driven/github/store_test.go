package github_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/life-experimentalist/actionscounter/internal/adapter/driven/github"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// fakeContents is an in-memory single-file contents API with SHA checks.
type fakeContents struct {
	mu       sync.Mutex
	content  []byte
	sha      string
	writes   int
	conflict int // number of upcoming writes to reject with 409
}

func (f *fakeContents) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /repos/octo/counter/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.sha == "" {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"type":     "file",
			"path":     r.PathValue("path"),
			"encoding": "base64",
			"content":  base64.StdEncoding.EncodeToString(f.content),
			"sha":      f.sha,
		})
	})
	mux.HandleFunc("PUT /repos/octo/counter/contents/{path...}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var body struct {
			Message string `json:"message"`
			Content string `json:"content"`
			SHA     string `json:"sha"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if f.conflict > 0 {
			f.conflict--
			f.sha = fmt.Sprintf("sha-%d-external", f.writes)
			http.Error(w, `{"message":"is at a different sha"}`, http.StatusConflict)
			return
		}
		if body.SHA != f.sha {
			http.Error(w, `{"message":"sha mismatch"}`, http.StatusConflict)
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			http.Error(w, `{"message":"bad content"}`, http.StatusUnprocessableEntity)
			return
		}
		f.writes++
		f.content = decoded
		f.sha = fmt.Sprintf("sha-%d", f.writes)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"sha": f.sha}})
	})
}

func (f *fakeContents) document(t *testing.T) model.ProjectData {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var doc model.ProjectData
	require.NoError(t, json.Unmarshal(f.content, &doc))
	return doc
}

func sampleProject(name, alias string) model.Project {
	return model.Project{
		Name:        name,
		Alias:       alias,
		TokenHash:   "hash-" + name,
		Description: "Counter for " + name,
		URL:         "https://github.com/octo/" + name,
		Tags:        []string{"demo"},
		CreatedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestVariableStore_Lifecycle(t *testing.T) {
	vars := newFakeVariables(nil)
	mux := http.NewServeMux()
	vars.register(mux)
	client, _ := newTestClient(t, mux)
	store := ghAdapter.NewVariableStore(client)
	ctx := context.Background()

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, store.Create(ctx, sampleProject("alpha", "proj_aaaaaaaa_000001")))
	assert.ErrorIs(t, store.Create(ctx, sampleProject("alpha", "")), driven.ErrProjectAlreadyExists)
	assert.ErrorIs(t, store.Create(ctx, sampleProject("beta", "proj_aaaaaaaa_000001")), driven.ErrProjectAlreadyExists)

	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	got, err := store.Increment(ctx, "alpha", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Count)
	assert.Equal(t, at, got.LastPingAt)

	byAlias, err := store.GetByAlias(ctx, "proj_aaaaaaaa_000001")
	require.NoError(t, err)
	require.NotNil(t, byAlias)
	assert.Equal(t, "alpha", byAlias.Name)
	assert.Equal(t, "hash-alpha", byAlias.TokenHash)

	raw, err := base64.StdEncoding.DecodeString(vars.get("PROJECTS_DATA"))
	require.NoError(t, err, "variable must hold base64 JSON")
	var doc model.ProjectData
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, int64(1), doc.Meta.TotalPings)
	assert.Equal(t, model.DocumentVersion, doc.Meta.Version)
	assert.Equal(t, "https://github.com/octo/alpha", doc.Projects["alpha"].ProjectURL)

	require.NoError(t, store.Delete(ctx, "alpha"))
	assert.ErrorIs(t, store.Delete(ctx, "alpha"), driven.ErrProjectNotFound)

	_, err = store.Increment(ctx, "alpha", at)
	assert.ErrorIs(t, err, driven.ErrProjectNotFound)
}

func TestVariableStore_ReadsPlainJSON(t *testing.T) {
	vars := newFakeVariables(map[string]string{
		"PROJECTS_DATA": `{"projects":{"legacy":{"name":"legacy","description":"d","project_url":"u","count":7,"created":"2025-01-01T00:00:00Z","last_ping":""}},"meta":{"total_pings":7}}`,
	})
	mux := http.NewServeMux()
	vars.register(mux)
	client, _ := newTestClient(t, mux)
	store := ghAdapter.NewVariableStore(client)

	got, err := store.Get(context.Background(), "legacy")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Count)
	assert.Equal(t, model.ProjectStatusActive, got.Status)
	assert.True(t, got.LastPingAt.IsZero())
}

func TestContentStore_CreatesThenUpdatesWithSHA(t *testing.T) {
	contents := &fakeContents{}
	mux := http.NewServeMux()
	contents.register(mux)
	client, _ := newTestClient(t, mux)
	store := ghAdapter.NewContentStore(client, "", "")
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleProject("alpha", "")))
	require.NoError(t, store.Put(ctx, sampleProject("bravo", "")))

	for range 3 {
		_, err := store.Increment(ctx, "bravo", time.Now())
		require.NoError(t, err)
	}

	doc := contents.document(t)
	assert.Len(t, doc.Projects, 2)
	assert.Equal(t, int64(3), doc.Projects["bravo"].Count)
	assert.Equal(t, int64(3), doc.Meta.TotalPings)
	assert.Equal(t, 5, contents.writes)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "bravo", all[1].Name)
}

func TestContentStore_PutKeepsCounter(t *testing.T) {
	contents := &fakeContents{}
	mux := http.NewServeMux()
	contents.register(mux)
	client, _ := newTestClient(t, mux)
	store := ghAdapter.NewContentStore(client, "", "")
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleProject("alpha", "")))
	stale, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	require.NotNil(t, stale)

	_, err = store.Increment(ctx, "alpha", time.Now())
	require.NoError(t, err)

	stale.Description = "edited"
	require.NoError(t, store.Put(ctx, *stale))

	got, err := store.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Description)
	assert.Equal(t, int64(1), got.Count)
	assert.False(t, got.LastPingAt.IsZero())
	assert.Equal(t, int64(1), contents.document(t).Meta.TotalPings)
}

func TestContentStore_RetriesOnConflict(t *testing.T) {
	contents := &fakeContents{}
	mux := http.NewServeMux()
	contents.register(mux)
	client, _ := newTestClient(t, mux)
	store := ghAdapter.NewContentStore(client, "data/projects.json", "")
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleProject("alpha", "")))

	contents.mu.Lock()
	contents.conflict = 1
	contents.mu.Unlock()

	got, err := store.Increment(ctx, "alpha", time.Now())

	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Count)
}

func TestContentStore_Ping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/counter", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"full_name":"octo/counter"}`))
	})
	client, _ := newTestClient(t, mux)

	assert.NoError(t, ghAdapter.NewContentStore(client, "", "").Ping(context.Background()))
}
