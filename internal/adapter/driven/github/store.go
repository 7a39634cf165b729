package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v82/github"

	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ProjectStore = (*VariableStore)(nil)
	_ driven.ProjectStore = (*ContentStore)(nil)
)

// DefaultContentPath is the repository file written in repository-commits mode.
const DefaultContentPath = "data/projects.json"

// VariableStore persists projects as base64 JSON in the PROJECTS_DATA
// Actions variable.
type VariableStore struct {
	*documentStore
}

// NewVariableStore binds a VariableStore to the client's repository.
func NewVariableStore(client *Client) *VariableStore {
	return &VariableStore{documentStore: newDocumentStore(&variableBackend{client: client, name: VariableProjectsData})}
}

type variableBackend struct {
	client *Client
	name   string
}

func (b *variableBackend) load(ctx context.Context) ([]byte, string, error) {
	value, ok, err := b.client.GetVariable(ctx, b.name)
	if err != nil {
		return nil, "", err
	}
	if !ok || value == "" {
		return nil, "", nil
	}
	return decodeVariable(value), "", nil
}

func (b *variableBackend) save(ctx context.Context, data []byte, _ string) error {
	return b.client.SetVariable(ctx, b.name, base64.StdEncoding.EncodeToString(data))
}

func (b *variableBackend) ping(ctx context.Context) error {
	_, _, err := b.client.GetVariable(ctx, b.name)
	return err
}

// ContentStore persists projects as a JSON file committed to the repository.
// Writes carry the blob SHA they read so concurrent commits are detected.
type ContentStore struct {
	*documentStore
}

// NewContentStore binds a ContentStore to path on branch. An empty path
// selects DefaultContentPath; an empty branch selects the default branch.
func NewContentStore(client *Client, path, branch string) *ContentStore {
	if path == "" {
		path = DefaultContentPath
	}
	return &ContentStore{documentStore: newDocumentStore(&contentBackend{client: client, path: path, branch: branch})}
}

type contentBackend struct {
	client *Client
	path   string
	branch string
}

func (b *contentBackend) load(ctx context.Context) ([]byte, string, error) {
	c := b.client
	var opts *gh.RepositoryContentGetOptions
	if b.branch != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: b.branch}
	}

	file, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, b.path, opts)
	if err != nil {
		if isNotFound(resp) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading %s on %s: %w", b.path, c.Repo(), err)
	}
	logRateLimit(resp, c.Repo()+"/contents/"+b.path, 0, 1)
	if file == nil {
		return nil, "", fmt.Errorf("reading %s on %s: path is a directory", b.path, c.Repo())
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", b.path, err)
	}
	return []byte(content), file.GetSHA(), nil
}

func (b *contentBackend) save(ctx context.Context, data []byte, sha string) error {
	c := b.client
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr("Update project counters"),
		Content: data,
	}
	if b.branch != "" {
		opts.Branch = gh.Ptr(b.branch)
	}

	var (
		resp *gh.Response
		err  error
	)
	if sha == "" {
		_, resp, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, b.path, opts)
	} else {
		opts.SHA = gh.Ptr(sha)
		_, resp, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, b.path, opts)
	}
	if err != nil {
		// A create racing another create surfaces as 422 "sha wasn't supplied".
		if isConflict(err) || (sha == "" && resp != nil && resp.StatusCode == http.StatusUnprocessableEntity) {
			return fmt.Errorf("writing %s: %w", b.path, errStaleDocument)
		}
		return fmt.Errorf("writing %s on %s: %w", b.path, c.Repo(), err)
	}
	logRateLimit(resp, c.Repo()+"/contents/"+b.path, 0, 1)
	return nil
}

func (b *contentBackend) ping(ctx context.Context) error {
	c := b.client
	_, resp, err := c.gh.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return fmt.Errorf("reading repository %s: %w", c.Repo(), err)
	}
	logRateLimit(resp, c.Repo(), 0, 1)
	return nil
}
