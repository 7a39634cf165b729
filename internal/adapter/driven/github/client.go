// Package github implements the dispatch, variable and document storage
// ports on the GitHub REST API using the go-github library.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Dispatcher    = (*Client)(nil)
	_ driven.WebhookSender = (*Client)(nil)
	_ driven.ModeDetector  = (*Client)(nil)
)

// Repository variable names read and written by the client.
const (
	VariableStorageMode   = "STORAGE_MODE"
	VariableAnalyticsData = "ANALYTICS_DATA"
	VariableProjectsData  = "PROJECTS_DATA"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com/"

// Client talks to a single repository. Admin calls authenticate with the
// operator's PAT; project webhooks authenticate with the project token.
type Client struct {
	gh    *gh.Client // PAT-authenticated
	anon  *gh.Client // same transport, no credentials
	owner string
	repo  string
	now   func() time.Time
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token, baseURL, repoFullName string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	return newClient(rateLimitClient, baseURL, repoFullName, token)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, repoFullName, token string) (*Client, error) {
	return newClient(httpClient, baseURL, repoFullName, token)
}

func newClient(httpClient *http.Client, baseURL, repoFullName, token string) (*Client, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	authed := gh.NewClient(httpClient)
	if token != "" {
		authed = authed.WithAuthToken(token)
	}
	authed.BaseURL = u

	anon := gh.NewClient(httpClient)
	anon.BaseURL = u

	return &Client{
		gh:    authed,
		anon:  anon,
		owner: owner,
		repo:  repo,
		now:   time.Now,
	}, nil
}

// Repo returns the "owner/repo" the client is bound to.
func (c *Client) Repo() string { return c.owner + "/" + c.repo }

// DispatchURL returns the repository_dispatch endpoint for the bound repository.
func (c *Client) DispatchURL() string {
	return c.gh.BaseURL.String() + fmt.Sprintf("repos/%s/%s/dispatches", c.owner, c.repo)
}

// Dispatch sends a repository_dispatch event authenticated with the PAT.
func (c *Client) Dispatch(ctx context.Context, event model.DispatchEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	msg := json.RawMessage(raw)

	_, resp, err := c.gh.Repositories.Dispatch(ctx, c.owner, c.repo, gh.DispatchRequestOptions{
		EventType:     string(event.Type),
		ClientPayload: &msg,
	})
	if err != nil {
		return fmt.Errorf("dispatching %s event to %s: %w", event.Type, c.Repo(), err)
	}
	logRateLimit(resp, c.Repo()+"/dispatches", 0, 1)
	return nil
}

// webhookRequest is the body of the project increment webhook.
type webhookRequest struct {
	EventType     string         `json:"event_type"`
	ClientPayload webhookPayload `json:"client_payload"`
}

type webhookPayload struct {
	ProjectAlias string `json:"project_alias"`
	Timestamp    int64  `json:"timestamp"`
}

// SendProjectWebhook fires the increment dispatch carrying only the alias,
// authenticated with the project token instead of the PAT.
func (c *Client) SendProjectWebhook(ctx context.Context, alias, token string) error {
	body := webhookRequest{
		EventType: string(model.EventIncrement),
		ClientPayload: webhookPayload{
			ProjectAlias: alias,
			Timestamp:    c.now().UnixMilli(),
		},
	}

	u := fmt.Sprintf("repos/%s/%s/dispatches", c.owner, c.repo)
	req, err := c.anon.NewRequest(http.MethodPost, u, body)
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Project-Auth", token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.anon.Do(ctx, req, nil)
	if err != nil {
		return fmt.Errorf("sending webhook for %s: %w", alias, err)
	}
	logRateLimit(resp, c.Repo()+"/dispatches", 0, 1)
	return nil
}

// GetVariable reads a repository Actions variable. ok is false when the
// variable does not exist.
func (c *Client) GetVariable(ctx context.Context, name string) (value string, ok bool, err error) {
	v, resp, err := c.gh.Actions.GetRepoVariable(ctx, c.owner, c.repo, name)
	if err != nil {
		if isNotFound(resp) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading variable %s on %s: %w", name, c.Repo(), err)
	}
	logRateLimit(resp, c.Repo()+"/variables/"+name, 0, 1)
	return v.Value, true, nil
}

// SetVariable updates a repository Actions variable, creating it when absent.
func (c *Client) SetVariable(ctx context.Context, name, value string) error {
	variable := &gh.ActionsVariable{Name: name, Value: value}

	resp, err := c.gh.Actions.UpdateRepoVariable(ctx, c.owner, c.repo, variable)
	if err == nil {
		logRateLimit(resp, c.Repo()+"/variables/"+name, 0, 1)
		return nil
	}
	if !isNotFound(resp) {
		return fmt.Errorf("updating variable %s on %s: %w", name, c.Repo(), err)
	}

	if _, err := c.gh.Actions.CreateRepoVariable(ctx, c.owner, c.repo, variable); err != nil {
		return fmt.Errorf("creating variable %s on %s: %w", name, c.Repo(), err)
	}
	return nil
}

// DetectStorageMode resolves the repository's storage mode from the
// STORAGE_MODE variable, then the storage_mode field of ANALYTICS_DATA,
// defaulting to github-variables.
func (c *Client) DetectStorageMode(ctx context.Context) (model.StorageMode, error) {
	raw, ok, err := c.GetVariable(ctx, VariableStorageMode)
	if err != nil {
		return "", err
	}
	if ok && strings.TrimSpace(raw) != "" {
		mode, err := model.ParseStorageMode(raw)
		if err != nil {
			return "", fmt.Errorf("variable %s: %w", VariableStorageMode, err)
		}
		return mode, nil
	}

	raw, ok, err = c.GetVariable(ctx, VariableAnalyticsData)
	if err != nil {
		return "", err
	}
	if ok {
		var analytics struct {
			StorageMode string `json:"storage_mode"`
		}
		if err := json.Unmarshal(decodeVariable(raw), &analytics); err != nil {
			slog.Warn("unreadable analytics variable, using default storage mode", "error", err)
		} else if analytics.StorageMode != "" {
			mode, err := model.ParseStorageMode(analytics.StorageMode)
			if err != nil {
				return "", fmt.Errorf("variable %s: %w", VariableAnalyticsData, err)
			}
			return mode, nil
		}
	}

	return model.StorageModeGitHubVariables, nil
}

// ValidateToken verifies that the given GitHub personal access token is valid
// and returns the authenticated username on success. It creates a one-shot
// client with the provided token to avoid mutating the receiver's state.
func (c *Client) ValidateToken(ctx context.Context, token string) (string, error) {
	tempClient := gh.NewClient(&http.Client{Timeout: 10 * time.Second}).WithAuthToken(token)
	tempClient.BaseURL = c.gh.BaseURL
	user, _, err := tempClient.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	return user.GetLogin(), nil
}

// decodeVariable returns the JSON carried by a variable value, which is
// either base64-encoded or plain.
func decodeVariable(value string) []byte {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed)
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return decoded
	}
	return []byte(trimmed)
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

// isConflict reports a stale SHA on a contents write.
func isConflict(err error) bool {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusConflict
	}
	return false
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
