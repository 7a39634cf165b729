package httphandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForError maps service errors to an HTTP status and a client-safe
// message. Unknown errors become 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, application.ErrInvalidProjectName), errors.Is(err, application.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, application.ErrAuthFailed):
		return http.StatusForbidden, "invalid project credentials"
	case errors.Is(err, driven.ErrProjectNotFound):
		return http.StatusNotFound, "project not found"
	case errors.Is(err, driven.ErrProjectAlreadyExists):
		return http.StatusConflict, "project already exists"
	}
	return http.StatusInternalServerError, "internal server error"
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ProjectResponse is the JSON representation of a project. The token hash
// is never serialized.
type ProjectResponse struct {
	Name            string   `json:"name"`
	Alias           string   `json:"alias,omitempty"`
	Description     string   `json:"description"`
	DescriptionHTML string   `json:"description_html"`
	URL             string   `json:"url"`
	Count           int64    `json:"count"`
	Tags            []string `json:"tags"`
	Category        string   `json:"category,omitempty"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	Owner           string   `json:"owner,omitempty"`
	Activity        string   `json:"activity"`
	CreatedAt       string   `json:"created_at"`
	LastPingAt      string   `json:"last_ping_at,omitempty"`
	UpdatedAt       string   `json:"updated_at"`
}

// RegisterProjectRequest is the JSON body for POST /api/v1/projects.
type RegisterProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	Owner       string   `json:"owner"`
}

// UpdateProjectRequest is the JSON body for PUT /api/v1/projects/{name}.
// Omitted fields are left unchanged.
type UpdateProjectRequest struct {
	Description *string   `json:"description"`
	URL         *string   `json:"url"`
	Tags        *[]string `json:"tags"`
	Category    *string   `json:"category"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
}

// WebhookInfoResponse describes the request a project's CI sends.
type WebhookInfoResponse struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	Description string            `json:"description"`
}

// RegistrationResponse is returned once, on registration. The token cannot
// be retrieved again.
type RegistrationResponse struct {
	Project ProjectResponse     `json:"project"`
	Alias   string              `json:"alias"`
	Token   string              `json:"token"`
	Webhook WebhookInfoResponse `json:"webhook"`
}

// WebhookRequest is the inbound webhook body. It accepts the
// repository_dispatch shape or a flat alias.
type WebhookRequest struct {
	EventType     string `json:"event_type"`
	ProjectAlias  string `json:"project_alias"`
	ClientPayload struct {
		ProjectAlias string `json:"project_alias"`
		Timestamp    int64  `json:"timestamp"`
	} `json:"client_payload"`
}

// alias returns the payload alias, falling back to the top-level field.
func (r WebhookRequest) alias() string {
	if r.ClientPayload.ProjectAlias != "" {
		return r.ClientPayload.ProjectAlias
	}
	return r.ProjectAlias
}

// WebhookResponse acknowledges an accepted webhook.
type WebhookResponse struct {
	Status  string `json:"status"`
	Ref     string `json:"ref"`
	Project string `json:"project"`
	Count   int64  `json:"count"`
}

// StatsResponse is the JSON representation of model.Stats.
type StatsResponse struct {
	TotalProjects int    `json:"total_projects"`
	TotalPings    int64  `json:"total_pings"`
	MostActive    string `json:"most_active"`
	LastUpdated   string `json:"last_updated,omitempty"`
}

// HealthResponse is the JSON body for the health endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Time        string `json:"time"`
	StorageMode string `json:"storage_mode"`
	Backend     string `json:"backend"`
	Store       string `json:"store"`
	Version     string `json:"version"`
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toProjectResponse converts a domain Project to its JSON representation.
func toProjectResponse(p model.Project, now time.Time) ProjectResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return ProjectResponse{
		Name:            p.Name,
		Alias:           p.Alias,
		Description:     p.Description,
		DescriptionHTML: RenderMarkdown(p.Description),
		URL:             p.URL,
		Count:           p.Count,
		Tags:            tags,
		Category:        p.Category,
		Status:          string(p.Status),
		Priority:        string(p.Priority),
		Owner:           p.Owner,
		Activity:        application.ClassifyActivity(p.LastPingAt, now).String(),
		CreatedAt:       formatOptionalTime(p.CreatedAt),
		LastPingAt:      formatOptionalTime(p.LastPingAt),
		UpdatedAt:       formatOptionalTime(p.UpdatedAt),
	}
}

func toProjectResponses(projects []model.Project, now time.Time) []ProjectResponse {
	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p, now))
	}
	return resp
}

func toWebhookInfoResponse(info model.WebhookInfo) WebhookInfoResponse {
	return WebhookInfoResponse{
		URL:         info.URL,
		Method:      info.Method,
		Headers:     info.Headers,
		Body:        info.Body,
		Description: info.Description,
	}
}

func toStatsResponse(s model.Stats) StatsResponse {
	return StatsResponse{
		TotalProjects: s.TotalProjects,
		TotalPings:    s.TotalPings,
		MostActive:    s.MostActive,
		LastUpdated:   formatOptionalTime(s.LastUpdated),
	}
}

func toHealthResponse(r application.HealthReport) HealthResponse {
	store := "ok"
	if r.StoreError != "" {
		store = r.StoreError
	}
	return HealthResponse{
		Status:      r.Status,
		Time:        r.Time.UTC().Format(time.RFC3339),
		StorageMode: string(r.StorageMode),
		Backend:     r.Backend,
		Store:       store,
		Version:     r.Version,
	}
}
