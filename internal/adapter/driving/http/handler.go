// Package httphandler is the REST driving adapter.
package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/life-experimentalist/actionscounter/internal/application"
	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

const (
	// AdminPasswordHeader carries the admin password on mutating routes.
	AdminPasswordHeader = "X-Admin-Password"
	// ProjectAuthHeader carries a project's auth token on the webhook route.
	ProjectAuthHeader = "X-Project-Auth"

	maxBodyBytes = 64 << 10
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	projects     *application.ProjectService
	registration *application.RegistrationService
	webhooks     *application.WebhookService
	health       *application.HealthService
	refresh      *application.RefreshService
	limiter      *ipLimiter
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a Handler with all required dependencies. webhookRate
// and webhookBurst bound inbound webhooks per client IP.
func NewHandler(
	projects *application.ProjectService,
	registration *application.RegistrationService,
	webhooks *application.WebhookService,
	health *application.HealthService,
	refresh *application.RefreshService,
	webhookRate float64,
	webhookBurst int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		projects:     projects,
		registration: registration,
		webhooks:     webhooks,
		health:       health,
		refresh:      refresh,
		limiter:      newIPLimiter(webhookRate, webhookBurst),
		logger:       logger,
		now:          time.Now,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with request ID, logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/projects", h.ListProjects)
	mux.HandleFunc("POST /api/v1/projects", h.RegisterProject)
	mux.HandleFunc("GET /api/v1/projects/{name}", h.GetProject)
	mux.HandleFunc("PUT /api/v1/projects/{name}", h.UpdateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{name}", h.DeleteProject)
	mux.HandleFunc("POST /api/v1/projects/{name}/ping", h.PingProject)
	mux.HandleFunc("POST /api/v1/webhook", rateLimit(h.limiter, h.Webhook))
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)
	wrapped = requestIDMiddleware(wrapped)

	return wrapped
}

// fail writes the response for a service error, logging unexpected ones.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, args ...any) {
	status, message := statusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, append(args, "error", err, "request_id", RequestIDFromContext(r.Context()))...)
	}
	writeError(w, status, message)
}

// decodeBody decodes a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// ListProjects returns all projects, filtered by ?q= when present.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, "failed to list projects", err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponses(projects, h.now()))
}

// GetProject returns a single project by name.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	p, err := h.projects.Get(r.Context(), name)
	if err != nil {
		h.fail(w, r, "failed to get project", err, "project", name)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*p, h.now()))
}

// RegisterProject registers a project and returns its alias, token and
// webhook description. The token is shown only in this response.
func (h *Handler) RegisterProject(w http.ResponseWriter, r *http.Request) {
	var req RegisterProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	reg, err := h.registration.Register(r.Context(), application.RegisterRequest{
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Tags:        req.Tags,
		Category:    req.Category,
		Priority:    model.ProjectPriority(req.Priority),
		Owner:       req.Owner,
		Password:    r.Header.Get(AdminPasswordHeader),
	})
	if err != nil {
		h.fail(w, r, "failed to register project", err, "project", req.Name)
		return
	}

	writeJSON(w, http.StatusCreated, RegistrationResponse{
		Project: toProjectResponse(reg.Project, h.now()),
		Alias:   string(reg.Alias),
		Token:   string(reg.Token),
		Webhook: toWebhookInfoResponse(reg.Webhook),
	})
}

// UpdateProject applies the fields present in the body.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req UpdateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	upd := application.ProjectUpdate{
		Description: req.Description,
		URL:         req.URL,
		Tags:        req.Tags,
		Category:    req.Category,
	}
	if req.Status != nil {
		s := model.ProjectStatus(*req.Status)
		upd.Status = &s
	}
	if req.Priority != nil {
		p := model.ProjectPriority(*req.Priority)
		upd.Priority = &p
	}

	p, err := h.projects.Update(r.Context(), name, r.Header.Get(AdminPasswordHeader), upd)
	if err != nil {
		h.fail(w, r, "failed to update project", err, "project", name)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*p, h.now()))
}

// DeleteProject removes a project.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.projects.Delete(r.Context(), name, r.Header.Get(AdminPasswordHeader)); err != nil {
		h.fail(w, r, "failed to delete project", err, "project", name)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PingProject increments a project's counter without credentials.
func (h *Handler) PingProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	p, err := h.projects.Ping(r.Context(), name)
	if err != nil {
		h.fail(w, r, "failed to ping project", err, "project", name)
		return
	}

	writeJSON(w, http.StatusOK, toProjectResponse(*p, h.now()))
}

// Webhook handles the token-authenticated increment sent by a project's CI.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.EventType != "" && req.EventType != string(model.EventIncrement) {
		writeError(w, http.StatusBadRequest, "unsupported event_type")
		return
	}

	res, err := h.webhooks.Handle(r.Context(), req.alias(), projectToken(r))
	if err != nil {
		h.fail(w, r, "failed to handle webhook", err)
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{
		Status:  "ok",
		Ref:     res.Ref.String(),
		Project: res.Project.Name,
		Count:   res.Project.Count,
	})
}

// projectToken reads X-Project-Auth, falling back to a bearer token.
func projectToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(ProjectAuthHeader)); tok != "" {
		return tok
	}
	scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}

// Stats returns aggregate counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.projects.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "failed to compute stats", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// Refresh reloads the project snapshot now instead of waiting for the next
// interval, then returns the fresh stats. Admin only.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Authorize(r.Header.Get(AdminPasswordHeader)); err != nil {
		h.fail(w, r, "refresh rejected", err)
		return
	}
	if err := h.refresh.Refresh(r.Context()); err != nil {
		h.fail(w, r, "failed to refresh projects", err)
		return
	}

	stats, err := h.projects.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// Health reports store reachability; 503 when the store is down.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, toHealthResponse(report))
}
