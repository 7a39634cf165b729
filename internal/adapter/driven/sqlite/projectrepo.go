package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

const projectColumns = `id, name, alias, token_hash, description, url, count, tags, category, status, priority, owner, created_at, last_ping_at, updated_at`

// ProjectRepo is the SQLite implementation of the ProjectStore port.
type ProjectRepo struct {
	db  *DB
	now func() time.Time
}

// NewProjectRepo creates a new ProjectRepo backed by the given DB.
func NewProjectRepo(db *DB) *ProjectRepo {
	return &ProjectRepo{db: db, now: time.Now}
}

// Get retrieves a project by name. Returns nil, nil if it does not exist.
func (r *ProjectRepo) Get(ctx context.Context, name string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = ?`

	p, err := scanProject(r.db.Reader.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project %q: %w", name, err)
	}
	return p, nil
}

// GetByAlias retrieves a project by its alias. Returns nil, nil if no project
// carries that alias.
func (r *ProjectRepo) GetByAlias(ctx context.Context, alias string) (*model.Project, error) {
	if alias == "" {
		return nil, nil
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE alias = ?`

	p, err := scanProject(r.db.Reader.QueryRowContext(ctx, query, alias))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by alias %q: %w", alias, err)
	}
	return p, nil
}

// List returns all projects ordered by name.
func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

// Create inserts a new project. Returns ErrProjectAlreadyExists when the name
// or alias is already taken.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project) error {
	const query = `INSERT INTO projects
		(name, alias, token_hash, description, url, count, tags, category, status, priority, owner, created_at, last_ping_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	args, err := r.insertArgs(p)
	if err != nil {
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, args...); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("create project %q: %w", p.Name, driven.ErrProjectAlreadyExists)
		}
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}
	return nil
}

// Put inserts the project or replaces the editable columns of an existing
// row with the same name. The row id, created_at, count and last_ping_at
// are preserved so increments racing an edit are not lost.
func (r *ProjectRepo) Put(ctx context.Context, p model.Project) error {
	const query = `INSERT INTO projects
		(name, alias, token_hash, description, url, count, tags, category, status, priority, owner, created_at, last_ping_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			alias        = excluded.alias,
			token_hash   = excluded.token_hash,
			description  = excluded.description,
			url          = excluded.url,
			tags         = excluded.tags,
			category     = excluded.category,
			status       = excluded.status,
			priority     = excluded.priority,
			owner        = excluded.owner,
			updated_at   = excluded.updated_at`

	args, err := r.insertArgs(p)
	if err != nil {
		return fmt.Errorf("put project %q: %w", p.Name, err)
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put project %q: %w", p.Name, err)
	}
	return nil
}

// Delete removes a project by name.
func (r *ProjectRepo) Delete(ctx context.Context, name string) error {
	const query = `DELETE FROM projects WHERE name = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("delete project %q: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete project %q: %w", name, driven.ErrProjectNotFound)
	}
	return nil
}

// Increment bumps the counter in a single statement so concurrent pings are
// never lost.
func (r *ProjectRepo) Increment(ctx context.Context, name string, at time.Time) (*model.Project, error) {
	query := `UPDATE projects SET count = count + 1, last_ping_at = ?, updated_at = ?
		WHERE name = ? RETURNING ` + projectColumns

	stamp := formatTime(at)
	p, err := scanProject(r.db.Writer.QueryRowContext(ctx, query, stamp, stamp, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("increment project %q: %w", name, driven.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("increment project %q: %w", name, err)
	}
	return p, nil
}

// Ping verifies the reader pool is usable.
func (r *ProjectRepo) Ping(ctx context.Context) error {
	return r.db.Reader.PingContext(ctx)
}

func (r *ProjectRepo) insertArgs(p model.Project) ([]any, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	now := r.now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = now
	}
	status := p.Status
	if status == "" {
		status = model.ProjectStatusActive
	}
	priority := p.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	var alias, lastPing sql.NullString
	if p.Alias != "" {
		alias = sql.NullString{String: p.Alias, Valid: true}
	}
	if !p.LastPingAt.IsZero() {
		lastPing = sql.NullString{String: formatTime(p.LastPingAt), Valid: true}
	}

	return []any{
		p.Name, alias, p.TokenHash, p.Description, p.URL, p.Count, string(tagsJSON),
		p.Category, string(status), string(priority), p.Owner,
		formatTime(created), lastPing, formatTime(updated),
	}, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*model.Project, error) {
	var (
		p                    model.Project
		alias, lastPing      sql.NullString
		tags, status, prio   string
		createdAt, updatedAt string
	)

	err := s.Scan(&p.ID, &p.Name, &alias, &p.TokenHash, &p.Description, &p.URL, &p.Count,
		&tags, &p.Category, &status, &prio, &p.Owner, &createdAt, &lastPing, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Alias = alias.String
	p.Status = model.ProjectStatus(status)
	p.Priority = model.ProjectPriority(prio)

	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastPing.Valid {
		if p.LastPingAt, err = parseTime(lastPing.String); err != nil {
			return nil, fmt.Errorf("parse last_ping_at: %w", err)
		}
	}

	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
