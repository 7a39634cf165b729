package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

const projectColumns = `id, name, alias, token_hash, description, url, count, tags, category, status, priority, owner, created_at, last_ping_at, updated_at`

const uniqueViolation = "23505"

// ProjectRepo is the PostgreSQL implementation of the ProjectStore port.
type ProjectRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewProjectRepo constructs a ProjectRepo on an open pool.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool, now: time.Now}
}

// Get fetches a project by name. Returns nil, nil when absent.
func (r *ProjectRepo) Get(ctx context.Context, name string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE name = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project %q: %w", name, err)
	}
	return p, nil
}

// GetByAlias fetches a project by alias. Returns nil, nil when absent.
func (r *ProjectRepo) GetByAlias(ctx context.Context, alias string) (*model.Project, error) {
	if alias == "" {
		return nil, nil
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE alias = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, alias))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project by alias %q: %w", alias, err)
	}
	return p, nil
}

// List returns every project ordered by name.
func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
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

// Create inserts a project, mapping unique violations to ErrProjectAlreadyExists.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project) error {
	const query = `INSERT INTO projects
		(name, alias, token_hash, description, url, count, tags, category, status, priority, owner, created_at, last_ping_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	if _, err := r.pool.Exec(ctx, query, r.args(p)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create project %q: %w", p.Name, driven.ErrProjectAlreadyExists)
		}
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}
	return nil
}

// Put upserts a project by name. An existing row keeps its count and
// last_ping_at.
func (r *ProjectRepo) Put(ctx context.Context, p model.Project) error {
	const query = `INSERT INTO projects
		(name, alias, token_hash, description, url, count, tags, category, status, priority, owner, created_at, last_ping_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (name) DO UPDATE SET
			alias        = EXCLUDED.alias,
			token_hash   = EXCLUDED.token_hash,
			description  = EXCLUDED.description,
			url          = EXCLUDED.url,
			tags         = EXCLUDED.tags,
			category     = EXCLUDED.category,
			status       = EXCLUDED.status,
			priority     = EXCLUDED.priority,
			owner        = EXCLUDED.owner,
			updated_at   = EXCLUDED.updated_at`

	if _, err := r.pool.Exec(ctx, query, r.args(p)...); err != nil {
		return fmt.Errorf("put project %q: %w", p.Name, err)
	}
	return nil
}

// Delete removes a project by name.
func (r *ProjectRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete project %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete project %q: %w", name, driven.ErrProjectNotFound)
	}
	return nil
}

// Increment bumps the count with a single UPDATE ... RETURNING.
func (r *ProjectRepo) Increment(ctx context.Context, name string, at time.Time) (*model.Project, error) {
	query := `UPDATE projects SET count = count + 1, last_ping_at = $1, updated_at = $1
		WHERE name = $2 RETURNING ` + projectColumns

	p, err := scanProject(r.pool.QueryRow(ctx, query, at.UTC(), name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("increment project %q: %w", name, driven.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("increment project %q: %w", name, err)
	}
	return p, nil
}

// Ping checks pool connectivity.
func (r *ProjectRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *ProjectRepo) args(p model.Project) []any {
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
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	var alias *string
	if p.Alias != "" {
		alias = &p.Alias
	}
	var lastPing *time.Time
	if !p.LastPingAt.IsZero() {
		t := p.LastPingAt.UTC()
		lastPing = &t
	}

	return []any{
		p.Name, alias, p.TokenHash, p.Description, p.URL, p.Count, tags,
		p.Category, string(status), string(priority), p.Owner,
		created.UTC(), lastPing, updated.UTC(),
	}
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var (
		p                model.Project
		alias            *string
		lastPing         *time.Time
		status, priority string
	)

	err := row.Scan(&p.ID, &p.Name, &alias, &p.TokenHash, &p.Description, &p.URL, &p.Count,
		&p.Tags, &p.Category, &status, &priority, &p.Owner, &p.CreatedAt, &lastPing, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if alias != nil {
		p.Alias = *alias
	}
	if lastPing != nil {
		p.LastPingAt = lastPing.UTC()
	}
	if len(p.Tags) == 0 {
		p.Tags = nil
	}
	p.Status = model.ProjectStatus(status)
	p.Priority = model.ProjectPriority(priority)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}
