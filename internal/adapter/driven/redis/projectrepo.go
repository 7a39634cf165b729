// Package redis implements the ProjectStore port on a Redis server. Each
// project is a hash, names are indexed in a set and aliases map to names
// through plain string keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ProjectStore = (*ProjectRepo)(nil)

const defaultPrefix = "actionscounter:"

// incrementScript bumps the count only when the project hash exists, so a
// concurrent Delete cannot leave a partial hash behind.
var incrementScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local c = redis.call('HINCRBY', KEYS[1], 'count', 1)
redis.call('HSET', KEYS[1], 'last_ping_at', ARGV[1], 'updated_at', ARGV[1])
return c
`)

// putScript upserts the project hash. ARGV holds the name, the alias, the
// alias key prefix, a keep-created_at flag, then field/value pairs.
var putScript = goredis.NewScript(`
local exists = redis.call('EXISTS', KEYS[1]) == 1
local previous = redis.call('HGET', KEYS[1], 'alias')
for i = 5, #ARGV, 2 do
	local f = ARGV[i]
	local skip = exists and (f == 'count' or f == 'last_ping_at' or (f == 'created_at' and ARGV[4] == '1'))
	if not skip then
		redis.call('HSET', KEYS[1], f, ARGV[i + 1])
	end
end
redis.call('SADD', KEYS[2], ARGV[1])
if previous and previous ~= '' and previous ~= ARGV[2] then
	redis.call('DEL', ARGV[3] .. previous)
end
if ARGV[2] ~= '' then
	redis.call('SET', ARGV[3] .. ARGV[2], ARGV[1])
end
return exists and 1 or 0
`)

// ProjectRepo is the Redis implementation of the ProjectStore port.
type ProjectRepo struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// Connect creates a client for addr and verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewProjectRepo constructs a ProjectRepo. An empty prefix selects the default
// "actionscounter:" namespace.
func NewProjectRepo(client goredis.UniversalClient, prefix string) *ProjectRepo {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ProjectRepo{client: client, prefix: prefix, now: time.Now}
}

func (r *ProjectRepo) projectKey(name string) string { return r.prefix + "project:" + name }
func (r *ProjectRepo) aliasKey(alias string) string  { return r.prefix + "alias:" + alias }
func (r *ProjectRepo) indexKey() string              { return r.prefix + "projects" }

// Get reads a project hash. Returns nil, nil when absent.
func (r *ProjectRepo) Get(ctx context.Context, name string) (*model.Project, error) {
	fields, err := r.client.HGetAll(ctx, r.projectKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("get project %q: %w", name, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	p, err := decodeProject(fields)
	if err != nil {
		return nil, fmt.Errorf("decode project %q: %w", name, err)
	}
	return p, nil
}

// GetByAlias resolves alias to a name and reads the project.
func (r *ProjectRepo) GetByAlias(ctx context.Context, alias string) (*model.Project, error) {
	if alias == "" {
		return nil, nil
	}
	name, err := r.client.Get(ctx, r.aliasKey(alias)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve alias %q: %w", alias, err)
	}
	return r.Get(ctx, name)
}

// List reads every indexed project and sorts by name.
func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	names, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list project names: %w", err)
	}
	sort.Strings(names)

	cmds, err := r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, name := range names {
			pipe.HGetAll(ctx, r.projectKey(name))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]model.Project, 0, len(cmds))
	for i, cmd := range cmds {
		fields, err := cmd.(*goredis.MapStringStringCmd).Result()
		if err != nil {
			return nil, fmt.Errorf("read project %q: %w", names[i], err)
		}
		if len(fields) == 0 {
			continue
		}
		p, err := decodeProject(fields)
		if err != nil {
			return nil, fmt.Errorf("decode project %q: %w", names[i], err)
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// Create writes a new project. The existence checks and writes run under
// WATCH so a concurrent Create of the same name or alias fails cleanly.
func (r *ProjectRepo) Create(ctx context.Context, p model.Project) error {
	key := r.projectKey(p.Name)
	watched := []string{key}
	if p.Alias != "" {
		watched = append(watched, r.aliasKey(p.Alias))
	}

	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, watched...).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return driven.ErrProjectAlreadyExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return r.write(ctx, pipe, p, "")
		})
		return err
	}, watched...)
	if errors.Is(err, goredis.TxFailedErr) {
		err = driven.ErrProjectAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create project %q: %w", p.Name, err)
	}
	return nil
}

// Put writes a project, moving its alias mapping if the alias changed. On
// an existing hash count and last_ping_at are left to Increment, and a zero
// CreatedAt keeps the stored one. The script runs atomically, so a
// concurrent increment neither aborts the write nor is overwritten by it.
func (r *ProjectRepo) Put(ctx context.Context, p model.Project) error {
	keepCreated := "0"
	if p.CreatedAt.IsZero() {
		keepCreated = "1"
	}
	fields, err := r.encodeProject(p)
	if err != nil {
		return fmt.Errorf("put project %q: %w", p.Name, err)
	}

	args := make([]any, 0, 4+2*len(fields))
	args = append(args, p.Name, p.Alias, r.aliasKey(""), keepCreated)
	for k, v := range fields {
		args = append(args, k, v)
	}

	keys := []string{r.projectKey(p.Name), r.indexKey()}
	if err := putScript.Run(ctx, r.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("put project %q: %w", p.Name, err)
	}
	return nil
}

// Delete removes the hash, its index entry and its alias mapping.
func (r *ProjectRepo) Delete(ctx context.Context, name string) error {
	key := r.projectKey(name)
	alias, err := r.client.HGet(ctx, key, "alias").Result()
	if errors.Is(err, goredis.Nil) {
		exists, existsErr := r.client.Exists(ctx, key).Result()
		if existsErr != nil {
			return fmt.Errorf("delete project %q: %w", name, existsErr)
		}
		if exists == 0 {
			return fmt.Errorf("delete project %q: %w", name, driven.ErrProjectNotFound)
		}
	} else if err != nil {
		return fmt.Errorf("delete project %q: %w", name, err)
	}

	var removed *goredis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		removed = pipe.Del(ctx, key)
		pipe.SRem(ctx, r.indexKey(), name)
		if alias != "" {
			pipe.Del(ctx, r.aliasKey(alias))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete project %q: %w", name, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("delete project %q: %w", name, driven.ErrProjectNotFound)
	}
	return nil
}

// Increment runs the increment script and returns the updated project.
func (r *ProjectRepo) Increment(ctx context.Context, name string, at time.Time) (*model.Project, error) {
	res, err := incrementScript.Run(ctx, r.client, []string{r.projectKey(name)}, formatTime(at)).Int64()
	if err != nil {
		return nil, fmt.Errorf("increment project %q: %w", name, err)
	}
	if res < 0 {
		return nil, fmt.Errorf("increment project %q: %w", name, driven.ErrProjectNotFound)
	}

	p, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("increment project %q: %w", name, driven.ErrProjectNotFound)
	}
	return p, nil
}

// Ping issues a Redis PING.
func (r *ProjectRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *ProjectRepo) write(ctx context.Context, pipe goredis.Pipeliner, p model.Project, previousAlias string) error {
	fields, err := r.encodeProject(p)
	if err != nil {
		return err
	}
	pipe.HSet(ctx, r.projectKey(p.Name), fields)
	pipe.SAdd(ctx, r.indexKey(), p.Name)
	if previousAlias != "" && previousAlias != p.Alias {
		pipe.Del(ctx, r.aliasKey(previousAlias))
	}
	if p.Alias != "" {
		pipe.Set(ctx, r.aliasKey(p.Alias), p.Name, 0)
	}
	return nil
}

func (r *ProjectRepo) encodeProject(p model.Project) (map[string]any, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	now := r.now()
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

	fields := map[string]any{
		"name":        p.Name,
		"alias":       p.Alias,
		"token_hash":  p.TokenHash,
		"description": p.Description,
		"url":         p.URL,
		"count":       p.Count,
		"tags":        string(tagsJSON),
		"category":    p.Category,
		"status":      string(p.Status),
		"priority":    string(p.Priority),
		"owner":       p.Owner,
		"created_at":  formatTime(p.CreatedAt),
		"updated_at":  formatTime(p.UpdatedAt),
	}
	if !p.LastPingAt.IsZero() {
		fields["last_ping_at"] = formatTime(p.LastPingAt)
	}
	return fields, nil
}

func decodeProject(f map[string]string) (*model.Project, error) {
	p := &model.Project{
		Name:        f["name"],
		Alias:       f["alias"],
		TokenHash:   f["token_hash"],
		Description: f["description"],
		URL:         f["url"],
		Category:    f["category"],
		Status:      model.ProjectStatus(f["status"]),
		Priority:    model.ProjectPriority(f["priority"]),
		Owner:       f["owner"],
	}

	var err error
	if v := f["count"]; v != "" {
		if p.Count, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("parse count: %w", err)
		}
	}
	if v := f["tags"]; v != "" {
		if err := json.Unmarshal([]byte(v), &p.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		if len(p.Tags) == 0 {
			p.Tags = nil
		}
	}
	if p.CreatedAt, err = parseOptionalTime(f["created_at"]); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = parseOptionalTime(f["updated_at"]); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if p.LastPingAt, err = parseOptionalTime(f["last_ping_at"]); err != nil {
		return nil, fmt.Errorf("parse last_ping_at: %w", err)
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
