// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

// EnvPrefix is prepended to every variable name below.
const EnvPrefix = "ACTIONSCOUNTER_"

// Database backends selectable in database storage mode.
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
	DBTypeRedis    = "redis"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// GitHub
	GitHubToken  string `env:"GITHUB_TOKEN"`
	RepoOwner    string `env:"REPO_OWNER" envDefault:"Life-Experimentalist"`
	RepoName     string `env:"REPO_NAME" envDefault:"ActionsCounter"`
	Repo         string `env:"REPO"` // owner/name; overrides RepoOwner and RepoName
	GitHubAPIURL string `env:"GITHUB_API_URL" envDefault:"https://api.github.com/"`

	// Storage
	StorageMode   model.StorageMode `env:"STORAGE_MODE" envDefault:"database"`
	DBType        string            `env:"DB_TYPE" envDefault:"sqlite"`
	DBPath        string            `env:"DB_PATH" envDefault:"actionscounter.db"`
	DatabaseURL   string            `env:"DATABASE_URL"`
	RedisAddr     string            `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string            `env:"REDIS_PASSWORD"`
	RedisDB       int               `env:"REDIS_DB" envDefault:"0"`
	ContentPath   string            `env:"CONTENT_PATH" envDefault:"data/projects.json"`
	ContentBranch string            `env:"CONTENT_BRANCH"`

	// Auth
	AdminPassword  string         `env:"ADMIN_PASSWORD"`
	AuthMode       model.AuthMode `env:"AUTH_MODE" envDefault:"ledger"`
	DispatchEvents bool           `env:"DISPATCH_EVENTS" envDefault:"false"`

	// Server
	ListenAddr      string        `env:"LISTEN_ADDR" envDefault:"127.0.0.1:8080"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"1m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	WebhookRate     float64       `env:"WEBHOOK_RATE" envDefault:"5"`
	WebhookBurst    int           `env:"WEBHOOK_BURST" envDefault:"10"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`
}

// HasGitHubCredentials returns true when a GitHub token is configured.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// UsesGitHubStorage reports whether projects live in the repository itself.
func (c *Config) UsesGitHubStorage() bool {
	return c.StorageMode == model.StorageModeGitHubVariables || c.StorageMode == model.StorageModeRepositoryCommits
}

// RepoFullName returns "owner/name".
func (c *Config) RepoFullName() string {
	return c.RepoOwner + "/" + c.RepoName
}

// Parse reads the environment without cross-field validation. The
// derivation-only CLI commands use it so they run without credentials.
func Parse() (*Config, error) {
	cfg := &Config{}
	opts := env.Options{
		Prefix: EnvPrefix,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(model.StorageMode("")): func(v string) (any, error) {
				return model.ParseStorageMode(v)
			},
			reflect.TypeOf(model.AuthMode("")): func(v string) (any, error) {
				return model.ParseAuthMode(v)
			},
		},
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, err
	}

	if cfg.Repo != "" {
		owner, name, ok := strings.Cut(cfg.Repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return nil, fmt.Errorf("%sREPO has invalid value %q: expected owner/name", EnvPrefix, cfg.Repo)
		}
		cfg.RepoOwner, cfg.RepoName = owner, name
	}
	cfg.DBType = strings.ToLower(strings.TrimSpace(cfg.DBType))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	return cfg, nil
}

// Load reads configuration from environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Every message names the
// offending variable.
func (c *Config) Validate() error {
	var errs []error

	if c.RepoOwner == "" || c.RepoName == "" {
		errs = append(errs, fmt.Errorf("%sREPO_OWNER and %sREPO_NAME must not be empty", EnvPrefix, EnvPrefix))
	}

	switch c.StorageMode {
	case model.StorageModeDatabase:
		switch c.DBType {
		case DBTypeSQLite:
			if c.DBPath == "" {
				errs = append(errs, fmt.Errorf("%sDB_PATH is required for sqlite", EnvPrefix))
			}
		case DBTypePostgres:
			if c.DatabaseURL == "" {
				errs = append(errs, fmt.Errorf("%sDATABASE_URL is required for postgres", EnvPrefix))
			}
		case DBTypeRedis:
			if c.RedisAddr == "" {
				errs = append(errs, fmt.Errorf("%sREDIS_ADDR is required for redis", EnvPrefix))
			}
		default:
			errs = append(errs, fmt.Errorf("%sDB_TYPE has invalid value %q: expected sqlite, postgres or redis", EnvPrefix, c.DBType))
		}
	case model.StorageModeGitHubVariables, model.StorageModeRepositoryCommits:
		if !c.HasGitHubCredentials() {
			errs = append(errs, fmt.Errorf("%sGITHUB_TOKEN is required for storage mode %s", EnvPrefix, c.StorageMode))
		}
	}

	if c.DispatchEvents && !c.HasGitHubCredentials() {
		errs = append(errs, fmt.Errorf("%sGITHUB_TOKEN is required when %sDISPATCH_EVENTS is set", EnvPrefix, EnvPrefix))
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("%sREFRESH_INTERVAL must be positive, got %s", EnvPrefix, c.RefreshInterval))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("%sCACHE_TTL must not be negative, got %s", EnvPrefix, c.CacheTTL))
	}
	if c.WebhookRate <= 0 || c.WebhookBurst <= 0 {
		errs = append(errs, fmt.Errorf("%sWEBHOOK_RATE and %sWEBHOOK_BURST must be positive", EnvPrefix, EnvPrefix))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("%sLOG_FORMAT has invalid value %q: expected json or text", EnvPrefix, c.LogFormat))
	}

	return errors.Join(errs...)
}
