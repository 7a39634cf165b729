package driven

import (
	"context"
	"errors"
	"time"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

// Sentinel errors returned by ProjectStore implementations.
var (
	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectAlreadyExists indicates a project with the same name already exists.
	ErrProjectAlreadyExists = errors.New("project already exists")
)

// ProjectStore defines the driven port for project counter persistence.
// Every storage mode (relational, key-value, file-backed) implements it.
type ProjectStore interface {
	// Get returns the project with the given name, or nil, nil when absent.
	Get(ctx context.Context, name string) (*model.Project, error)

	// GetByAlias returns the project registered under alias, or nil, nil when absent.
	GetByAlias(ctx context.Context, alias string) (*model.Project, error)

	// List returns all projects ordered by name.
	List(ctx context.Context) ([]model.Project, error)

	// Create inserts a new project. Returns ErrProjectAlreadyExists on a
	// duplicate name.
	Create(ctx context.Context, project model.Project) error

	// Put inserts the project keyed by its name, or replaces the editable
	// fields of an existing one. Count and LastPingAt of an existing project
	// belong to Increment and are left as stored.
	Put(ctx context.Context, project model.Project) error

	// Delete removes a project. Returns ErrProjectNotFound when absent.
	Delete(ctx context.Context, name string) error

	// Increment atomically adds one to the project's count and sets its last
	// ping time to at. Returns ErrProjectNotFound when absent.
	Increment(ctx context.Context, name string, at time.Time) (*model.Project, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
