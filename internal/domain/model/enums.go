package model

import (
	"fmt"
	"strings"
)

// ProjectStatus represents the lifecycle state of a tracked project.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusInactive ProjectStatus = "inactive"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusInactive, ProjectStatusArchived:
		return true
	}
	return false
}

// ProjectPriority is the operator-assigned importance of a project.
type ProjectPriority string

const (
	PriorityLow    ProjectPriority = "low"
	PriorityMedium ProjectPriority = "medium"
	PriorityHigh   ProjectPriority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p ProjectPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// StorageMode selects where project counters are persisted.
type StorageMode string

const (
	StorageModeGitHubVariables   StorageMode = "github-variables"
	StorageModeDatabase          StorageMode = "database"
	StorageModeRepositoryCommits StorageMode = "repository-commits"
)

// ParseStorageMode accepts the mode names and their numeric aliases
// ("1", "2", "3"). Underscores are accepted in place of dashes.
func ParseStorageMode(s string) (StorageMode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "1", string(StorageModeGitHubVariables):
		return StorageModeGitHubVariables, nil
	case "2", string(StorageModeDatabase):
		return StorageModeDatabase, nil
	case "3", string(StorageModeRepositoryCommits):
		return StorageModeRepositoryCommits, nil
	}
	return "", fmt.Errorf("unknown storage mode %q", s)
}

// Label returns the human-readable name shown on the dashboard.
func (m StorageMode) Label() string {
	switch m {
	case StorageModeGitHubVariables:
		return "GitHub Variables"
	case StorageModeDatabase:
		return "Database"
	case StorageModeRepositoryCommits:
		return "Repository Commits"
	}
	return "Unknown"
}

// EventType is the repository_dispatch event_type sent to GitHub.
type EventType string

const (
	EventPing      EventType = "ping"
	EventAdd       EventType = "add"
	EventUpdate    EventType = "update"
	EventDelete    EventType = "delete"
	EventIncrement EventType = "increment"
)

// AuthMode selects how inbound webhook credentials are checked.
type AuthMode string

const (
	// AuthModeLedger checks the token shape, then compares its hash with the
	// one stored at registration.
	AuthModeLedger AuthMode = "ledger"
	// AuthModeFormat checks only the alias and token prefixes.
	AuthModeFormat AuthMode = "format"
)

// ParseAuthMode accepts "ledger" or "format", case-insensitively.
func ParseAuthMode(s string) (AuthMode, error) {
	switch AuthMode(strings.ToLower(strings.TrimSpace(s))) {
	case AuthModeLedger:
		return AuthModeLedger, nil
	case AuthModeFormat:
		return AuthModeFormat, nil
	}
	return "", fmt.Errorf("unknown auth mode %q", s)
}
