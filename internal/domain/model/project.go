package model

import "time"

// Project is a tracked counter. Alias and TokenHash are assigned once at
// registration; the plaintext auth token is never stored.
type Project struct {
	ID          int64
	Name        string
	Alias       string
	TokenHash   string
	Description string
	URL         string
	Count       int64
	Tags        []string
	Category    string
	Status      ProjectStatus
	Priority    ProjectPriority
	Owner       string
	CreatedAt   time.Time
	LastPingAt  time.Time
	UpdatedAt   time.Time
}

// ProjectData is the JSON document persisted by the GitHub-backed storage
// modes, keyed by project name.
type ProjectData struct {
	Projects map[string]DocumentProject `json:"projects"`
	Meta     DocumentMeta               `json:"meta"`
}

// DocumentMeta carries aggregate values recomputed on every document write.
type DocumentMeta struct {
	LastUpdated string `json:"last_updated"`
	TotalPings  int64  `json:"total_pings"`
	Version     string `json:"version"`
}

// DocumentProject is the on-disk shape of a project in ProjectData.
type DocumentProject struct {
	Name        string   `json:"name"`
	Alias       string   `json:"alias,omitempty"`
	TokenHash   string   `json:"auth_token_hash,omitempty"`
	Description string   `json:"description"`
	ProjectURL  string   `json:"project_url"`
	Count       int64    `json:"count"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Created     string   `json:"created"`
	LastPing    string   `json:"last_ping"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// DocumentVersion is written to ProjectData.Meta.Version.
const DocumentVersion = "2.0.0"

// NewProjectData returns an empty document stamped with now.
func NewProjectData(now time.Time) ProjectData {
	return ProjectData{
		Projects: map[string]DocumentProject{},
		Meta: DocumentMeta{
			LastUpdated: now.UTC().Format(time.RFC3339),
			Version:     DocumentVersion,
		},
	}
}

// Stats summarizes all tracked projects.
type Stats struct {
	TotalProjects int
	TotalPings    int64
	MostActive    string // empty when there are no projects
	LastUpdated   time.Time
}
