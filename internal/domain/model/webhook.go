package model

// WebhookInfo describes the authenticated request a project's CI uses to
// increment its counter. It is shown to the operator once at registration.
type WebhookInfo struct {
	URL         string
	Method      string
	Headers     map[string]string
	Body        string
	Description string
}

// DispatchEvent is a repository_dispatch event mirrored to GitHub.
type DispatchEvent struct {
	Type    EventType
	Payload map[string]any
}
