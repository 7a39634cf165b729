package application

import "errors"

// Sentinel errors returned by the application services. The HTTP adapter
// maps them to status codes with errors.Is.
var (
	// ErrInvalidProjectName indicates a name that is empty, too long or
	// contains characters outside [A-Za-z0-9._-].
	ErrInvalidProjectName = errors.New("invalid project name")

	// ErrInvalidInput indicates a malformed field other than the name.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates a missing or wrong admin password.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAuthFailed indicates a webhook alias/token pair was rejected.
	ErrAuthFailed = errors.New("webhook authentication failed")

	// ErrDispatcherUnavailable indicates an operation needs GitHub but no
	// client is configured.
	ErrDispatcherUnavailable = errors.New("github dispatcher unavailable")
)
