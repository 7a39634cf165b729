package driven

import (
	"context"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
)

// Dispatcher defines the driven port for mirroring events to GitHub as
// repository_dispatch events.
type Dispatcher interface {
	Dispatch(ctx context.Context, event model.DispatchEvent) error
}

// WebhookSender fires the project-token authenticated increment webhook.
type WebhookSender interface {
	SendProjectWebhook(ctx context.Context, alias, token string) error
}

// ModeDetector reports the storage mode configured on the repository.
type ModeDetector interface {
	DetectStorageMode(ctx context.Context) (model.StorageMode, error)
}
