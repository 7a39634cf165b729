package application

import (
	"context"
	"log/slog"
	"sync"

	"github.com/life-experimentalist/actionscounter/internal/domain/model"
	"github.com/life-experimentalist/actionscounter/internal/domain/port/driven"
	"github.com/life-experimentalist/actionscounter/internal/telemetry"
)

// DispatcherProvider holds the current GitHub dispatcher behind a mutex so
// the client can be swapped without restarting. A nil dispatcher means
// events are not mirrored.
type DispatcherProvider struct {
	mu         sync.RWMutex
	dispatcher driven.Dispatcher
}

// NewDispatcherProvider creates a provider. d may be nil.
func NewDispatcherProvider(d driven.Dispatcher) *DispatcherProvider {
	return &DispatcherProvider{dispatcher: d}
}

// Get returns the current dispatcher, possibly nil.
func (p *DispatcherProvider) Get() driven.Dispatcher {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dispatcher
}

// Replace swaps the current dispatcher.
func (p *DispatcherProvider) Replace(d driven.Dispatcher) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dispatcher = d
}

// HasDispatcher returns true if a non-nil dispatcher is currently held.
func (p *DispatcherProvider) HasDispatcher() bool {
	return p.Get() != nil
}

// mirror sends event when a dispatcher is configured. Failures are logged
// and counted but never fail the local operation.
func (p *DispatcherProvider) mirror(ctx context.Context, logger *slog.Logger, event model.DispatchEvent) {
	d := p.Get()
	if d == nil {
		return
	}
	if err := d.Dispatch(ctx, event); err != nil {
		telemetry.DispatchesTotal.WithLabelValues(string(event.Type), "error").Inc()
		logger.Warn("dispatch mirror failed", "event", event.Type, "error", err)
		return
	}
	telemetry.DispatchesTotal.WithLabelValues(string(event.Type), "ok").Inc()
}
