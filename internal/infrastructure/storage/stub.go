// Package storage provides object storage implementations for webhook
// payload archival.
package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/application/monitor"
	"github.com/syncbridge/backend/internal/domain/integration"
)

// Ensure NoopEventArchiver implements EventArchiver
var _ monitor.EventArchiver = (*NoopEventArchiver)(nil)

// NoopEventArchiver acknowledges archival without storing anything. Use it
// for development when no object storage backend is configured; expired
// payloads are then deleted without a copy.
type NoopEventArchiver struct {
	logger *zap.Logger
}

// NewNoopEventArchiver creates a new NoopEventArchiver
func NewNoopEventArchiver(logger *zap.Logger) *NoopEventArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopEventArchiver{logger: logger}
}

// Archive logs the discard and succeeds
func (a *NoopEventArchiver) Archive(ctx context.Context, event *integration.WebhookEvent) error {
	if event == nil {
		return errors.New("event is required")
	}
	a.logger.Debug("discarding webhook event without archival",
		zap.String("event_id", event.ID.String()),
		zap.String("provider", string(event.Provider)),
	)
	return nil
}
