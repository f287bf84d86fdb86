// Package notify provides outbound alert notification channels.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// Ensure LogNotifier implements Notifier
var _ integration.Notifier = (*LogNotifier)(nil)

// LogNotifier writes alerts to the structured log. It is the default
// channel when no external endpoint is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the alert and never fails
func (n *LogNotifier) Notify(ctx context.Context, alert integration.Alert) error {
	fields := []zap.Field{
		zap.String("kind", string(alert.Kind)),
		zap.String("severity", string(alert.Severity)),
		zap.String("message", alert.Message),
		zap.Time("raised_at", alert.RaisedAt),
	}
	if alert.Provider != "" {
		fields = append(fields, zap.String("provider", string(alert.Provider)))
	}
	if alert.IntegrationID != nil {
		fields = append(fields, zap.String("integration_id", alert.IntegrationID.String()))
	}
	n.logger.Warn("ALERT", fields...)
	return nil
}
