package notify

import (
	"context"

	"github.com/akhmetov/payvault/pkg/logger"
)

// LogNotifier writes events to the structured log. Useful on its own in
// development and as a fallback companion to real transports.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log.WithField("component", "notifier")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, event Event, payload any) {
	n.logger.WithContext(ctx).Info("event", "event", string(event), "payload", payload)
}
