// Package notification delivers alerts about finished backtests to external
// channels.
package notification

import (
	"context"
	"log/slog"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	RunID   string     `json:"run_id,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier. A nil logger uses slog.Default().
func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	n.log.Info("alert", "level", string(alert.Level), "title", alert.Title, "message", alert.Message, "run_id", alert.RunID)
	return nil
}
