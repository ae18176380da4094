package notify

import (
	"context"
	"log/slog"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/notification"
)

// LogSink writes notifications to the structured log instead of an external
// channel. Used in development and as a fallback when no push channel is
// configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Send implements notification.Sink.
func (s *LogSink) Send(_ context.Context, n *notification.Notification) notification.DeliveryResult {
	s.logger.Info("notification",
		"student_id", n.StudentID,
		"dojo_id", n.DojoID,
		"type", n.Type,
		"priority", int(n.Priority),
		"title", n.Title,
		"message", n.Message,
	)
	return notification.NewSuccessResult()
}

// IsAvailable implements notification.Sink. The log is always available.
func (s *LogSink) IsAvailable(_ context.Context) bool {
	return true
}
