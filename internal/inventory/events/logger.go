package events

import (
	"context"
	"log/slog"
)

// Logger writes each event as a structured log line.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Publish(ctx context.Context, event Event) error {
	l.logger.InfoContext(ctx, "inventory event",
		"event_type", string(event.Type),
		"item_id", event.ItemID,
		"reservation_id", event.ReservationID,
		"quantity", event.Quantity,
		"status", event.Status,
		"request_id", event.RequestID,
	)
	return nil
}
