package sync

import "log/slog"

// NotificationLevel is the severity of a background notification.
type NotificationLevel string

const (
	LevelInfo  NotificationLevel = "info"
	LevelWarn  NotificationLevel = "warn"
	LevelError NotificationLevel = "error"
)

// Notification is a user-facing message produced by background work
// (flush failures, session expiry, connectivity changes).
type Notification struct {
	Level   NotificationLevel
	Message string
}

// notify publishes without blocking. A full channel drops the message;
// notifications are advisory and must never stall a sync path.
func (c *Controller) notify(level NotificationLevel, msg string) {
	select {
	case c.notes <- Notification{Level: level, Message: msg}:
	default:
		slog.Debug("notification dropped", "level", level, "message", msg)
	}
}
