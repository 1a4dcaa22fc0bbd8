package session

import "github.com/tinyland-inc/wspanel/pkg/logger"

// Analytics category and actions reported by the controller.
const (
	TrackCategory     = "Web sockets"
	ActionConnect     = "Connect to socket"
	ActionSendMessage = "Send message"
	ActionSendFile    = "Send file"
)

// Tracker receives analytics intents.
type Tracker interface {
	Track(category, action string)
}

// NopTracker discards every event.
type NopTracker struct{}

func (NopTracker) Track(string, string) {}

// LogTracker writes analytics events to the log.
type LogTracker struct{}

func (LogTracker) Track(category, action string) {
	logger.InfoCF("analytics", action, map[string]any{"category": category})
}
