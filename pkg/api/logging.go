package api

import "sync/atomic"

// LoggingManager toggles per-request node logging.
type LoggingManager struct {
	enabled atomic.Bool
}

// NewLoggingManager creates a logging manager.
func NewLoggingManager(enabled bool) *LoggingManager {
	m := &LoggingManager{}
	m.enabled.Store(enabled)
	return m
}

// IsEnabled reports whether request logging is on.
func (m *LoggingManager) IsEnabled() bool {
	return m.enabled.Load()
}

// SetEnabled turns request logging on or off.
func (m *LoggingManager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}
