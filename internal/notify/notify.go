// Package notify is the fire-and-forget "present a message" surface the
// core uses for user-facing feedback.
package notify

import (
	"log/slog"
	"strings"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Notifier presents a message to the user. Implementations must not block.
type Notifier interface {
	Notify(level Level, message string)
}

// Func adapts a function to Notifier.
type Func func(level Level, message string)

func (f Func) Notify(level Level, message string) { f(level, message) }

// Log writes notifications to slog.
type Log struct{}

func (Log) Notify(level Level, message string) {
	switch level {
	case LevelError:
		slog.Error(message, "notify", level)
	case LevelWarn:
		slog.Warn(message, "notify", level)
	default:
		slog.Info(message, "notify", level)
	}
}

// Multi fans a notification out to every non-nil notifier.
type Multi []Notifier

func (m Multi) Notify(level Level, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(level, message)
		}
	}
}

// Discard drops every notification.
var Discard Notifier = Func(func(Level, string) {})

// ParseLevel maps a string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch l := Level(strings.ToLower(s)); l {
	case LevelSuccess, LevelWarn, LevelError:
		return l
	case "warning":
		return LevelWarn
	default:
		return LevelInfo
	}
}
