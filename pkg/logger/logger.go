// Package logger is the component-tagged structured logger shared by every
// wspanel package. Entries are JSON lines carrying a "component" attribute
// plus any caller-supplied fields.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a level name to a LogLevel, ignoring case. Unknown names
// map to INFO.
func ParseLevel(name string) LogLevel {
	name = strings.TrimSpace(name)
	for l, n := range levelNames {
		if strings.EqualFold(n, name) {
			return l
		}
	}
	return INFO
}

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	current = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLevel changes the minimum level for all subsequent entries.
func SetLevel(l LogLevel) {
	level.Set(l.slogLevel())
}

// GetLevel returns the current minimum level.
func GetLevel() LogLevel {
	switch lv := level.Level(); {
	case lv <= slog.LevelDebug:
		return DEBUG
	case lv <= slog.LevelInfo:
		return INFO
	case lv <= slog.LevelWarn:
		return WARN
	default:
		return ERROR
	}
}

// SetOutput redirects log output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	current = newLogger(w)
}

func logMessage(l LogLevel, component, message string, fields map[string]any) {
	mu.RLock()
	lg := current
	mu.RUnlock()

	attrs := make([]slog.Attr, 0, len(fields)+1)
	if component != "" {
		attrs = append(attrs, slog.String("component", component))
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	lg.LogAttrs(context.Background(), l.slogLevel(), message, attrs...)
}

func Debug(message string) { logMessage(DEBUG, "", message, nil) }
func DebugC(component, message string) { logMessage(DEBUG, component, message, nil) }
func DebugCF(component, message string, fields map[string]any) { logMessage(DEBUG, component, message, fields) }

func Info(message string) { logMessage(INFO, "", message, nil) }
func InfoC(component, message string) { logMessage(INFO, component, message, nil) }
func InfoCF(component, message string, fields map[string]any) { logMessage(INFO, component, message, fields) }

func Warn(message string) { logMessage(WARN, "", message, nil) }
func WarnC(component, message string) { logMessage(WARN, component, message, nil) }
func WarnCF(component, message string, fields map[string]any) { logMessage(WARN, component, message, fields) }

func Error(message string) { logMessage(ERROR, "", message, nil) }
func ErrorC(component, message string) { logMessage(ERROR, component, message, nil) }
func ErrorCF(component, message string, fields map[string]any) { logMessage(ERROR, component, message, fields) }
