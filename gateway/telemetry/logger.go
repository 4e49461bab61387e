package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var sensitiveKeys = map[string]struct{}{
	"token":         {},
	"authorization": {},
	"password":      {},
}

// partialKeys are shown truncated rather than hidden.
var partialKeys = map[string]struct{}{
	"sessionid":  {},
	"session_id": {},
}

// RedactValue hides sensitive values by returning a placeholder.
func RedactValue(key string, value any) any {
	k := strings.ToLower(key)
	if _, ok := sensitiveKeys[k]; ok {
		return "[REDACTED]"
	}
	if _, ok := partialKeys[k]; ok {
		if s, ok := value.(string); ok && len(s) > 8 {
			return s[:8] + "..."
		}
	}
	return value
}

// ParseLevel maps a level name (debug, info, warn/warning, error) to a
// slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlogLogger implements the gateway.Logger interface using log/slog.
type SlogLogger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger that writes JSON to stdout.
func NewLogger(level string) *SlogLogger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo writes JSON lines to w.
func NewLoggerTo(w io.Writer, level string) *SlogLogger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindString {
				if v, ok := RedactValue(a.Key, a.Value.String()).(string); ok {
					a.Value = slog.StringValue(v)
				}
			}
			return a
		},
	}
	return &SlogLogger{
		logger: slog.New(slog.NewJSONHandler(w, opts)),
	}
}

// Slog exposes the underlying logger for components that take *slog.Logger.
func (l *SlogLogger) Slog() *slog.Logger {
	return l.logger
}

// Debug logs a debug message.
func (l *SlogLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

// Info logs an informational message.
func (l *SlogLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

// Warn logs a warning.
func (l *SlogLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}

// Error logs an error message.
func (l *SlogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	// We append the error to the keysAndValues
	args := append(keysAndValues, "error", err)
	l.logger.Error(msg, args...)
}
