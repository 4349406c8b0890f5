// Package logger wraps log/slog with the bridge's defaults.
//
// Production writes JSON to stdout; development writes colored text to stderr.
// Every long-lived component takes a child logger via Component so log lines
// carry a "component" field.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

var defaultLogger atomic.Pointer[slog.Logger]

func init() { defaultLogger.Store(newLogger(false, slog.LevelInfo)) }

// Field keys shared across packages.
const (
	FieldComponent = "component"
	FieldChatID    = "chat_id"
	FieldSenderID  = "sender_id"
	FieldMsgID     = "msg_id"
	FieldJobID     = "job_id"
	FieldState     = "state"
	FieldCommand   = "command"
	FieldError     = "error"
	FieldPath      = "path"
	FieldBytes     = "bytes"
	FieldDuration  = "duration_ms"
	FieldCount     = "count"
)

func newLogger(development bool, level slog.Level) *slog.Logger {
	if development {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			AddSource:  true,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR to a slog level. Unknown values map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default logger. env is "development"/"dev" or anything else for production.
func Init(env, level string) {
	dev := env == "development" || env == "dev"
	l := newLogger(dev, ParseLevel(level))
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// InitStderr installs a JSON logger on stderr, for processes whose stdout
// carries a protocol.
func InitStderr(level string) {
	l := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: ParseLevel(level)}))
	defaultLogger.Store(l)
	slog.SetDefault(l)
}

// Get returns the current default logger.
func Get() *slog.Logger { return defaultLogger.Load() }

// Component returns a child logger tagged with the component name.
func Component(name string) *slog.Logger {
	return Get().With(FieldComponent, name)
}

type ctxKey struct{}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return Get()
}

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
