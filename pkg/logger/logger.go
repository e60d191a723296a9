// Package logger provides the process-wide structured logger built on
// log/slog.
//
// Handlers and services pull a request-scoped logger out of the context so
// every line carries the request_id set by the Logger middleware:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("folder created", "id", item.ID)
//	// → time=... level=INFO msg="folder created" request_id=a1b2c3d4 id=42
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/filemanager/config"
)

var L *slog.Logger

func init() {
	L = New(os.Stdout, config.AppEnv(), config.LogLevel())
	slog.SetDefault(L)
}

// New builds a logger for env: JSON in production, text everywhere else.
// level overrides the env default when it names a known level.
func New(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	prod := env == "production" || env == "prod"
	if prod {
		opts.Level = slog.LevelInfo
	}
	switch level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn", "warning":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	if prod {
		return slog.New(slog.NewJSONHandler(w, opts)) // structured JSON for log aggregators
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ctxKey is the unexported key used to store a per-request *slog.Logger.
type ctxKey struct{}

// WithCtx returns the logger injected by the Logger middleware, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a request-scoped logger into ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// Short-hand helpers on the base logger.

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
