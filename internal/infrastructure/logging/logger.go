package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/yavuzozge/homeseer-dimmers/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "dimmersync"

// redacted replaces the value of any attribute whose key names a secret.
const redacted = "[REDACTED]"

// secretKeys are attribute keys that must never reach the log. Matching
// is case-insensitive on the last path segment, so "auth.password" and
// "Token" are both caught.
var secretKeys = map[string]struct{}{
	"token":         {},
	"access_token":  {},
	"password":      {},
	"secret":        {},
	"authorization": {},
	"ticket":        {},
}

// Logger is the service's structured logger.
//
// Its Debug, Info, Warn and Error methods satisfy the small Logger
// interfaces declared by the service's packages, so a Logger (or a
// Component of it) can be handed straight to them.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by the logging section of config.yaml,
// writing to stdout unless cfg.Output is "stderr".
func New(cfg config.LoggingConfig, version string) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(out, cfg, version)
}

// NewWithWriter is New with an explicit destination; cfg.Output is ignored.
//
// Every entry carries service and version. Attributes keyed like a
// credential (see secretKeys) are logged as [REDACTED].
func NewWithWriter(out io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{Logger: slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)}
}

func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	if _, ok := secretKeys[key]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps debug, info, warn(ing) and error onto slog levels.
// Anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Component returns a child logger tagged with component=name, the
// convention for per-package loggers:
//
//	reconcile.New(reconcile.Deps{Logger: log.Component("reconcile")})
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}
