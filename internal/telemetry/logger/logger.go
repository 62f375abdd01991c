// Package logger provides structured logging built on slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logging surface used across usagemesh.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is json (default) or text. "console" is accepted for text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// AddSource adds file:line to every record.
	AddSource bool
	// NodeID, when set, is attached to every record as node_id.
	NodeID string
}

// DefaultConfig returns the configuration used before main installs one.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	}
}

var levelByName = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var nameByLevel = map[slog.Level]string{
	slog.LevelDebug: "debug",
	slog.LevelInfo:  "info",
	slog.LevelWarn:  "warn",
	slog.LevelError: "error",
}

// level is shared by every logger built with New so a config reload can
// change verbosity without rebuilding handlers.
var level = new(slog.LevelVar)

type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// New builds a logger writing redacted records to cfg.Output.
// It also resets the shared level to cfg.Level.
func New(cfg Config) (Logger, error) {
	level.Set(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	if f := strings.ToLower(cfg.Format); f == "text" || f == "console" {
		h = slog.NewTextHandler(out, opts)
	} else {
		h = slog.NewJSONHandler(out, opts)
	}

	l := slog.New(h)
	if cfg.NodeID != "" {
		l = l.With("node_id", cfg.NodeID)
	}
	return &slogLogger{logger: l, ctx: context.Background()}, nil
}

// SetLevel changes the level of every logger built with New.
// Unknown names fall back to info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the current level name.
func GetLevel() string {
	if name, ok := nameByLevel[level.Level()]; ok {
		return name
	}
	return "info"
}

func parseLevel(name string) slog.Level {
	if lv, ok := levelByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lv
	}
	return slog.LevelInfo
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{logger: l.logger, ctx: ctx}
}

// Slog exposes the underlying *slog.Logger.
func (l *slogLogger) Slog() *slog.Logger {
	return l.logger
}

// ToSlog returns the *slog.Logger behind l, for memberlist, badger and the
// HTTP middleware. Loggers not built by this package get the default one.
func ToSlog(l Logger) *slog.Logger {
	if sl, ok := l.(interface{ Slog() *slog.Logger }); ok {
		return sl.Slog()
	}
	return std.Load().logger
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return &slogLogger{logger: slog.New(h), ctx: context.Background()}
}

var std atomic.Pointer[slogLogger]

func init() {
	l, _ := New(DefaultConfig())
	std.Store(l.(*slogLogger))
}

// SetDefault replaces the package-level logger. Loggers from other
// packages are ignored.
func SetDefault(l Logger) {
	if sl, ok := l.(*slogLogger); ok {
		std.Store(sl)
	}
}

// Default returns the package-level logger.
func Default() Logger {
	return std.Load()
}

func Debug(msg string, args ...any) { std.Load().Debug(msg, args...) }
func Info(msg string, args ...any)  { std.Load().Info(msg, args...) }
func Warn(msg string, args ...any)  { std.Load().Warn(msg, args...) }
func Error(msg string, args ...any) { std.Load().Error(msg, args...) }
