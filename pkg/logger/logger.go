// Package logger provides the structured logging facade used across
// agentcore. It wraps charmbracelet/log so CLI-style human output and JSON
// output share one configuration surface, and exposes a context-carried
// logger so request-scoped fields (thread_id, user_id, turn) flow through
// every middleware without being threaded explicitly.
package logger

import (
	"context"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel is a closed set of supported logging levels.
type LogLevel string

const (
	DebugLevel    LogLevel = "debug"
	InfoLevel     LogLevel = "info"
	WarnLevel     LogLevel = "warn"
	ErrorLevel    LogLevel = "error"
	DisabledLevel LogLevel = "disabled"
)

// ToCharmlogLevel converts a LogLevel to the underlying charmbracelet level.
// Unknown values default to InfoLevel.
func (l LogLevel) ToCharmlogLevel() charmlog.Level {
	switch l {
	case DebugLevel:
		return charmlog.DebugLevel
	case InfoLevel:
		return charmlog.InfoLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	case DisabledLevel:
		return charmlog.Level(1000)
	default:
		return charmlog.InfoLevel
	}
}

// Config controls how a Logger is constructed.
type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	AddSource  bool
	TimeFormat string
}

// DefaultConfig returns the configuration used by a normally-running process.
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// TestConfig returns a configuration safe for use in unit tests: logging is
// fully disabled and output is discarded.
func TestConfig() *Config {
	return &Config{
		Level:      DisabledLevel,
		Output:     io.Discard,
		JSON:       false,
		AddSource:  false,
		TimeFormat: "15:04:05",
	}
}

// IsTestEnvironment reports whether the process is running under `go test`.
func IsTestEnvironment() bool {
	for _, arg := range os.Args {
		if len(arg) >= 5 && arg[len(arg)-5:] == ".test" {
			return true
		}
	}
	return os.Getenv("GO_TEST") == "1" || testBinaryDetected()
}

func testBinaryDetected() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	return len(exe) > 5 && exe[len(exe)-5:] == ".test"
}

// Logger is the facade used throughout agentcore. It is deliberately a thin
// wrapper so call sites never import charmbracelet/log directly.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type charmLogger struct {
	l *charmlog.Logger
}

// NewLogger constructs a Logger from Config. A nil config uses DefaultConfig,
// unless the process is detected to be a test binary, in which case
// TestConfig is used so package tests stay quiet by default.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		if IsTestEnvironment() {
			cfg = TestConfig()
		} else {
			cfg = DefaultConfig()
		}
	}
	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.AddSource,
	}
	if cfg.JSON {
		opts.Formatter = charmlog.JSONFormatter
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	l := charmlog.NewWithOptions(out, opts)
	l.SetLevel(cfg.Level.ToCharmlogLevel())
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}

type loggerCtxKey struct{}

// LoggerCtxKey is the context key under which a Logger is stored. Exported so
// callers (and tests) can detect wrong-type values defensively.
var LoggerCtxKey = loggerCtxKey{}

var defaultLogger = NewLogger(nil)

// ContextWithLogger returns a copy of ctx carrying logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, LoggerCtxKey, logger)
}

// FromContext extracts the Logger stored in ctx, falling back to a
// process-wide default logger when absent or of the wrong type.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(LoggerCtxKey).(Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger
}
