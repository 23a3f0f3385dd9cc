package logger

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lmittmann/tint"
)

// Environment variable names for log configuration.
const (
	envLogLevel  = "CH10PARSE_LOG_LEVEL"
	envLogFormat = "CH10PARSE_LOG_FORMAT"
)

var (
	// atomicLevel implements slog.Leveler and can be changed at runtime.
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}
	// global logger instance
	global   *slog.Logger
	initOnce sync.Once

	// Optional flags (users may pass -log-level=debug -log-format=text). If
	// flag.Parse hasn't yet been called when Init is invoked, we still read
	// the raw os.Args.
	flagLevel  = flag.String("log-level", "", "log level (debug, info, warn, error)")
	flagFormat = flag.String("log-format", "", "log format (json, text)")
)

// dynamicLevel is an atomic Leveler.
type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Init initializes the global logger. It is safe to call multiple times; the
// first call wins except SetLevel / UseWriter which mutate state intentionally.
func Init() {
	initOnce.Do(func() {
		atomicLevel.set(detectLevel())
		global = slog.New(newHandler(os.Stdout, detectFormat()))
	})
}

func newHandler(w io.Writer, format string) slog.Handler {
	if format == "text" {
		return tint.NewHandler(w, &tint.Options{Level: atomicLevel})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel})
}

// detectLevel resolves the initial log level from (precedence high→low):
//  1. command-line flag -log-level
//  2. environment variable CH10PARSE_LOG_LEVEL
//  3. default (info)
func detectLevel() slog.Level {
	if *flagLevel == "" {
		scanArgForFlag("-log-level=", flagLevel)
	}
	if lvl, ok := parseLevel(strings.TrimSpace(*flagLevel)); ok {
		return lvl
	}
	if env := os.Getenv(envLogLevel); env != "" {
		if lvl, ok := parseLevel(env); ok {
			return lvl
		}
	}
	return slog.LevelInfo
}

// detectFormat resolves the output format with the same precedence as
// detectLevel. Defaults to "json".
func detectFormat() string {
	if *flagFormat == "" {
		scanArgForFlag("-log-format=", flagFormat)
	}
	f := strings.ToLower(strings.TrimSpace(*flagFormat))
	if f == "text" || f == "json" {
		return f
	}
	if env := strings.ToLower(strings.TrimSpace(os.Getenv(envLogFormat))); env == "text" || env == "json" {
		return env
	}
	return "json"
}

// scanArgForFlag looks for a "prefix=value" argument in os.Args and stores
// value into dst when dst is currently unset. Used so Init() works whether
// or not flag.Parse has already run.
func scanArgForFlag(prefix string, dst *string) {
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, prefix) {
			parts := strings.SplitN(arg, "=", 2)
			if len(parts) == 2 {
				*dst = parts[1]
			}
		}
	}
}

// parseLevel converts string to slog.Level.
func parseLevel(s string) (slog.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel changes the runtime log level.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errors.New("invalid log level: " + level)
	}
	atomicLevel.set(lvl)
	return nil
}

// Level returns the current runtime level as string.
func Level() string {
	Init()
	return atomicLevel.Level().String()
}

// UseWriter swaps the output writer (intended for tests). Retains the
// current level and uses JSON output so tests can parse records.
func UseWriter(w io.Writer) {
	Init()
	global = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel}))
}

// Logger returns the global logger (ensures Init was called).
func Logger() *slog.Logger { Init(); return global }

// Convenience top-level logging functions.
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// WithRun attaches a run identity (the manager's xid-based RunID) to every
// subsequent log line so operators can correlate logs, metrics, and the
// output directory for one parse invocation.
func WithRun(l *slog.Logger, runID string) *slog.Logger {
	return l.With("run_id", runID)
}

// WithWorker attaches worker identity fields.
func WithWorker(l *slog.Logger, workerIndex int) *slog.Logger {
	return l.With("worker", workerIndex)
}

// WithChannel attaches the current Ch10 channel id.
func WithChannel(l *slog.Logger, channelID uint16) *slog.Logger {
	return l.With("channel_id", channelID)
}
