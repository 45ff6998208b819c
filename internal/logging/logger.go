// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides a process-wide, swappable structured logger.
//
// The logger is backed by zerolog and is safe to read concurrently while
// Init is called from a single place at startup (before the supervisor tree
// starts). Callers should prefer the package-level helpers (Info, Warn,
// Error, ...) over holding onto a *zerolog.Logger across a config reload.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Config controls how the global logger is constructed.
type Config struct {
	// Level is one of trace/debug/info/warn/error/fatal/panic. Default: info.
	Level string
	// Format is "json" or "console". Default: json.
	Format string
	// Caller adds the calling file:line to every event.
	Caller bool
	// Timestamp adds a time field to every event.
	Timestamp bool
	// Output overrides the destination writer. Default: os.Stderr.
	Output io.Writer
}

// DefaultConfig returns production-appropriate defaults.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Caller:    false,
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init (re)configures the global logger. Safe to call once at startup;
// calling it again (e.g. after a config reload) replaces the logger
// atomically for all subsequent calls.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatRFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var w io.Writer = cfg.Output
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(w).With().Logger()
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}

	log = l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns a snapshot of the current global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger wholesale, e.g. for test fixtures
// that want a buffer-backed logger without going through Init.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With returns a builder seeded from the current global logger's context.
func With() zerolog.Context {
	return Logger().With()
}

func Trace() *zerolog.Event { mu.RLock(); defer mu.RUnlock(); return log.Trace() }
func Debug() *zerolog.Event { mu.RLock(); defer mu.RUnlock(); return log.Debug() }
func Info() *zerolog.Event  { mu.RLock(); defer mu.RUnlock(); return log.Info() }
func Warn() *zerolog.Event  { mu.RLock(); defer mu.RUnlock(); return log.Warn() }
func Error() *zerolog.Event { mu.RLock(); defer mu.RUnlock(); return log.Error() }

// Err starts an Error event pre-populated with the given error, or a no-op
// event chain if err is nil (matching zerolog.Logger.Err semantics).
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}

// NewTestLogger returns a logger writing JSON lines to w, independent of the
// global singleton -- handy for assertions on log output in tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
