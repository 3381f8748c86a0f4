// Package logging provides structured logging with slog for gureum.
//
// Typed text never reaches the log by default: attributes that carry
// composed text, preedit or candidates are redacted unless Config.LogText
// is set for debugging.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// SubsystemKey tags records with the package that emitted them. The
// process name stays under "component".
const SubsystemKey = "subsystem"

// Redacted replaces the value of attributes that carry typed text.
const Redacted = "[REDACTED]"

// textKeys are attribute keys whose values are user-typed text.
var textKeys = map[string]bool{
	"text":       true,
	"preedit":    true,
	"candidate":  true,
	"candidates": true,
	"buffer":     true,
	"committed":  true,
}

// Config holds the logging configuration.
type Config struct {
	Level  Level
	Format Format

	// Output is "stdout", "stderr", "file" or "both" (stderr and file).
	Output string

	FilePath string

	// MaxSize is in megabytes; MaxAge is in days.
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool

	AddSource bool

	// LogText disables redaction of typed text.
	LogText bool

	// Component is attached to every record as "component".
	Component string
}

// DefaultConfig returns a stderr logger configuration at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   DefaultLogPath(),
		MaxSize:    10,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "gureum",
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/gureum/gureum.log.
func DefaultLogPath() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		homeDir, _ := os.UserHomeDir()
		stateHome = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateHome, "gureum", "gureum.log")
}

// Logger is a slog.Logger whose level can change at runtime. It owns the
// log file when Output includes one.
type Logger struct {
	*slog.Logger
	level   *slog.LevelVar
	rotator *FileRotator
	mu      sync.Mutex
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Default returns the process-wide logger, creating a stderr logger on
// first use.
func Default() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewWithWriter(os.Stderr, DefaultConfig())
	}
	return defaultLogger
}

// SetDefault installs l as the process-wide logger and as slog's default.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	slog.SetDefault(l.Logger)
}

// New creates a Logger writing where cfg.Output says.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var (
		w       io.Writer
		rotator *FileRotator
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		w = os.Stdout
	case "file", "both":
		r, err := NewFileRotator(cfg)
		if err != nil {
			return nil, fmt.Errorf("open log output: %w", err)
		}
		rotator, w = r, r
		if strings.EqualFold(cfg.Output, "both") {
			w = io.MultiWriter(os.Stderr, r)
		}
	default:
		w = os.Stderr
	}
	l := NewWithWriter(w, cfg)
	l.rotator = rotator
	return l, nil
}

// NewWithWriter creates a logger that writes to w regardless of Output.
func NewWithWriter(w io.Writer, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := new(slog.LevelVar)
	level.Set(cfg.Level)
	return &Logger{Logger: slog.New(newHandler(w, level, cfg)), level: level}
}

func newHandler(w io.Writer, level slog.Leveler, cfg *Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	if !cfg.LogText {
		opts.ReplaceAttr = redact
	}

	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}
	return handler
}

// redact is called for every attribute, including those nested in groups.
func redact(_ []string, a slog.Attr) slog.Attr {
	if textKeys[strings.ToLower(a.Key)] {
		a.Value = slog.StringValue(Redacted)
	}
	return a
}

// Level returns the current minimum level.
func (l *Logger) Level() Level { return l.level.Level() }

// SetLevel changes the minimum level of l and of every logger derived
// from it with With.
func (l *Logger) SetLevel(level Level) { l.level.Set(level) }

// WithSubsystem returns a logger tagged with a subsystem name that shares
// l's level and output.
func (l *Logger) WithSubsystem(name string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(slog.String(SubsystemKey, name)),
		level:   l.level,
		rotator: l.rotator,
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator == nil {
		return nil
	}
	err := l.rotator.Close()
	l.rotator = nil
	return err
}

// Sync flushes the log file, if any.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rotator == nil {
		return nil
	}
	return l.rotator.Sync()
}

// Debug logs at debug level using the default logger.
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

// Info logs at info level using the default logger.
func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

// Warn logs at warn level using the default logger.
func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

// Error logs at error level using the default logger.
func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

// ParseLevel accepts slog level names in any case, with "warning" as an
// alias for "warn".
func ParseLevel(s string) (Level, error) {
	if strings.EqualFold(s, "warning") {
		return LevelWarn, nil
	}
	var level Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}

// ParseFormat parses "text" or "json". Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %s", s)
}

// LevelString returns the lower-case name ParseLevel accepts.
func LevelString(level Level) string {
	return strings.ToLower(level.String())
}
