// Package logging adapts zerolog to the key/value Logger used by the service
// layer, with optional size-based file rotation through lumberjack.
package logging

import (
	"flightcore/internal/core"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines log level, output format and file rotation.
type Config struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level"`
	// Format is "console" for human readable output or "json".
	Format string `json:"format"`
	// File, when set, receives the log stream in addition to stderr.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.File != "" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("unknown log level %q", c.Level)
	}
	if c.Format != "console" && c.Format != "json" {
		return fmt.Errorf("unknown log format %q", c.Format)
	}
	return nil
}

// Logger implements core.Logger on zerolog.
type Logger struct {
	log    zerolog.Logger
	closer io.Closer
}

var _ core.Logger = (*Logger)(nil)

// New builds a Logger writing to stderr and, when cfg.File is set, to a
// rotating file. Every entry carries the component field.
func New(cfg Config, component string) (*Logger, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var out io.Writer = os.Stderr
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	var closer io.Closer
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}
	l := NewWithWriter(out, cfg.Level, component)
	l.closer = closer
	return l, nil
}

// NewWithWriter builds a Logger emitting JSON lines to w.
func NewWithWriter(w io.Writer, level, component string) *Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &Logger{log: z}
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.log }

// Close releases the rotating file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) Debug(msg string, args ...any) { emit(l.log.Debug(), msg, args) }
func (l *Logger) Info(msg string, args ...any)  { emit(l.log.Info(), msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { emit(l.log.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...any) { emit(l.log.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	if len(args) > 0 {
		ev = ev.Fields(args)
	}
	ev.Msg(msg)
}
