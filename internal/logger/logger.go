package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for child-process and orchestrator logs.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes logging destinations for the orchestrator and the
// processes it launches. If File is empty and Dir is set, the orchestrator
// log goes to Dir/dpistack.log; child stdout/stderr go to
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Dir        string `toml:"dir" mapstructure:"dir"`
	File       string `toml:"file" mapstructure:"file"`
	Level      string `toml:"level" mapstructure:"level"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// ChildWriters returns io.WriteClosers for a child process's stdout and
// stderr under the configured log directory. Both are nil when Dir is unset.
func (c Config) ChildWriters(name string) (io.WriteCloser, io.WriteCloser) {
	if c.Dir == "" {
		return nil, nil
	}
	return c.rotated(filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))),
		c.rotated(filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name)))
}

func (c Config) rotated(path string) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// Setup installs the process-wide slog default: a colorized text handler on
// stderr, mirrored to a rotated log file when Dir or File is configured.
// It returns a closer for the file writer (no-op when no file is used).
func Setup(c Config) (func() error, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}

	handlers := []slog.Handler{NewColorTextHandler(os.Stderr, opts)}
	closeFn := func() error { return nil }

	file := c.File
	if file == "" && c.Dir != "" {
		file = filepath.Join(c.Dir, "dpistack.log")
	}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
			return nil, err
		}
		w := c.rotated(file)
		handlers = append(handlers, slog.NewTextHandler(w, opts))
		closeFn = w.Close
	}

	slog.SetDefault(slog.New(newFanoutHandler(handlers...)))
	return closeFn, nil
}

// ParseLevel maps a config string to a slog.Level. Unknown values mean Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
