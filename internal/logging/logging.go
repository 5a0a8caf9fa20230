// Package logging builds the process logger from flags and configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/turnbench/internal/config"
)

// Console output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options are resolved logging settings.
type Options struct {
	Level     slog.Level
	Format    string
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// ParseLevel accepts debug, info, warn and error, case-insensitively. An
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", s)
	}
}

// ResolveOptions merges flag values over cfg. Empty flags defer to the
// configuration, which already carries environment overrides and defaults.
// cfg may be nil.
func ResolveOptions(flagLevel, flagFile string, cfg *config.Config) (Options, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	levelStr := flagLevel
	if levelStr == "" {
		levelStr = cfg.GetString(config.KeyLogLevel)
	}
	level, err := ParseLevel(levelStr)
	if err != nil {
		return Options{}, err
	}

	format := strings.ToLower(cfg.GetString(config.KeyLogFormat))
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatJSON:
	default:
		return Options{}, fmt.Errorf("invalid log format: %s", format)
	}

	file := flagFile
	if file == "" {
		file = cfg.GetString(config.KeyLogFile)
	}

	maxFiles := cfg.GetInt(config.KeyLogMaxFiles)
	if maxFiles < 0 {
		maxFiles = 5
	}

	return Options{
		Level:     level,
		Format:    format,
		File:      file,
		MaxSizeMB: max(cfg.GetInt(config.KeyLogMaxSizeMB), 1),
		MaxFiles:  maxFiles,
	}, nil
}

// New returns a logger writing to console at opts.Level in opts.Format, and,
// when opts.File is set, JSON at debug level to a rotating file. The closer
// must be closed when logging is done.
func New(opts Options, console io.Writer) (*slog.Logger, io.Closer, error) {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	var h slog.Handler
	if opts.Format == FormatJSON {
		h = slog.NewJSONHandler(console, hopts)
	} else {
		h = slog.NewTextHandler(console, hopts)
	}

	if opts.File == "" {
		return slog.New(h), nopCloser{}, nil
	}

	f, err := OpenRotating(opts.File, opts.MaxSizeMB, opts.MaxFiles)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
	}
	fh := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slog.NewMultiHandler(h, fh)), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
