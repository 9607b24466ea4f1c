// Package logging builds the zerolog loggers used by commands and hooks.
// Console output goes to stderr; when a cache directory is known, the same
// events are appended as JSON lines to <cache>/logs/<name>.log.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures New.
type Options struct {
	// Console receives human-readable output. Nil disables it.
	Console io.Writer
	// CacheDir enables the JSON log file when non-empty.
	CacheDir string
	// Name is the log file's base name, without extension.
	Name  string
	Level zerolog.Level
	// NoColor turns off ANSI colours in console output.
	NoColor bool
}

// New returns a logger and a close func for the log file, if one was
// opened. A log file that cannot be opened is skipped silently.
func New(opts Options) (zerolog.Logger, func() error) {
	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			NoColor:    opts.NoColor,
			TimeFormat: time.Kitchen,
		})
	}

	closeFn := func() error { return nil }
	if opts.CacheDir != "" {
		if f, err := openLogFile(opts.CacheDir, opts.Name); err == nil {
			writers = append(writers, f)
			closeFn = f.Close
		}
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closeFn
	}
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level).
		With().Timestamp().Logger()
	return logger, closeFn
}

// Path returns the log file New writes for cacheDir and name.
func Path(cacheDir, name string) string {
	if name == "" {
		name = "lineage"
	}
	return filepath.Join(cacheDir, "logs", name+".log")
}

func openLogFile(cacheDir, name string) (*os.File, error) {
	path := Path(cacheDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// ParseLevel accepts zerolog level names ("debug", "info", ...). Empty
// means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}
