// Package config loads git-lineage settings from built-in defaults, an
// optional TOML file, and LINEAGE_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by
// a double underscore: LINEAGE_CI__PAGE_SIZE sets ci.page_size.
const EnvPrefix = "LINEAGE_"

// FileName is the per-repository config file, looked up in the
// repository root.
const FileName = ".lineage.toml"

// Config is the resolved configuration.
type Config struct {
	CI    CI    `koanf:"ci"`
	Index Index `koanf:"index"`
	Log   Log   `koanf:"log"`
}

// CI tunes merge request resolution.
type CI struct {
	Lookback        time.Duration `koanf:"lookback"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	PageSize        int           `koanf:"page_size"`
	WorkspaceDir    string        `koanf:"workspace_dir"`
	UniqueWorkspace bool          `koanf:"unique_workspace"`
}

// Index locates the attribution database. A relative path is resolved
// against the repository root.
type Index struct {
	Path string `koanf:"path"`
}

type Log struct {
	Level string `koanf:"level"`
}

var defaults = map[string]interface{}{
	"ci.lookback":         "15m",
	"ci.request_timeout":  "30s",
	"ci.page_size":        100,
	"ci.workspace_dir":    "lineage-ci-clone",
	"ci.unique_workspace": false,
	"index.path":          ".git/lineage/index.db",
	"log.level":           "info",
}

// Load builds a Config. path may be empty; a missing file at path is not
// an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("error loading config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the resolver cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.CI.Lookback <= 0:
		return fmt.Errorf("ci.lookback must be positive, got %s", c.CI.Lookback)
	case c.CI.RequestTimeout <= 0:
		return fmt.Errorf("ci.request_timeout must be positive, got %s", c.CI.RequestTimeout)
	case c.CI.PageSize < 1 || c.CI.PageSize > 100:
		return fmt.Errorf("ci.page_size must be between 1 and 100, got %d", c.CI.PageSize)
	case strings.TrimSpace(c.CI.WorkspaceDir) == "":
		return fmt.Errorf("ci.workspace_dir is required")
	case c.Index.Path == "":
		return fmt.Errorf("index.path is required")
	}
	return nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment without overriding variables that are already set. It
// lets a CI job be replayed locally.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// Environ snapshots the named process environment variables. Unset
// variables are absent from the result; empty ones are kept.
func Environ(names ...string) (map[string]string, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string {
		if wanted[s] {
			return s
		}
		return ""
	}), nil); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if k.Exists(n) {
			out[n] = k.String(n)
		}
	}
	return out, nil
}
