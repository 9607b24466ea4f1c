package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.CI.Lookback)
	assert.Equal(t, 30*time.Second, cfg.CI.RequestTimeout)
	assert.Equal(t, 100, cfg.CI.PageSize)
	assert.Equal(t, "lineage-ci-clone", cfg.CI.WorkspaceDir)
	assert.False(t, cfg.CI.UniqueWorkspace)
	assert.Equal(t, ".git/lineage/index.db", cfg.Index.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(`
[ci]
lookback = "1h"
page_size = 50
unique_workspace = true

[log]
level = "debug"
`), 0o644))

	t.Setenv("LINEAGE_CI__PAGE_SIZE", "20")
	t.Setenv("LINEAGE_INDEX__PATH", "/tmp/lineage.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.CI.Lookback)
	assert.Equal(t, 20, cfg.CI.PageSize, "environment overrides the file")
	assert.True(t, cfg.CI.UniqueWorkspace)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/lineage.db", cfg.Index.Path)
	assert.Equal(t, 30*time.Second, cfg.CI.RequestTimeout, "unset keys keep defaults")
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.NoError(t, err)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[ci\nlookback ="), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lookback", func(c *Config) { c.CI.Lookback = 0 }},
		{"zero timeout", func(c *Config) { c.CI.RequestTimeout = 0 }},
		{"page size too large", func(c *Config) { c.CI.PageSize = 101 }},
		{"page size zero", func(c *Config) { c.CI.PageSize = 0 }},
		{"blank workspace", func(c *Config) { c.CI.WorkspaceDir = "  " }},
		{"no index", func(c *Config) { c.Index.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.env")
	require.NoError(t, os.WriteFile(path, []byte("LINEAGE_TEST_FROM_FILE=file\nLINEAGE_TEST_PRESET=file\n"), 0o644))

	t.Setenv("LINEAGE_TEST_PRESET", "process")
	t.Setenv("LINEAGE_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("LINEAGE_TEST_FROM_FILE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "file", os.Getenv("LINEAGE_TEST_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("LINEAGE_TEST_PRESET"), "existing variables win")

	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestEnviron(t *testing.T) {
	t.Setenv("CI_PROJECT_ID", "42")
	t.Setenv("CI_JOB_TOKEN", "")
	t.Setenv("CI_UNRELATED", "x")

	got, err := Environ("CI_PROJECT_ID", "CI_JOB_TOKEN", "CI_DEFINITELY_UNSET_VAR")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"CI_PROJECT_ID": "42", "CI_JOB_TOKEN": ""}, got)
}
