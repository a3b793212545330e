package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/category-browser/pkg/logging"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "category-browser.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
catalog:
  source: opds
  opds_search_url: https://example.org/search.opds
  opds_page_size: 10
  timeout: 5s
redis:
  addr: localhost:6379
  db: 2
network:
  grace_delay: 1s
server:
  session_idle_ttl: 2m
logging:
  level: debug
  pretty: true
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, SourceOPDS, cfg.Catalog.Source)
	assert.Equal(t, "https://example.org/search.opds", cfg.Catalog.OPDSSearchURL)
	assert.Equal(t, 10, cfg.Catalog.OPDSPageSize)
	assert.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, time.Second, cfg.Network.GraceDelay)
	assert.Equal(t, 2*time.Minute, cfg.Server.SessionIdleTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)

	// keys absent from the file keep their defaults
	assert.Equal(t, "category-browser/1.0", cfg.Catalog.UserAgent)
	assert.Equal(t, 4, cfg.Export.Concurrency)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
catalog:
  user_agent: from-file
redis:
  addr: file:6379
`)
	t.Setenv("CATBROWSE_REDIS_ADDR", "env:6379")
	t.Setenv("CATBROWSE_LOADER_FETCH_TIMEOUT", "7s")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "env:6379", cfg.Redis.Addr)
	assert.Equal(t, 7*time.Second, cfg.Loader.FetchTimeout)
	assert.Equal(t, "from-file", cfg.Catalog.UserAgent)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("CATBROWSE_LOGGING_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("redis-addr", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=error"}))

	path := writeConfig(t, "redis:\n  addr: file:6379\n")
	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	// unset flags do not shadow the file
	assert.Equal(t, "file:6379", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown source", func(c *Config) { c.Catalog.Source = "ftp" }, true},
		{"relative base url", func(c *Config) { c.Catalog.BaseURL = "/books" }, true},
		{"opds without url", func(c *Config) {
			c.Catalog.Source = SourceOPDS
			c.Catalog.OPDSSearchURL = ""
		}, true},
		{"opds zero page size", func(c *Config) {
			c.Catalog.Source = SourceOPDS
			c.Catalog.OPDSPageSize = 0
		}, true},
		{"empty user agent", func(c *Config) { c.Catalog.UserAgent = "  " }, true},
		{"negative grace delay", func(c *Config) { c.Network.GraceDelay = -time.Second }, true},
		{"bad probe url", func(c *Config) { c.Network.ProbeURL = "not a url" }, true},
		{"negative fetch timeout", func(c *Config) { c.Loader.FetchTimeout = -1 }, true},
		{"zero export concurrency", func(c *Config) { c.Export.Concurrency = 0 }, true},
		{"zero session ttl", func(c *Config) { c.Server.SessionIdleTTL = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCatalogConfig_RetryConfig(t *testing.T) {
	c := CatalogConfig{}
	assert.Nil(t, c.RetryConfig(), "zero attempts keeps class defaults")

	c.MaxAttempts = 5
	c.InitialBackoff = 200 * time.Millisecond
	rc := c.RetryConfig()
	require.NotNil(t, rc)
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, rc.InitialBackoff)
	assert.Equal(t, 2.0, rc.BackoffMultiplier)
}

func TestLoggingConfig_LogLevel(t *testing.T) {
	assert.Equal(t, logging.LevelWarn, LoggingConfig{Level: "warn"}.LogLevel())
	assert.Equal(t, logging.LevelInfo, LoggingConfig{Level: "bogus"}.LogLevel())
}
