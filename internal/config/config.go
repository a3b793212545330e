// Package config loads the category browser configuration from a YAML file,
// CATBROWSE_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/category-browser/pkg/catalog"
	"github.com/Sternrassler/category-browser/pkg/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source names a catalogue backend.
type Source string

const (
	SourceGutendex Source = "gutendex"
	SourceOPDS     Source = "opds"
)

// EnvPrefix prefixes environment overrides, e.g. CATBROWSE_REDIS_ADDR.
const EnvPrefix = "CATBROWSE"

// Config holds all application configuration
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Network NetworkConfig `mapstructure:"network"`
	Loader  LoaderConfig  `mapstructure:"loader"`
	Export  ExportConfig  `mapstructure:"export"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig selects and tunes the catalogue backend
type CatalogConfig struct {
	Source         Source        `mapstructure:"source"`
	BaseURL        string        `mapstructure:"base_url"`
	OPDSSearchURL  string        `mapstructure:"opds_search_url"`
	OPDSPageSize   int           `mapstructure:"opds_page_size"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`    // 0 keeps per error class defaults
	InitialBackoff time.Duration `mapstructure:"initial_backoff"` // used with max_attempts
}

// RedisConfig holds the cache connection; an empty Addr disables caching
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NetworkConfig configures the availability probe
type NetworkConfig struct {
	ProbeURL     string        `mapstructure:"probe_url"` // empty: always available
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	GraceDelay   time.Duration `mapstructure:"grace_delay"`
}

// LoaderConfig tunes category loaders
type LoaderConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"` // 0: no timeout
}

// ExportConfig tunes whole-category exports
type ExportConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	MaxPages    int           `mapstructure:"max_pages"`
}

// ServerConfig configures the session API
type ServerConfig struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	ReapInterval   time.Duration `mapstructure:"reap_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Source:        SourceGutendex,
			BaseURL:       catalog.DefaultBaseURL,
			OPDSSearchURL: "https://www.gutenberg.org/ebooks/search.opds/",
			OPDSPageSize:  catalog.DefaultOPDSPageSize,
			UserAgent:     "category-browser/1.0",
			Timeout:       30 * time.Second,
		},
		Network: NetworkConfig{
			ProbeTimeout: 3 * time.Second,
			GraceDelay:   250 * time.Millisecond,
		},
		Export: ExportConfig{
			Concurrency: 4,
			PageTimeout: 30 * time.Second,
			MaxPages:    500,
		},
		Server: ServerConfig{
			ListenAddr:     ":8080",
			SessionIdleTTL: 15 * time.Minute,
			ReapInterval:   time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"source":     "catalog.source",
	"base-url":   "catalog.base_url",
	"user-agent": "catalog.user_agent",
	"redis-addr": "redis.addr",
	"probe-url":  "network.probe_url",
	"listen":     "server.listen_addr",
	"log-level":  "logging.level",
	"pretty":     "logging.pretty",
}

// defaultConfigPath returns the per-user configuration directory
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "category-browser")
}

// Load reads configuration. An explicit file must exist; without one,
// category-browser.yaml is looked up in the working directory and the user
// configuration directory and may be absent. Environment variables override
// the file and flags that were set override both. flags may be nil.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("category-browser")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := defaultConfigPath(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no config file is fine, defaults apply
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// keys that are missing from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("catalog.source", string(d.Catalog.Source))
	v.SetDefault("catalog.base_url", d.Catalog.BaseURL)
	v.SetDefault("catalog.opds_search_url", d.Catalog.OPDSSearchURL)
	v.SetDefault("catalog.opds_page_size", d.Catalog.OPDSPageSize)
	v.SetDefault("catalog.user_agent", d.Catalog.UserAgent)
	v.SetDefault("catalog.timeout", d.Catalog.Timeout)
	v.SetDefault("catalog.max_attempts", d.Catalog.MaxAttempts)
	v.SetDefault("catalog.initial_backoff", d.Catalog.InitialBackoff)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("network.probe_url", d.Network.ProbeURL)
	v.SetDefault("network.probe_timeout", d.Network.ProbeTimeout)
	v.SetDefault("network.grace_delay", d.Network.GraceDelay)

	v.SetDefault("loader.fetch_timeout", d.Loader.FetchTimeout)

	v.SetDefault("export.concurrency", d.Export.Concurrency)
	v.SetDefault("export.page_timeout", d.Export.PageTimeout)
	v.SetDefault("export.max_pages", d.Export.MaxPages)

	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.session_idle_ttl", d.Server.SessionIdleTTL)
	v.SetDefault("server.reap_interval", d.Server.ReapInterval)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
}

// Validate rejects configurations the application cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Catalog.Source {
	case SourceGutendex:
		if err := validateURL("catalog.base_url", c.Catalog.BaseURL); err != nil {
			errs = append(errs, err)
		}
	case SourceOPDS:
		if err := validateURL("catalog.opds_search_url", c.Catalog.OPDSSearchURL); err != nil {
			errs = append(errs, err)
		}
		if c.Catalog.OPDSPageSize < 1 {
			errs = append(errs, fmt.Errorf("catalog.opds_page_size must be >= 1 (got %d)", c.Catalog.OPDSPageSize))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.source must be %q or %q (got %q)", SourceGutendex, SourceOPDS, c.Catalog.Source))
	}

	if strings.TrimSpace(c.Catalog.UserAgent) == "" {
		errs = append(errs, fmt.Errorf("catalog.user_agent is required"))
	}
	if c.Catalog.Timeout < 0 {
		errs = append(errs, fmt.Errorf("catalog.timeout must not be negative"))
	}
	if c.Catalog.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("catalog.max_attempts must not be negative"))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative"))
	}
	if c.Network.ProbeURL != "" {
		if err := validateURL("network.probe_url", c.Network.ProbeURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Network.GraceDelay < 0 {
		errs = append(errs, fmt.Errorf("network.grace_delay must not be negative"))
	}
	if c.Loader.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("loader.fetch_timeout must not be negative"))
	}
	if c.Export.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("export.concurrency must be >= 1 (got %d)", c.Export.Concurrency))
	}
	if c.Server.SessionIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("server.session_idle_ttl must be positive"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	return errors.Join(errs...)
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL (got %q)", key, raw)
	}
	return nil
}

// RetryConfig returns the retry override, nil to keep per error class
// defaults.
func (c CatalogConfig) RetryConfig() *catalog.RetryConfig {
	if c.MaxAttempts <= 0 {
		return nil
	}
	rc := catalog.DefaultRetryConfig()
	rc.MaxAttempts = c.MaxAttempts
	if c.InitialBackoff > 0 {
		rc.InitialBackoff = c.InitialBackoff
	}
	return &rc
}

// LogLevel returns the validated logging level.
func (c LoggingConfig) LogLevel() logging.LogLevel {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return level
}
