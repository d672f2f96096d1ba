package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saveenergy/nwm/internal/logging"
	"github.com/saveenergy/nwm/pkg/types"
)

const (
	MinTimeout = 1 * time.Second
	MaxTimeout = 600 * time.Second
)

// Config carries the runtime settings of the tool. Option values for a
// single retrieval live in types.RawOptions; Defaults holds the ones a
// settings file pre-fills.
type Config struct {
	CatalogFile string
	ServiceURL  string
	Timeout     time.Duration
	LogLevel    string

	CachePath       string
	CacheMaxEntries int
	CacheTTL        time.Duration

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	Defaults types.RawOptions
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:         60 * time.Second,
		LogLevel:        "warn",
		CacheMaxEntries: 500,
		CacheTTL:        30 * 24 * time.Hour,
		S3Endpoint:      "s3.amazonaws.com",
		S3Region:        "us-east-1",
		S3UseSSL:        true,
	}
}

type fileConfig struct {
	CatalogFile string `yaml:"catalog_file,omitempty"`
	ServiceURL  string `yaml:"service_url,omitempty"`
	Timeout     int    `yaml:"timeout,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`

	Cache struct {
		Path       string `yaml:"path,omitempty"`
		MaxEntries int    `yaml:"max_entries,omitempty"`
		TTL        string `yaml:"ttl,omitempty"`
	} `yaml:"cache,omitempty"`

	S3 struct {
		Endpoint  string `yaml:"endpoint,omitempty"`
		AccessKey string `yaml:"access_key,omitempty"`
		SecretKey string `yaml:"secret_key,omitempty"`
		Region    string `yaml:"region,omitempty"`
		UseSSL    *bool  `yaml:"use_ssl,omitempty"`
	} `yaml:"s3,omitempty"`

	Defaults map[string]string `yaml:"defaults,omitempty"`
}

// DefaultPath is $XDG_CONFIG_HOME/nwm/config.yaml, falling back to
// ~/.config/nwm/config.yaml. It returns "" when no home directory is known.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "nwm", "config.yaml")
}

// LoadFile applies a YAML settings file on top of c. A missing file is an
// error only when required is set.
func (c *Config) LoadFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.CatalogFile != "" {
		c.CatalogFile = resolveRelative(path, fc.CatalogFile)
	}
	if fc.ServiceURL != "" {
		c.ServiceURL = fc.ServiceURL
	}
	if fc.Timeout != 0 {
		c.Timeout = time.Duration(fc.Timeout) * time.Second
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}
	if fc.Cache.Path != "" {
		c.CachePath = resolveRelative(path, fc.Cache.Path)
	}
	if fc.Cache.MaxEntries != 0 {
		c.CacheMaxEntries = fc.Cache.MaxEntries
	}
	if fc.Cache.TTL != "" {
		d, err := time.ParseDuration(fc.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config file %s: invalid cache.ttl %q: %w", path, fc.Cache.TTL, err)
		}
		c.CacheTTL = d
	}
	if fc.S3.Endpoint != "" {
		c.S3Endpoint = fc.S3.Endpoint
	}
	if fc.S3.AccessKey != "" {
		c.S3AccessKey = fc.S3.AccessKey
	}
	if fc.S3.SecretKey != "" {
		c.S3SecretKey = fc.S3.SecretKey
	}
	if fc.S3.Region != "" {
		c.S3Region = fc.S3.Region
	}
	if fc.S3.UseSSL != nil {
		c.S3UseSSL = *fc.S3.UseSSL
	}
	var defaults types.RawOptions
	for name, value := range fc.Defaults {
		if err := defaults.Set(name, value); err != nil {
			return fmt.Errorf("config file %s: defaults: %w", path, err)
		}
	}
	c.Defaults = c.Defaults.Overlay(defaults)
	return nil
}

func (c *Config) LoadFromEnv() error {
	if path := os.Getenv("NWM_CATALOG_FILE"); path != "" {
		c.CatalogFile = path
	}
	if u := os.Getenv("NWM_SERVICE_URL"); u != "" {
		c.ServiceURL = u
	}
	if timeout := os.Getenv("NWM_TIMEOUT"); timeout != "" {
		d, err := parseSecondsOrDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid NWM_TIMEOUT %q: must be seconds or a duration (e.g. 90s)", timeout)
		}
		c.Timeout = d
	}
	if level := os.Getenv("NWM_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	if path := os.Getenv("NWM_CACHE_PATH"); path != "" {
		c.CachePath = path
	}
	if max := os.Getenv("NWM_CACHE_MAX_ENTRIES"); max != "" {
		m, err := strconv.Atoi(max)
		if err != nil || m <= 0 {
			return fmt.Errorf("invalid NWM_CACHE_MAX_ENTRIES %q: must be a positive integer", max)
		}
		c.CacheMaxEntries = m
	}
	if ttl := os.Getenv("NWM_CACHE_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid NWM_CACHE_TTL %q: must be a positive duration (e.g. 720h)", ttl)
		}
		c.CacheTTL = d
	}

	if endpoint := os.Getenv("NWM_S3_ENDPOINT"); endpoint != "" {
		c.S3Endpoint = endpoint
	}
	if key := os.Getenv("NWM_S3_ACCESS_KEY"); key != "" {
		c.S3AccessKey = key
	}
	if secret := os.Getenv("NWM_S3_SECRET_KEY"); secret != "" {
		c.S3SecretKey = secret
	}
	if region := os.Getenv("NWM_S3_REGION"); region != "" {
		c.S3Region = region
	}
	if useSSL := os.Getenv("NWM_S3_USE_SSL"); useSSL != "" {
		b, err := strconv.ParseBool(useSSL)
		if err != nil {
			return fmt.Errorf("invalid NWM_S3_USE_SSL %q: must be true or false", useSSL)
		}
		c.S3UseSSL = b
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("timeout must be between %s and %s, got %s", MinTimeout, MaxTimeout, c.Timeout)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ServiceURL != "" {
		u, err := url.Parse(c.ServiceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid service URL %q: must be an http(s) URL", c.ServiceURL)
		}
	}
	if c.CachePath != "" {
		if c.CacheMaxEntries <= 0 {
			return fmt.Errorf("cache max entries must be > 0")
		}
		if c.CacheTTL <= 0 {
			return fmt.Errorf("cache ttl must be > 0")
		}
	}
	if strings.Contains(c.S3Endpoint, "://") {
		return fmt.Errorf("s3 endpoint must not include scheme: %q", c.S3Endpoint)
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		return fmt.Errorf("s3 access key and secret key must be set together")
	}
	return nil
}

func parseSecondsOrDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// resolveRelative interprets p relative to the directory of the settings file.
func resolveRelative(configPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
