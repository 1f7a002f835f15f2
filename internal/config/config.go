// Package config loads gateway settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"terratruce-gateway/internal/cache"
	"terratruce-gateway/internal/upstream"
)

// Config holds all gateway configuration.
type Config struct {
	Port     string `yaml:"port"`
	AuthMode string `yaml:"auth_mode"` // direct | proxy

	// RequestTimeout bounds every HTTP request the gateway serves.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Cache    CacheConfig    `yaml:"cache"`
	History  HistoryConfig  `yaml:"history"`
	Upstream UpstreamConfig `yaml:"upstream"`

	Analysis ProviderConfig `yaml:"analysis"`
	Chat     ProviderConfig `yaml:"chat"`
	Geocode  ProviderConfig `yaml:"geocode"`

	CoalesceRequests bool `yaml:"coalesce_requests"`
}

// CacheConfig selects and sizes the response cache backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory | redis | sqlite
	RedisAddr     string        `yaml:"redis_addr"`
	Prefix        string        `yaml:"prefix"`
	DBPath        string        `yaml:"db_path"`
	MemorySize    int           `yaml:"memory_size"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// HistoryConfig points at the search history database. An empty path
// disables the history routes.
type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

type UpstreamConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ProviderConfig defines one upstream provider. In proxy auth mode BaseURL
// is the origin serving the /api routes and APIKey is unused.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Port:           "8080",
		AuthMode:       string(upstream.AuthDirect),
		RequestTimeout: 60 * time.Second,
		Cache: CacheConfig{
			Backend:       cache.BackendMemory,
			RedisAddr:     "127.0.0.1:6379",
			Prefix:        "terratruce",
			DBPath:        "terratruce-cache.db",
			MemorySize:    1024,
			SweepInterval: 10 * time.Minute,
		},
		History: HistoryConfig{
			DBPath: "terratruce-history.db",
		},
		Upstream: UpstreamConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 0,
		},
		Analysis: ProviderConfig{
			BaseURL: "https://api.perplexity.ai",
			Model:   "sonar-pro",
		},
		Chat: ProviderConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
		},
		Geocode: ProviderConfig{
			BaseURL: "https://api.opencagedata.com",
		},
		CoalesceRequests: true,
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then with the environment. ${VAR} references in
// the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("PORT", &c.Port)
	str("AUTH_MODE", &c.AuthMode)
	dur("REQUEST_TIMEOUT", &c.RequestTimeout)

	str("CACHE_BACKEND", &c.Cache.Backend)
	str("REDIS_ADDR", &c.Cache.RedisAddr)
	str("CACHE_DB_PATH", &c.Cache.DBPath)
	num("MEMORY_CACHE_SIZE", &c.Cache.MemorySize)
	str("HISTORY_DB_PATH", &c.History.DBPath)

	str("ANALYSIS_BASE_URL", &c.Analysis.BaseURL)
	str("ANALYSIS_API_KEY", &c.Analysis.APIKey)
	str("ANALYSIS_MODEL", &c.Analysis.Model)
	str("CHAT_BASE_URL", &c.Chat.BaseURL)
	str("CHAT_API_KEY", &c.Chat.APIKey)
	str("CHAT_MODEL", &c.Chat.Model)
	str("GEOCODE_BASE_URL", &c.Geocode.BaseURL)
	str("GEOCODE_API_KEY", &c.Geocode.APIKey)

	dur("UPSTREAM_TIMEOUT", &c.Upstream.Timeout)
	num("UPSTREAM_MAX_RETRIES", &c.Upstream.MaxRetries)
	boolean("COALESCE_REQUESTS", &c.CoalesceRequests)

	return errors.Join(errs...)
}

// Validate rejects unknown backends and auth modes, and missing keys for
// the model providers in direct mode. The geocode key is optional; without
// it prompts carry only the raw location.
func (c *Config) Validate() error {
	var errs []error

	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRedis, cache.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == cache.BackendSQLite && strings.TrimSpace(c.Cache.DBPath) == "" {
		errs = append(errs, errors.New("sqlite cache backend needs cache.db_path"))
	}
	switch {
	case c.RequestTimeout <= 0:
		errs = append(errs, errors.New("request_timeout must be positive"))
	case c.Upstream.Timeout <= 0:
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	case c.Upstream.Timeout > c.ResponseBudget():
		errs = append(errs, fmt.Errorf("upstream.timeout %s does not fit the %s response budget of a %s request",
			c.Upstream.Timeout, c.ResponseBudget(), c.RequestTimeout))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, errors.New("upstream.max_retries must not be negative"))
	}

	switch upstream.AuthMode(c.AuthMode) {
	case upstream.AuthDirect:
		if c.Analysis.APIKey == "" {
			errs = append(errs, errors.New("ANALYSIS_API_KEY is required in direct auth mode"))
		}
		if c.Chat.APIKey == "" {
			errs = append(errs, errors.New("CHAT_API_KEY is required in direct auth mode"))
		}
	case upstream.AuthProxy:
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.AuthMode))
	}

	return errors.Join(errs...)
}

// ResponseBudget is how long the analysis and chat miss paths may spend on
// upstream calls before giving up and answering with their fallback. The
// remainder of RequestTimeout is headroom for writing that fallback.
func (c *Config) ResponseBudget() time.Duration {
	return c.RequestTimeout * 3 / 4
}

// CacheStore translates the cache section for cache.NewStore.
func (c *Config) CacheStore() cache.Config {
	return cache.Config{
		Backend:       c.Cache.Backend,
		Prefix:        c.Cache.Prefix,
		MemoryEntries: c.Cache.MemorySize,
		SQLitePath:    c.Cache.DBPath,
		SweepInterval: c.Cache.SweepInterval,
	}
}

// Gateway builds the upstream settings for one provider. style and keyName
// say where the key goes in direct mode.
func (c *Config) Gateway(p ProviderConfig, style upstream.AuthStyle, keyName string) upstream.Config {
	return upstream.Config{
		BaseURL:         p.BaseURL,
		APIKey:          p.APIKey,
		AuthMode:        upstream.AuthMode(c.AuthMode),
		AuthStyle:       style,
		KeyName:         keyName,
		UpstreamTimeout: c.Upstream.Timeout,
		MaxRetries:      c.Upstream.MaxRetries,
	}
}
