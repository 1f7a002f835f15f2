package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terratruce-gateway/internal/cache"
	"terratruce-gateway/internal/upstream"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 0, cfg.Upstream.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 45*time.Second, cfg.ResponseBudget())
	assert.True(t, cfg.CoalesceRequests)
	assert.Equal(t, "sonar-pro", cfg.Analysis.Model)
	assert.Equal(t, "gemini-2.5-flash", cfg.Chat.Model)
}

func TestLoadFileWithExpansion(t *testing.T) {
	t.Setenv("TEST_ANALYSIS_KEY", "pplx-test-123")

	content := `
port: "9090"
auth_mode: direct
cache:
  backend: sqlite
  db_path: /tmp/cache.db
  sweep_interval: 1m
upstream:
  timeout: 12s
  max_retries: 2
analysis:
  api_key: ${TEST_ANALYSIS_KEY}
  model: sonar
coalesce_requests: false
`
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, cache.BackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.SweepInterval)
	assert.Equal(t, 12*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 2, cfg.Upstream.MaxRetries)
	assert.Equal(t, "pplx-test-123", cfg.Analysis.APIKey)
	assert.Equal(t, "sonar", cfg.Analysis.Model)
	assert.False(t, cfg.CoalesceRequests)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://api.perplexity.ai", cfg.Analysis.BaseURL)
	assert.Equal(t, "gemini-2.5-flash", cfg.Chat.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	cfg := Default()
	cfg.Port = "9090"

	err := cfg.applyEnv(mapLookup(map[string]string{
		"PORT":                 "7000",
		"CACHE_BACKEND":        "redis",
		"MEMORY_CACHE_SIZE":    "50",
		"AUTH_MODE":            "proxy",
		"CHAT_API_KEY":         "g-key",
		"UPSTREAM_TIMEOUT":     "5s",
		"UPSTREAM_MAX_RETRIES": "1",
		"COALESCE_REQUESTS":    "false",
		"HISTORY_DB_PATH":      "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 50, cfg.Cache.MemorySize)
	assert.Equal(t, "proxy", cfg.AuthMode)
	assert.Equal(t, "g-key", cfg.Chat.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 1, cfg.Upstream.MaxRetries)
	assert.False(t, cfg.CoalesceRequests)
	// Empty values do not clear settings.
	assert.Equal(t, "terratruce-history.db", cfg.History.DBPath)
}

func TestEnvRejectsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"UPSTREAM_TIMEOUT":  "soon",
		"MEMORY_CACHE_SIZE": "lots",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_TIMEOUT")
	assert.Contains(t, err.Error(), "MEMORY_CACHE_SIZE")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Analysis.APIKey = "a"
		cfg.Chat.APIKey = "c"
		return cfg
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"unknown backend":   func(c *Config) { c.Cache.Backend = "memcached" },
		"unknown auth mode": func(c *Config) { c.AuthMode = "oauth" },
		"missing analysis":  func(c *Config) { c.Analysis.APIKey = "" },
		"missing chat":      func(c *Config) { c.Chat.APIKey = "" },
		"sqlite no path":    func(c *Config) { c.Cache.Backend = cache.BackendSQLite; c.Cache.DBPath = " " },
		"negative retries":  func(c *Config) { c.Upstream.MaxRetries = -1 },
		"zero request":      func(c *Config) { c.RequestTimeout = 0 },
		"zero upstream":     func(c *Config) { c.Upstream.Timeout = 0 },
		"upstream too long": func(c *Config) { c.Upstream.Timeout = 60 * time.Second },
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}

	short := valid()
	short.RequestTimeout = 20 * time.Second
	assert.Error(t, short.Validate(), "30s upstream calls cannot fit a 20s request")

	proxy := Default()
	proxy.AuthMode = string(upstream.AuthProxy)
	assert.NoError(t, proxy.Validate(), "proxy mode needs no keys")
}

func TestGatewayConfig(t *testing.T) {
	cfg := Default()
	cfg.Geocode.APIKey = "oc"
	cfg.Upstream.MaxRetries = 3

	gw := cfg.Gateway(cfg.Geocode, upstream.AuthQuery, "key")
	assert.Equal(t, "https://api.opencagedata.com", gw.BaseURL)
	assert.Equal(t, "oc", gw.APIKey)
	assert.Equal(t, upstream.AuthDirect, gw.AuthMode)
	assert.Equal(t, upstream.AuthQuery, gw.AuthStyle)
	assert.Equal(t, "key", gw.KeyName)
	assert.Equal(t, 3, gw.MaxRetries)
	assert.Equal(t, 30*time.Second, gw.UpstreamTimeout)

	sc := cfg.CacheStore()
	assert.Equal(t, cfg.Cache.MemorySize, sc.MemoryEntries)
	assert.Equal(t, cfg.Cache.Prefix, sc.Prefix)
}
