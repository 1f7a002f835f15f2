package upstream

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// AuthMode selects who injects the provider secret.
type AuthMode string

const (
	// AuthDirect: this process holds the key and injects it on every call.
	AuthDirect AuthMode = "direct"
	// AuthProxy: calls go to a same-origin proxy that injects the key
	// server side. No secret is sent from here.
	AuthProxy AuthMode = "proxy"
)

// AuthStyle selects where the key goes in AuthDirect mode.
type AuthStyle int

const (
	AuthBearer AuthStyle = iota // Authorization: Bearer <key>
	AuthHeader                  // <KeyName>: <key>
	AuthQuery                   // ?<KeyName>=<key>
)

type Config struct {
	//required fields
	BaseURL string
	APIKey  string // required in AuthDirect mode

	AuthMode  AuthMode  // default: direct
	AuthStyle AuthStyle // default: bearer
	KeyName   string    // header or query parameter name for AuthHeader/AuthQuery

	UpstreamTimeout time.Duration // per-call timeout (default: 30s)
	MaxRetries      int           // extra attempts after the first (default: 0)
	BaseBackoff     time.Duration // initial backoff (default: 100ms)

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// Validate checks required fields only.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	switch c.AuthMode {
	case AuthDirect:
		if c.APIKey == "" {
			return errors.New("APIKey is required in direct auth mode")
		}
		if c.AuthStyle != AuthBearer && c.KeyName == "" {
			return errors.New("KeyName is required for header or query auth")
		}
	case AuthProxy:
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	return nil
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	// Normalize BaseURL: trim trailing slashes so we can safely append paths.
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthDirect
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// defaultTransport creates a production-ready HTTP transport
// with connection pooling and reasonable timeouts.
func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
