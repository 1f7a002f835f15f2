package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/internal/metrics"
	"terratruce-gateway/pkg/logging/logging"
)

const (
	maxRequestSize  = 2 * 1024 * 1024 // 2MB total JSON payload
	maxResponseSize = 8 * 1024 * 1024
	logBodyLimit    = 200
)

// Gateway issues calls to one external provider. It injects the credential
// according to Config, applies the per-call timeout and maps every failure
// to *Error. It does not interpret the response body.
type Gateway struct {
	target     string
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a gateway. target names the provider in logs, metrics and
// errors (analysis, chat, geocode).
func New(target string, cfg Config, logger *zap.Logger) (*Gateway, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("upstream %s: invalid config: %w", target, err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &Gateway{
		target:     target,
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("upstream").With(zap.String("target", target)),
	}, nil
}

// Target returns the provider name given to New.
func (g *Gateway) Target() string {
	return g.target
}

// AuthMode reports how credentials are injected.
func (g *Gateway) AuthMode() AuthMode {
	return g.cfg.AuthMode
}

// PostJSON marshals body, POSTs it to path and returns the raw 2xx body.
func (g *Gateway) PostJSON(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: marshal request: %w", g.target, err)
	}
	if len(payload) > maxRequestSize {
		return nil, fmt.Errorf("upstream %s: request too large (%d bytes, max %d)",
			g.target, len(payload), maxRequestSize)
	}
	return g.Call(ctx, http.MethodPost, path, nil, payload)
}

// Call performs one logical request (plus MaxRetries retries when
// configured) and returns the raw body of a 2xx response.
func (g *Gateway) Call(parentCtx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	start := time.Now()
	logger := logging.Or(parentCtx, g.logger)

	ctx, cancel := context.WithTimeout(parentCtx, g.cfg.UpstreamTimeout)
	defer cancel()

	endpoint := g.endpoint(path, query)

	// doOnce builds a fresh *http.Request for each attempt
	doOnce := func(ctx context.Context) (*http.Response, error) {
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, rdr)
		if err != nil {
			return nil, fmt.Errorf("build HTTP request: %w", err)
		}
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		httpReq.Header.Set("Accept", "application/json")
		g.authorize(httpReq)
		return g.httpClient.Do(httpReq)
	}

	resp, err := g.doWithRetry(ctx, doOnce)
	if err != nil {
		err = &Error{Target: g.target, Cause: g.redact(err)}
		metrics.ObserveUpstream(g.target, err, time.Since(start))
		logger.Warn("upstream_call",
			zap.String("target", g.target),
			zap.Int("status", 0),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := &Error{
			Target: g.target,
			Status: resp.StatusCode,
			Body:   truncate(string(raw), logBodyLimit),
		}
		metrics.ObserveUpstream(g.target, err, time.Since(start))
		logger.Warn("upstream_call",
			zap.String("target", g.target),
			zap.Int("status", resp.StatusCode),
			zap.String("body", err.Body),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}

	if readErr != nil {
		err := &Error{Target: g.target, Status: 0, Cause: fmt.Errorf("read body: %w", g.redact(readErr))}
		metrics.ObserveUpstream(g.target, err, time.Since(start))
		logger.Warn("upstream_call", zap.Error(err))
		return nil, err
	}

	metrics.ObserveUpstream(g.target, nil, time.Since(start))
	logger.Info("upstream_call",
		zap.String("target", g.target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("duration", time.Since(start)),
	)
	return raw, nil
}

func (g *Gateway) endpoint(path string, query url.Values) string {
	u := g.cfg.BaseURL + path
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if g.cfg.AuthMode == AuthDirect && g.cfg.AuthStyle == AuthQuery {
		q.Set(g.cfg.KeyName, g.cfg.APIKey)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (g *Gateway) authorize(req *http.Request) {
	if g.cfg.AuthMode != AuthDirect {
		return
	}
	switch g.cfg.AuthStyle {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	case AuthHeader:
		req.Header.Set(g.cfg.KeyName, g.cfg.APIKey)
	}
}

// redact strips the key from URLs embedded in transport errors, so query
// style credentials never reach logs or callers.
func (g *Gateway) redact(err error) error {
	if g.cfg.AuthStyle != AuthQuery || g.cfg.APIKey == "" {
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			q := u.Query()
			if q.Has(g.cfg.KeyName) {
				q.Set(g.cfg.KeyName, "REDACTED")
				u.RawQuery = q.Encode()
				uerr.URL = u.String()
			}
		}
	}
	return err
}

// Close releases idle connections.
func (g *Gateway) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
