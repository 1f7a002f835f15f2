// Package chat answers assistant messages: cache first, then the model,
// with a fixed apology when the model path fails.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"terratruce-gateway/internal/cache"
	"terratruce-gateway/internal/llm"
	"terratruce-gateway/internal/metrics"
	"terratruce-gateway/internal/parser"
	"terratruce-gateway/internal/upstream"
	"terratruce-gateway/pkg/logging/logging"
)

// Apology is returned whenever no usable reply could be produced.
const Apology = "Connection error. Please try again."

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Context is what the UI knows when the user sends a message.
type Context struct {
	Location     string          `json:"location"`
	UserLocation *LatLng         `json:"user_location,omitempty"`
	RiskSummary  json.RawMessage `json:"risk_summary,omitempty"`
}

func (c Context) hasRiskSummary() bool {
	s := bytes.TrimSpace(c.RiskSummary)
	return len(s) > 0 && !bytes.Equal(s, []byte("null"))
}

type Config struct {
	Model           string  // default: gemini-2.5-flash
	Temperature     float32 // default: 0.2
	MaxOutputTokens int     // default: 5000
	Coalesce        bool

	// Budget bounds the model call; when it runs out Send apologizes.
	// Default: 45s.
	Budget time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.2
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 5000
	}
	if c.Budget <= 0 {
		c.Budget = 45 * time.Second
	}
	return c
}

type Orchestrator struct {
	cache  *cache.ResponseCache
	gen    llm.Generator
	cfg    Config
	flight singleflight.Group
	logger *zap.Logger
}

func New(rc *cache.ResponseCache, gen llm.Generator, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cache:  rc,
		gen:    gen,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("chat"),
	}
}

// CacheQuery is the raw cache query for a message asked in a location
// context. The same question in two locations is cached separately.
func CacheQuery(message, location string) string {
	return strings.TrimSpace(message) + "_" + strings.TrimSpace(location)
}

// Send returns the assistant's reply to the latest user message in history.
// It never fails; on any upstream or parse failure it returns Apology, which
// is not cached.
func (o *Orchestrator) Send(ctx context.Context, history []llm.Message, c Context) string {
	last, ok := lastUserMessage(history)
	if !ok {
		return o.apologize(ctx, "empty_history", nil)
	}

	query := CacheQuery(last, c.Location)

	var cached string
	if o.cache.CheckJSON(ctx, query, cache.KindChat, &cached) && cached != "" {
		logging.Or(ctx, o.logger).Debug("chat_cache_hit",
			zap.String("key_hash", cache.KeyHash(cache.Key(cache.KindChat, query))))
		return cached
	}

	if !o.cfg.Coalesce {
		return o.fetch(ctx, history, c, query)
	}

	v, _, shared := o.flight.Do(cache.Key(cache.KindChat, query), func() (any, error) {
		return o.fetch(context.WithoutCancel(ctx), history, c, query), nil
	})
	if shared {
		metrics.CoalescedRequestsTotal.WithLabelValues(string(cache.KindChat)).Inc()
	}
	return v.(string)
}

func (o *Orchestrator) fetch(ctx context.Context, history []llm.Message, c Context, query string) string {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	raw, err := o.gen.Generate(ctx, &llm.GenerateRequest{
		Model:            o.cfg.Model,
		Contents:         buildContents(history, c),
		Temperature:      o.cfg.Temperature,
		MaxOutputTokens:  o.cfg.MaxOutputTokens,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return o.apologize(ctx, "upstream", err)
	}

	reply, salvaged, err := parser.ParseChat(raw)
	if err != nil {
		return o.apologize(ctx, "parse", err)
	}
	if salvaged {
		metrics.ChatSalvagedTotal.Inc()
		logging.Or(ctx, o.logger).Warn("chat_salvage", zap.Int("raw_bytes", len(raw)))
	}

	o.cache.SaveJSON(ctx, query, cache.KindChat, reply)
	return reply
}

func (o *Orchestrator) apologize(ctx context.Context, reason string, err error) string {
	metrics.FallbacksTotal.WithLabelValues(string(cache.KindChat), reason).Inc()
	logging.Or(ctx, o.logger).Warn("chat_apology",
		zap.String("reason", reason),
		zap.Int("upstream_status", upstream.StatusOf(err)),
		zap.Error(err),
	)
	return Apology
}

func lastUserMessage(history []llm.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser && strings.TrimSpace(history[i].Content) != "" {
			return history[i].Content, true
		}
	}
	return "", false
}
