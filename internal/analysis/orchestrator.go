// Package analysis produces property risk reports: cache first, then the
// model, falling back to a synthesized report when the model path fails.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"terratruce-gateway/internal/cache"
	"terratruce-gateway/internal/geocode"
	"terratruce-gateway/internal/llm"
	"terratruce-gateway/internal/metrics"
	"terratruce-gateway/internal/parser"
	"terratruce-gateway/internal/report"
	"terratruce-gateway/internal/upstream"
	"terratruce-gateway/pkg/logging/logging"
)

// NoAddressFound is what ExtractAddress returns when it has nothing better.
const NoAddressFound = "No address found"

// Geocoder resolves a free-text location. *geocode.Client implements it.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*geocode.Location, error)
}

type Config struct {
	Model       string  // default: sonar-pro
	Temperature float32 // default: 0.1
	MaxTokens   int     // default: 3000

	// Budget bounds the whole miss path, geocode and model call together.
	// When it runs out the fallback report is returned. Default: 45s.
	Budget time.Duration
	// GeocodeTimeout caps the geocode lookup. It never takes more than a
	// quarter of Budget. Default: 5s.
	GeocodeTimeout time.Duration

	// Coalesce lets concurrent misses for the same key share one upstream call.
	Coalesce bool
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "sonar-pro"
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.1
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 3000
	}
	if c.Budget <= 0 {
		c.Budget = 45 * time.Second
	}
	if c.GeocodeTimeout <= 0 {
		c.GeocodeTimeout = 5 * time.Second
	}
	if c.GeocodeTimeout > c.Budget/4 {
		c.GeocodeTimeout = c.Budget / 4
	}
	return c
}

type Orchestrator struct {
	cache  *cache.ResponseCache
	llm    llm.Completer
	geo    Geocoder
	cfg    Config
	flight singleflight.Group
	logger *zap.Logger
}

// New wires the orchestrator. geo may be nil, in which case prompts carry
// only the raw location.
func New(rc *cache.ResponseCache, completer llm.Completer, geo Geocoder, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cache:  rc,
		llm:    completer,
		geo:    geo,
		cfg:    cfg.withDefaults(),
		logger: logger.Named("analysis"),
	}
}

// Analyze returns a report for location. It never fails: when the model
// cannot produce a usable report, a synthesized one is returned and nothing
// is cached. The returned report may be shared with concurrent callers and
// must not be modified.
func (o *Orchestrator) Analyze(ctx context.Context, location string) *report.RiskReport {
	logger := logging.Or(ctx, o.logger)

	if strings.TrimSpace(location) == "" {
		return o.fallback(ctx, location, nil, "empty_location", nil)
	}

	var cached report.RiskReport
	if o.cache.CheckJSON(ctx, location, cache.KindAnalysis, &cached) && cached.RiskAnalysis != nil {
		logger.Debug("analysis_cache_hit", zap.String("key_hash", cache.KeyHash(cache.Key(cache.KindAnalysis, location))))
		return &cached
	}

	if !o.cfg.Coalesce {
		return o.fetch(ctx, location)
	}

	key := cache.Key(cache.KindAnalysis, location)
	// The shared call outlives any single caller's cancellation; Budget
	// still bounds it.
	v, _, shared := o.flight.Do(key, func() (any, error) {
		return o.fetch(context.WithoutCancel(ctx), location), nil
	})
	if shared {
		metrics.CoalescedRequestsTotal.WithLabelValues(string(cache.KindAnalysis)).Inc()
	}
	return v.(*report.RiskReport)
}

// fetch runs the miss path: geocode, call the model, parse, merge, save.
func (o *Orchestrator) fetch(ctx context.Context, location string) *report.RiskReport {
	logger := logging.Or(ctx, o.logger)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	loc := o.lookup(ctx, location)

	content, err := o.llm.Complete(ctx, &llm.CompletionRequest{
		Model: o.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analysisSystemPrompt},
			{Role: llm.RoleUser, Content: analysisPrompt(geocode.Context(loc, location))},
		},
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return o.fallback(ctx, location, loc, "upstream", err)
	}

	rep, err := parser.ParseAnalysis(content)
	if err != nil {
		var pf *parser.ParseFailure
		if errors.As(err, &pf) {
			logger.Debug("analysis_raw_response", zap.String("raw", truncate(pf.Raw, 2000)))
		}
		return o.fallback(ctx, location, loc, "parse", err)
	}

	rep.MergeLocation(loc)
	o.cache.SaveJSON(ctx, location, cache.KindAnalysis, rep)

	logger.Info("analysis_complete",
		zap.Int("overall_score", int(rep.RiskAnalysis.OverallScore)),
		zap.Bool("geocoded", loc != nil),
	)
	return rep
}

func (o *Orchestrator) lookup(ctx context.Context, location string) *geocode.Location {
	if o.geo == nil {
		return nil
	}
	geoCtx, cancel := context.WithTimeout(ctx, o.cfg.GeocodeTimeout)
	defer cancel()

	loc, err := o.geo.Geocode(geoCtx, location)
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, geocode.ErrNoResults) {
			level = zap.DebugLevel
		}
		logging.Or(ctx, o.logger).Check(level, "geocode_unavailable").Write(zap.Error(err))
		return nil
	}
	return loc
}

func (o *Orchestrator) fallback(ctx context.Context, location string, loc *geocode.Location, reason string, err error) *report.RiskReport {
	metrics.FallbacksTotal.WithLabelValues(string(cache.KindAnalysis), reason).Inc()
	logging.Or(ctx, o.logger).Warn("analysis_fallback",
		zap.String("reason", reason),
		zap.Int("upstream_status", upstream.StatusOf(err)),
		zap.Error(err),
	)
	return report.Synthesize(location, loc)
}

// ExtractAddress asks the model for the primary property address in text,
// typically OCR output. Any failure yields NoAddressFound. Results are not
// cached.
func (o *Orchestrator) ExtractAddress(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return NoAddressFound
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	content, err := o.llm.Complete(ctx, &llm.CompletionRequest{
		Model: o.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractSystemPrompt},
			{Role: llm.RoleUser, Content: extractPrompt(text)},
		},
		Temperature: o.cfg.Temperature,
	})
	if err != nil {
		logging.Or(ctx, o.logger).Warn("address_extract_failed", zap.Error(err))
		return NoAddressFound
	}

	address := strings.Trim(strings.TrimSpace(content), `"`)
	if address == "" {
		return NoAddressFound
	}
	return address
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
