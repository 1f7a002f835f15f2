// Package app wires configuration into the running components. Both the
// HTTP gateway and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"terratruce-gateway/internal/analysis"
	"terratruce-gateway/internal/cache"
	"terratruce-gateway/internal/chat"
	"terratruce-gateway/internal/config"
	"terratruce-gateway/internal/geocode"
	"terratruce-gateway/internal/history"
	"terratruce-gateway/internal/llm"
	"terratruce-gateway/internal/proxy"
	"terratruce-gateway/internal/upstream"
)

// Routes served by a same-origin proxy in proxy auth mode.
const (
	ProxyDetailsPath = "/api/details"
	ProxyGeminiPath  = "/api/gemini"
	ProxyGeocodePath = "/api/geocode"
)

const geminiKeyHeader = "x-goog-api-key"

// App holds the wired components. Proxy is nil in proxy auth mode, History
// is nil when no history database is configured.
type App struct {
	Store     *cache.LoggingStore
	Responses *cache.ResponseCache
	Analysis  *analysis.Orchestrator
	Chat      *chat.Orchestrator
	History   *history.Store
	Proxy     *proxy.Handler

	closers []func() error
}

// OpenStore builds the configured cache backend wrapped with logging and
// metrics. The returned close func releases the backend and any Redis
// client.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cache.LoggingStore, func() error, error) {
	var redisClient *redis.Client
	if cfg.Cache.Backend == cache.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Cache.RedisAddr, err)
		}
		logger.Info("redis_connected", zap.String("addr", cfg.Cache.RedisAddr))
	}

	store, err := cache.NewStore(cfg.CacheStore(), redisClient)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, nil, err
	}

	closeFn := func() error {
		var errs []error
		if c, ok := store.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
		if redisClient != nil {
			errs = append(errs, redisClient.Close())
		}
		return errors.Join(errs...)
	}
	return cache.NewLoggingStore(store, logger), closeFn, nil
}

// New builds every component from cfg. cfg must have passed Validate.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, closeStore, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	a.Store = store
	a.Responses = cache.NewResponseCache(store, logger)

	direct := upstream.AuthMode(cfg.AuthMode) == upstream.AuthDirect

	analysisGW, err := a.gateway("analysis", cfg.Gateway(cfg.Analysis, upstream.AuthBearer, ""), logger)
	if err != nil {
		return nil, err
	}
	chatGW, err := a.gateway("chat", cfg.Gateway(cfg.Chat, upstream.AuthHeader, geminiKeyHeader), logger)
	if err != nil {
		return nil, err
	}

	// Geocoding is optional in direct mode; without a key prompts carry the
	// raw location only.
	var geocodeGW *upstream.Gateway
	if !direct || cfg.Geocode.APIKey != "" {
		geocodeGW, err = a.gateway("geocode", cfg.Gateway(cfg.Geocode, upstream.AuthQuery, "key"), logger)
		if err != nil {
			return nil, err
		}
	}

	var (
		completions *llm.CompletionsClient
		gemini      *llm.GeminiClient
		geo         analysis.Geocoder
	)
	if direct {
		completions = llm.NewCompletionsClient(analysisGW, "", logger)
		gemini = llm.NewGeminiClient(chatGW, "", logger)
		if geocodeGW != nil {
			geo = geocode.New(geocodeGW, "", logger)
		}
		a.Proxy = proxy.New(proxy.Targets{
			Details:     analysisGW,
			Gemini:      chatGW,
			Geocode:     geocodeGW,
			GeminiModel: cfg.Chat.Model,
		}, logger)
	} else {
		completions = llm.NewCompletionsClient(analysisGW, ProxyDetailsPath, logger)
		gemini = llm.NewGeminiClient(chatGW, ProxyGeminiPath, logger)
		geo = geocode.New(geocodeGW, ProxyGeocodePath, logger)
	}

	a.Analysis = analysis.New(a.Responses, completions, geo, analysis.Config{
		Model:    cfg.Analysis.Model,
		Budget:   cfg.ResponseBudget(),
		Coalesce: cfg.CoalesceRequests,
	}, logger)
	a.Chat = chat.New(a.Responses, gemini, chat.Config{
		Model:    cfg.Chat.Model,
		Budget:   cfg.ResponseBudget(),
		Coalesce: cfg.CoalesceRequests,
	}, logger)

	if cfg.History.DBPath != "" {
		hs, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, hs.Close)
		a.History = hs
	}

	ok = true
	return a, nil
}

func (a *App) gateway(target string, cfg upstream.Config, logger *zap.Logger) (*upstream.Gateway, error) {
	gw, err := upstream.New(target, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gw.Close)
	return gw, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
