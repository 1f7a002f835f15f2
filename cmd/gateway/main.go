package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"terratruce-gateway/internal/app"
	"terratruce-gateway/internal/config"
	"terratruce-gateway/internal/handlers"
	"terratruce-gateway/internal/httpserver"
	"terratruce-gateway/internal/metrics"
	"terratruce-gateway/pkg/logging/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run(configPath string) error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("auth_mode", cfg.AuthMode),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("analysis_base_url", cfg.Analysis.BaseURL),
		zap.String("chat_base_url", cfg.Chat.BaseURL),
		zap.String("geocode_base_url", cfg.Geocode.BaseURL),
		zap.Bool("geocode_key_set", cfg.Geocode.APIKey != ""),
		zap.Bool("history_enabled", cfg.History.DBPath != ""),
		zap.Bool("coalesce_requests", cfg.CoalesceRequests),
	)

	// ----- Components -----
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	routes := httpserver.Routes{
		Analysis: handlers.NewAnalysisHandler(a.Analysis),
		Chat:     handlers.NewChatHandler(a.Chat),
		Proxy:    a.Proxy,
		Timeout:  cfg.RequestTimeout,
	}
	if a.History != nil {
		routes.History = handlers.NewHistoryHandler(a.History)
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, routes)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.Bool("proxy_routes", a.Proxy != nil),
	)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			errCh <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
