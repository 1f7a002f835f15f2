package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"terratruce-gateway/internal/handlers"
	"terratruce-gateway/internal/metrics"
	"terratruce-gateway/internal/middleware"
	"terratruce-gateway/internal/proxy"
)

const (
	DefaultRequestTimeout = 60 * time.Second
	maxBodySize           = 512 * 1024
)

// Routes bundles the handlers the router mounts. Proxy and History may be
// nil, in which case their routes are not registered. A zero Timeout means
// DefaultRequestTimeout.
type Routes struct {
	Analysis *handlers.AnalysisHandler
	Chat     *handlers.ChatHandler
	History  *handlers.HistoryHandler
	Proxy    *proxy.Handler

	Timeout time.Duration
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, routes Routes) {
	timeout := routes.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.MaxBodySize(maxBodySize))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analysis", routes.Analysis.Analyze)
		r.Post("/address/extract", routes.Analysis.ExtractAddress)
		r.Post("/chat", routes.Chat.Send)

		if routes.History != nil {
			r.Post("/history", routes.History.Create)
			r.Get("/history", routes.History.List)
			r.Delete("/history", routes.History.Delete)
		}
	})

	if routes.Proxy != nil {
		r.Route("/api", func(r chi.Router) {
			r.Post("/details", routes.Proxy.Details)
			r.Post("/gemini", routes.Proxy.Gemini)
			r.Get("/geocode", routes.Proxy.Geocode)
		})
	}

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
