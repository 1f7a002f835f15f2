package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache lookups by payload kind and result (hit | miss | error).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Response cache lookups by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// Cache writes that were dropped because the store failed.
	CacheWriteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_write_failures_total",
			Help: "Response cache writes swallowed after a store error.",
		},
		[]string{"kind"},
	)

	// Upstream calls by target (analysis | chat | geocode) and outcome.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Calls to external AI and geocoding providers.",
		},
		[]string{"target", "outcome"},
	)

	UpstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of external provider calls in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"target"},
	)

	// Synthetic answers served instead of upstream data.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbacks_total",
			Help: "Fallback reports and apology replies served, by kind and reason.",
		},
		[]string{"kind", "reason"},
	)

	ChatSalvagedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_salvaged_total",
			Help: "Chat replies recovered from truncated model output.",
		},
	)

	CoalescedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalesced_requests_total",
			Help: "Cache misses that joined an in-flight upstream call.",
		},
		[]string{"kind"},
	)

	// Histogram: gateway HTTP latency in seconds.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheRequestsTotal,
		CacheWriteFailuresTotal,
		UpstreamRequestsTotal,
		UpstreamLatencySeconds,
		FallbacksTotal,
		ChatSalvagedTotal,
		CoalescedRequestsTotal,
		GatewayLatencySeconds,
	)
}

// ObserveUpstream records one provider call.
func ObserveUpstream(target string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestsTotal.WithLabelValues(target, outcome).Inc()
	UpstreamLatencySeconds.WithLabelValues(target).Observe(elapsed.Seconds())
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
