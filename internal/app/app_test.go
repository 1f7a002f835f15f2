package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap/zaptest"

	"terratruce-gateway/internal/chat"
	"terratruce-gateway/internal/config"
	"terratruce-gateway/internal/handlers"
	"terratruce-gateway/internal/httpserver"
	"terratruce-gateway/internal/llm"
	"terratruce-gateway/internal/report"
)

const analysisContent = `{"location_info":{"formatted_address":"Chennai"},"risk_analysis":{"overall_score":38},` +
	`"historical_trends":{},"market_intelligence":{},"legal_resources":{}}`

// fakeProviders stands in for the completions, Gemini and geocoding APIs
// and checks each receives its own key.
type fakeProviders struct {
	completions atomic.Int32
	generate    atomic.Int32
	geocode     atomic.Int32
}

func (f *fakeProviders) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/chat/completions":
		if r.Header.Get("Authorization") != "Bearer pplx-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.completions.Add(1)
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": analysisContent}}},
		})
		_, _ = w.Write(body)
	case strings.HasPrefix(r.URL.Path, "/v1beta/models/"):
		if r.Header.Get("x-goog-api-key") != "gemini-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.generate.Add(1)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"answer\":\"Try Adyar.\",\"risk_score\":30}"}]}}]}`)
	case r.URL.Path == "/geocode/v1/json":
		if r.URL.Query().Get("key") != "oc-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.geocode.Add(1)
		_, _ = io.WriteString(w, `{"results":[{"formatted":"Chennai, Tamil Nadu, India","geometry":{"lat":13.08,"lng":80.27},`+
			`"components":{"country":"India","country_code":"in","state":"Tamil Nadu"}}]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func directConfig(t *testing.T, providerURL string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Analysis.BaseURL, cfg.Analysis.APIKey = providerURL, "pplx-key"
	cfg.Chat.BaseURL, cfg.Chat.APIKey = providerURL, "gemini-key"
	cfg.Geocode.BaseURL, cfg.Geocode.APIKey = providerURL, "oc-key"
	cfg.History.DBPath = filepath.Join(t.TempDir(), "history.db")
	return cfg
}

func TestDirectModeEndToEnd(t *testing.T) {
	providers := &fakeProviders{}
	srv := httptest.NewServer(providers)
	defer srv.Close()

	cfg := directConfig(t, srv.URL)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Proxy == nil || a.History == nil {
		t.Fatal("expected proxy and history in direct mode")
	}

	ctx := context.Background()
	rep := a.Analysis.Analyze(ctx, "Chennai")
	if rep.RiskAnalysis.OverallScore != 38 {
		t.Fatalf("unexpected score %d", rep.RiskAnalysis.OverallScore)
	}
	if rep.LocationInfo.Region != "Tamil Nadu" {
		t.Fatalf("geocode not merged: %+v", rep.LocationInfo)
	}
	a.Analysis.Analyze(ctx, "chennai")
	if providers.completions.Load() != 1 {
		t.Fatalf("expected the second analysis to be a cache hit, got %d calls", providers.completions.Load())
	}

	reply := a.Chat.Send(ctx, []llm.Message{{Role: llm.RoleUser, Content: "plots?"}}, chat.Context{Location: "Chennai"})
	if reply != "Try Adyar.\n\n**Overall Risk Score:** 30/100" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestDirectModeWithoutGeocodeKey(t *testing.T) {
	providers := &fakeProviders{}
	srv := httptest.NewServer(providers)
	defer srv.Close()

	cfg := directConfig(t, srv.URL)
	cfg.Geocode.APIKey = ""

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	rep := a.Analysis.Analyze(context.Background(), "Chennai")
	if rep.RiskAnalysis.OverallScore != 38 || providers.geocode.Load() != 0 {
		t.Fatalf("expected analysis without geocoding, score %d geocode calls %d",
			rep.RiskAnalysis.OverallScore, providers.geocode.Load())
	}
}

// A proxy-mode app talks to a direct-mode gateway's /api routes, which add
// the keys before reaching the providers.
func TestProxyModeThroughGateway(t *testing.T) {
	providers := &fakeProviders{}
	providerSrv := httptest.NewServer(providers)
	defer providerSrv.Close()

	server, err := New(context.Background(), directConfig(t, providerSrv.URL), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New server app: %v", err)
	}
	defer server.Close()

	r := chi.NewRouter()
	httpserver.SetupRouter(r, zaptest.NewLogger(t), httpserver.Routes{
		Analysis: handlers.NewAnalysisHandler(server.Analysis),
		Chat:     handlers.NewChatHandler(server.Chat),
		Proxy:    server.Proxy,
	})
	gatewaySrv := httptest.NewServer(r)
	defer gatewaySrv.Close()

	cfg := config.Default()
	cfg.AuthMode = "proxy"
	cfg.Analysis.BaseURL = gatewaySrv.URL
	cfg.Chat.BaseURL = gatewaySrv.URL
	cfg.Geocode.BaseURL = gatewaySrv.URL
	cfg.History.DBPath = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	client, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New client app: %v", err)
	}
	defer client.Close()

	if client.Proxy != nil || client.History != nil {
		t.Fatal("proxy mode app must not serve the proxy; history is disabled")
	}

	rep := client.Analysis.Analyze(context.Background(), "Chennai")
	if rep.RiskAnalysis.OverallScore != 38 {
		t.Fatalf("unexpected score through proxy %d (%+v)", rep.RiskAnalysis.OverallScore, rep.LocationInfo)
	}
	if providers.geocode.Load() != 1 {
		t.Fatalf("expected geocode through the proxy, got %d", providers.geocode.Load())
	}

	reply := client.Chat.Send(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "plots?"}}, chat.Context{})
	if !strings.HasPrefix(reply, "Try Adyar.") {
		t.Fatalf("unexpected reply through proxy %q", reply)
	}
}

// Providers that never answer must still produce a fallback report and the
// apology inside the request timeout, with upstream calls left at their
// default timeout and coalescing on.
func TestStalledProvidersFallBackBeforeRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := directConfig(t, srv.URL)
	cfg.History.DBPath = ""
	cfg.RequestTimeout = 2 * time.Second

	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	r := chi.NewRouter()
	httpserver.SetupRouter(r, zaptest.NewLogger(t), httpserver.Routes{
		Analysis: handlers.NewAnalysisHandler(a.Analysis),
		Chat:     handlers.NewChatHandler(a.Chat),
		Timeout:  cfg.RequestTimeout,
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/analysis", strings.NewReader(`{"location":"Chennai"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with a fallback report, got %d %s", rr.Code, rr.Body.String())
	}
	var rep report.RiskReport
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.LocationInfo.Jurisdiction != report.EstimatedJurisdiction || rep.RiskAnalysis == nil {
		t.Fatalf("expected the synthesized report, got %+v", rep.LocationInfo)
	}

	rr = httptest.NewRecorder()
	body := `{"messages":[{"role":"user","content":"plots?"}],"context":{"location":"Chennai"}}`
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body)))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), chat.Apology) {
		t.Fatalf("expected 200 with the apology, got %d %s", rr.Code, rr.Body.String())
	}
}
