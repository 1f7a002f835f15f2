package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"terratruce-gateway/internal/upstream"
)

func newGateway(t *testing.T, target, baseURL string, cfg upstream.Config) *upstream.Gateway {
	t.Helper()
	cfg.BaseURL = baseURL
	gw, err := upstream.New(target, cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("upstream.New: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	return gw
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var e ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return e
}

func TestDetailsInjectsBearerAndStripsClientAuth(t *testing.T) {
	var gotAuth, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{}"}}]}`)
	}))
	defer srv.Close()

	h := New(Targets{Details: newGateway(t, "details", srv.URL, upstream.Config{APIKey: "server-key"})}, zaptest.NewLogger(t))

	payload := `{"model":"sonar-pro","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/details", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer client-key")
	rr := httptest.NewRecorder()
	h.Details(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotAuth != "Bearer server-key" {
		t.Fatalf("expected server key, got %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected upstream path %q", gotPath)
	}
	if gotBody != payload {
		t.Fatalf("body not forwarded verbatim: %q", gotBody)
	}
	if !strings.Contains(rr.Body.String(), `"choices"`) {
		t.Fatalf("upstream body not returned: %s", rr.Body.String())
	}
}

func TestDetailsRejectsEmptyMessages(t *testing.T) {
	h := New(Targets{}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Details(rr, httptest.NewRequest(http.MethodPost, "/api/details", strings.NewReader(`{"messages":[]}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "DETAILS_EMPTY_MESSAGES" {
		t.Fatalf("unexpected code %q", e.Code)
	}
}

func TestMissingKey(t *testing.T) {
	h := New(Targets{}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Gemini(rr, httptest.NewRequest(http.MethodPost, "/api/gemini",
		strings.NewReader(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "GEMINI_KEY_MISSING" {
		t.Fatalf("unexpected code %q", e.Code)
	}
}

func TestGeminiUpstreamStatusPassesThrough(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"quota"}}`)
	}))
	defer srv.Close()

	gw := newGateway(t, "gemini", srv.URL, upstream.Config{APIKey: "g-key", AuthStyle: upstream.AuthQuery, KeyName: "key"})
	h := New(Targets{Gemini: gw}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Gemini(rr, httptest.NewRequest(http.MethodPost, "/api/gemini",
		strings.NewReader(`{"contents":[{"role":"user","parts":[{"text":"hi"}]}]}`)))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != "GEMINI_RATE_LIMIT" || e.Status != 429 {
		t.Fatalf("unexpected error body %+v", e)
	}
	if !strings.Contains(e.Message, "quota") {
		t.Fatalf("expected provider message, got %q", e.Message)
	}
	if gotKey != "g-key" {
		t.Fatalf("expected key query param, got %q", gotKey)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Fatalf("unexpected upstream path %q", gotPath)
	}
	if strings.Contains(rr.Body.String(), "g-key") {
		t.Fatal("key leaked into the response")
	}
}

func TestGeocodeForwardsWhitelistedParams(t *testing.T) {
	var got map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	gw := newGateway(t, "geocode", srv.URL, upstream.Config{APIKey: "oc-key", AuthStyle: upstream.AuthQuery, KeyName: "key"})
	h := New(Targets{Geocode: gw}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Geocode(rr, httptest.NewRequest(http.MethodGet, "/api/geocode?q=Chennai&limit=1&key=client&foo=bar", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got["q"][0] != "Chennai" || got["limit"][0] != "1" {
		t.Fatalf("params not forwarded: %v", got)
	}
	if len(got["key"]) != 1 || got["key"][0] != "oc-key" {
		t.Fatalf("expected only the server key, got %v", got["key"])
	}
	if _, ok := got["foo"]; ok {
		t.Fatal("unknown params must not be forwarded")
	}
}

func TestGeocodeRequiresQuery(t *testing.T) {
	h := New(Targets{}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Geocode(rr, httptest.NewRequest(http.MethodGet, "/api/geocode?q=%20", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "INVALID_QUERY" {
		t.Fatalf("unexpected code %q", e.Code)
	}
}

func TestConnectionFailureIs503(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	gw := newGateway(t, "geocode", url, upstream.Config{APIKey: "oc-key", AuthStyle: upstream.AuthQuery, KeyName: "key"})
	h := New(Targets{Geocode: gw}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Geocode(rr, httptest.NewRequest(http.MethodGet, "/api/geocode?q=Chennai", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	e := decodeError(t, rr)
	if e.Code != "GEOCODE_CONNECTION_ERROR" {
		t.Fatalf("unexpected code %q", e.Code)
	}
	if strings.Contains(e.Message, "oc-key") {
		t.Fatal("key leaked into the error message")
	}
}

func TestNonJSONSuccessIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	h := New(Targets{Details: newGateway(t, "details", srv.URL, upstream.Config{APIKey: "k"})}, zaptest.NewLogger(t))

	rr := httptest.NewRecorder()
	h.Details(rr, httptest.NewRequest(http.MethodPost, "/api/details", strings.NewReader(`{"messages":[{}]}`)))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != "DETAILS_PARSE_ERROR" {
		t.Fatalf("unexpected code %q", e.Code)
	}
}
