// Package proxy is the server side of proxy auth mode: it forwards browser
// or CLI calls to the providers and injects the provider keys, so the keys
// never leave this process.
package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"terratruce-gateway/internal/geocode"
	"terratruce-gateway/internal/llm"
	"terratruce-gateway/internal/upstream"
	"terratruce-gateway/pkg/logging/logging"
)

const maxProxyBody = 512 * 1024

// service describes one proxied provider for error payloads.
type service struct {
	code string // error code prefix, e.g. GEMINI
	name string // human name used in messages
}

var (
	detailsService = service{code: "DETAILS", name: "Analysis"}
	geminiService  = service{code: "GEMINI", name: "Gemini AI"}
	geocodeService = service{code: "GEOCODE", name: "Geocoding"}
)

// Targets holds one gateway per provider. A nil gateway means the key for
// that provider is not configured; its route answers 500 *_KEY_MISSING.
// Gateways must be in direct auth mode.
type Targets struct {
	Details *upstream.Gateway
	Gemini  *upstream.Gateway
	Geocode *upstream.Gateway

	DetailsPath string // default: /chat/completions
	GeminiModel string // default: gemini-2.5-flash
	GeocodePath string // default: /geocode/v1/json
}

type Handler struct {
	t      Targets
	logger *zap.Logger
}

func New(t Targets, logger *zap.Logger) *Handler {
	if t.DetailsPath == "" {
		t.DetailsPath = llm.DefaultCompletionsPath
	}
	if t.GeminiModel == "" {
		t.GeminiModel = "gemini-2.5-flash"
	}
	if t.GeocodePath == "" {
		t.GeocodePath = geocode.DefaultPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{t: t, logger: logger.Named("proxy")}
}

// Details handles POST /api/details: a completions request forwarded with
// a bearer key.
func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, detailsService)
	if !ok {
		return
	}
	var req struct {
		Messages []json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, ErrorBody{
			Error:   "Invalid request",
			Message: "The 'messages' array cannot be empty",
			Code:    "DETAILS_EMPTY_MESSAGES",
		})
		return
	}
	h.forward(w, r, detailsService, h.t.Details, http.MethodPost, h.t.DetailsPath, nil, body)
}

// Gemini handles POST /api/gemini: a generateContent request forwarded
// with the key.
func (h *Handler) Gemini(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, geminiService)
	if !ok {
		return
	}
	var req struct {
		Contents []json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.Contents) == 0 {
		writeError(w, http.StatusBadRequest, ErrorBody{
			Error:   "Invalid request",
			Message: "The 'contents' array cannot be empty",
			Code:    "GEMINI_EMPTY_CONTENTS",
		})
		return
	}
	h.forward(w, r, geminiService, h.t.Gemini, http.MethodPost, llm.GeneratePath(h.t.GeminiModel), nil, body)
}

// Geocode handles GET /api/geocode?q=. Only q, limit and language pass
// through; any client supplied key is dropped.
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	in := r.URL.Query()
	q := strings.TrimSpace(in.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, ErrorBody{
			Error:   "Invalid request",
			Message: "The 'q' parameter (location query) cannot be empty",
			Code:    "INVALID_QUERY",
		})
		return
	}

	query := url.Values{"q": {q}}
	for _, k := range []string{"limit", "language", "no_annotations"} {
		if v := in.Get(k); v != "" {
			query.Set(k, v)
		}
	}
	h.forward(w, r, geocodeService, h.t.Geocode, http.MethodGet, h.t.GeocodePath, query, nil)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, svc service) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody+1))
	if err != nil || len(body) > maxProxyBody {
		writeError(w, http.StatusBadRequest, ErrorBody{
			Error:   "Invalid request",
			Message: "Request body is unreadable or too large",
			Code:    svc.code + "_BAD_BODY",
		})
		return nil, false
	}
	return body, true
}

func (h *Handler) forward(w http.ResponseWriter, r *http.Request, svc service, gw *upstream.Gateway, method, path string, query url.Values, body []byte) {
	logger := logging.Or(r.Context(), h.logger)

	if gw == nil {
		logger.Error("proxy_key_missing", zap.String("service", svc.code))
		writeError(w, http.StatusInternalServerError, ErrorBody{
			Error:   svc.name + " API key is missing",
			Message: "The server has no API key configured for this service.",
			Code:    svc.code + "_KEY_MISSING",
		})
		return
	}

	raw, err := gw.Call(r.Context(), method, path, query, body)
	if err != nil {
		status, payload := mapError(svc, err)
		logger.Warn("proxy_upstream_error",
			zap.String("service", svc.code),
			zap.Int("status", status),
			zap.String("code", payload.Code),
		)
		writeError(w, status, payload)
		return
	}

	if !json.Valid(raw) {
		logger.Warn("proxy_invalid_json", zap.String("service", svc.code), zap.Int("bytes", len(raw)))
		writeError(w, http.StatusInternalServerError, ErrorBody{
			Error:   "Failed to parse " + strings.ToLower(svc.name) + " response",
			Message: "The upstream service returned an invalid response format",
			Code:    svc.code + "_PARSE_ERROR",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// ErrorBody is the JSON body of every proxy failure.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Status  int    `json:"status,omitempty"`
}

// mapError turns a gateway failure into the status and payload returned to
// the caller. Provider statuses pass through; transport failures are 503.
func mapError(svc service, err error) (int, ErrorBody) {
	var ue *upstream.Error
	if !errors.As(err, &ue) {
		return http.StatusBadGateway, ErrorBody{
			Error:   svc.name + " service error",
			Message: err.Error(),
			Code:    svc.code + "_ERROR",
		}
	}

	if ue.Status == 0 {
		out := ErrorBody{
			Error:   svc.name + " service unavailable",
			Message: "Failed to reach " + svc.name + " service: " + ue.Error(),
			Code:    svc.code + "_SERVICE_ERROR",
		}
		var opErr *net.OpError
		switch {
		case ue.Timeout():
			out.Error = svc.name + " request timed out"
			out.Code = svc.code + "_TIMEOUT"
		case errors.As(ue, &opErr) && opErr.Op == "dial":
			out.Error = "Cannot connect to " + svc.name + " service"
			out.Code = svc.code + "_CONNECTION_ERROR"
		}
		return http.StatusServiceUnavailable, out
	}

	msg, suffix := statusText(ue.Status)
	return ue.Status, ErrorBody{
		Error:   svc.name + " " + msg,
		Message: ue.Body,
		Code:    svc.code + "_" + suffix,
		Status:  ue.Status,
	}
}

func statusText(status int) (string, string) {
	switch status {
	case http.StatusBadRequest:
		return "rejected the request", "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "API key is invalid or expired", "UNAUTHORIZED"
	case http.StatusPaymentRequired:
		return "quota exceeded", "QUOTA_EXCEEDED"
	case http.StatusForbidden:
		return "access forbidden", "FORBIDDEN"
	case http.StatusTooManyRequests:
		return "rate limit reached, try again later", "RATE_LIMIT"
	case http.StatusInternalServerError:
		return "internal error", "SERVER_ERROR"
	case http.StatusServiceUnavailable:
		return "temporarily unavailable", "UNAVAILABLE"
	default:
		return "service error", "ERROR"
	}
}

func writeError(w http.ResponseWriter, status int, e ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}
