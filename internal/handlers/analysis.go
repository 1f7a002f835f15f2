package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/internal/report"
	"terratruce-gateway/pkg/logging/logging"
)

// Analyzer is implemented by *analysis.Orchestrator.
type Analyzer interface {
	Analyze(ctx context.Context, location string) *report.RiskReport
	ExtractAddress(ctx context.Context, text string) string
}

// AnalysisHandler holds dependencies for the /v1/analysis and
// /v1/address/extract endpoints.
type AnalysisHandler struct {
	Analyzer Analyzer
}

func NewAnalysisHandler(a Analyzer) *AnalysisHandler {
	return &AnalysisHandler{Analyzer: a}
}

type analysisRequest struct {
	Location string `json:"location"`
}

// Analyze handles POST /v1/analysis. Any non-empty location gets a report;
// model failures surface as a synthesized report, never as an error status.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid_request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		writeError(w, http.StatusBadRequest, "missing_location", "location is required")
		return
	}

	rep := h.Analyzer.Analyze(ctx, req.Location)

	var overall int
	if rep.RiskAnalysis != nil {
		overall = int(rep.RiskAnalysis.OverallScore)
	}
	logger.Info("analysis_served",
		zap.Int("overall_score", overall),
		zap.Duration("total_latency_ms", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, rep)
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Address string `json:"address"`
}

// ExtractAddress handles POST /v1/address/extract.
func (h *AnalysisHandler) ExtractAddress(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logging.L(r.Context()).Warn("invalid_request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{Address: h.Analyzer.ExtractAddress(r.Context(), req.Text)})
}
