package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"terratruce-gateway/internal/history"
	"terratruce-gateway/pkg/logging/logging"
)

// HistoryStore is implemented by *history.Store.
type HistoryStore interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
	Recent(ctx context.Context, owner string, limit int) ([]history.Entry, error)
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
}

// HistoryHandler serves /v1/history for the caller named by X-User-ID.
type HistoryHandler struct {
	Store HistoryStore
}

func NewHistoryHandler(s HistoryStore) *HistoryHandler {
	return &HistoryHandler{Store: s}
}

// Create handles POST /v1/history.
func (h *HistoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var e history.Entry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		logger.Warn("invalid_request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}
	e.OwnerID = ownerID(r)

	saved, err := h.Store.Record(ctx, e)
	if errors.Is(err, history.ErrMissingLocation) {
		writeError(w, http.StatusBadRequest, "missing_location", "location_name is required")
		return
	}
	if err != nil {
		logger.Error("history_record_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history_unavailable", "failed to create record")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// List handles GET /v1/history?limit=n.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 0 and 100")
			return
		}
		limit = n
	}

	entries, err := h.Store.Recent(ctx, ownerID(r), limit)
	if err != nil {
		logging.L(ctx).Error("history_query_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history_unavailable", "failed to fetch records")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Delete handles DELETE /v1/history.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.Store.DeleteByOwner(ctx, ownerID(r))
	if err != nil {
		logging.L(ctx).Error("history_delete_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history_unavailable", "failed to delete records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
