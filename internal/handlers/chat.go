package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/internal/chat"
	"terratruce-gateway/internal/llm"
	"terratruce-gateway/pkg/logging/logging"
)

// Sender is implemented by *chat.Orchestrator.
type Sender interface {
	Send(ctx context.Context, history []llm.Message, c chat.Context) string
}

// ChatHandler holds dependencies for the /v1/chat endpoint.
type ChatHandler struct {
	Chat Sender
}

func NewChatHandler(s Sender) *ChatHandler {
	return &ChatHandler{Chat: s}
}

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
	Context  chat.Context  `json:"context"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Send handles POST /v1/chat. The reply is always 200; failures come back
// as the apology text.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid_request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON object")
		return
	}

	reply := h.Chat.Send(ctx, req.Messages, req.Context)

	logger.Info("chat_served",
		zap.Int("messages", len(req.Messages)),
		zap.Bool("apology", reply == chat.Apology),
		zap.Duration("total_latency_ms", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
