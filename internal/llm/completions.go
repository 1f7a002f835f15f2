package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"terratruce-gateway/internal/upstream"
	"terratruce-gateway/pkg/logging/logging"
)

const (
	maxMessageSize = 512 * 1024 // 512KB per message content

	// DefaultCompletionsPath is appended to the gateway base URL in direct mode.
	DefaultCompletionsPath = "/chat/completions"
)

// CompletionsClient talks to an OpenAI-compatible endpoint and reads the
// {"choices":[{"message":{"content":...}}]} envelope.
type CompletionsClient struct {
	gw     *upstream.Gateway
	path   string
	logger *zap.Logger
}

// NewCompletionsClient wraps gw. An empty path uses DefaultCompletionsPath.
func NewCompletionsClient(gw *upstream.Gateway, path string, logger *zap.Logger) *CompletionsClient {
	if path == "" {
		path = DefaultCompletionsPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionsClient{
		gw:     gw,
		path:   path,
		logger: logger.Named("llmclient"),
	}
}

// Complete sends req and returns the first choice's content. Upstream
// failures come back as *upstream.Error.
func (c *CompletionsClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	start := time.Now()
	logger := logging.Or(ctx, c.logger)

	if req == nil {
		return "", fmt.Errorf("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("llmclient: invalid request: %w", err)
	}

	logger.Debug("llm request starting",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
	)

	raw, err := c.gw.PostJSON(ctx, c.path, providerChatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	var pResp providerChatResponse
	if err := json.Unmarshal(raw, &pResp); err != nil {
		return "", fmt.Errorf("llmclient: decode upstream response: %w", err)
	}

	if len(pResp.Choices) == 0 || strings.TrimSpace(pResp.Choices[0].Message.Content) == "" {
		logger.Warn("llm provider returned no content",
			zap.String("model", req.Model),
			zap.Int("choices", len(pResp.Choices)),
		)
		return "", ErrEmptyContent
	}

	fields := []zap.Field{
		zap.String("model", pResp.Model),
		zap.String("finish_reason", pResp.Choices[0].FinishReason),
		zap.Duration("duration", time.Since(start)),
	}
	if pResp.Usage != nil {
		fields = append(fields,
			zap.Int("prompt_tokens", pResp.Usage.PromptTokens),
			zap.Int("completion_tokens", pResp.Usage.CompletionTokens),
		)
	}
	logger.Info("llm request completed", fields...)

	return pResp.Choices[0].Message.Content, nil
}
